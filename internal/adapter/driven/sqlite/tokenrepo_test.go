package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentvault/agentvault/internal/domain/port/driven"
)

func TestTokenRepo_UpsertAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token":      "T1",
		"server_url": "https://example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.OK)

	record, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "jira", record.Provider)
	assert.Equal(t, "alice", record.UserID)
	assert.Equal(t, "T1", record.Fields["token"])
	assert.Equal(t, "https://example.com", record.Fields["server_url"])
	assert.Empty(t, record.Fields["username"], "optional field not supplied must be absent")
	assert.False(t, record.CreatedAt.IsZero())
	assert.False(t, record.UpdatedAt.IsZero())
}

func TestTokenRepo_GetMissing(t *testing.T) {
	repo := setupTestRepo(t)

	record, err := repo.Get(context.Background(), "jira", "nobody")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestTokenRepo_RoundTripAllProviders(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		provider string
		fields   map[string]string
	}{
		{
			provider: "jira",
			fields:   map[string]string{"token": "jt", "server_url": "https://jira.example.com", "username": "alice"},
		},
		{
			provider: "github",
			fields:   map[string]string{"access_token": "gho_abc", "username": "alice"},
		},
		{
			provider: "gdrive",
			fields: map[string]string{
				"access_token":  "ya29.x",
				"refresh_token": "1//refresh",
				"expiry":        "2026-09-01T00:00:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			result, err := repo.Upsert(ctx, tt.provider, "alice", tt.fields)
			require.NoError(t, err)
			require.True(t, result.OK)

			record, err := repo.Get(ctx, tt.provider, "alice")
			require.NoError(t, err)
			require.NotNil(t, record)
			assert.Equal(t, tt.fields, record.Fields)
		})
	}
}

func TestTokenRepo_SecretsEncryptedAtRest(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token":      "super-secret",
		"server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	var stored string
	err = repo.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM tokens WHERE provider = 'jira' AND user_id = 'alice' AND field = 'token'`,
	).Scan(&stored)
	require.NoError(t, err)
	assert.NotEqual(t, "super-secret", stored)
	assert.NotContains(t, stored, "super-secret")

	// Plaintext fields stay readable in the table.
	err = repo.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM tokens WHERE provider = 'jira' AND user_id = 'alice' AND field = 'server_url'`,
	).Scan(&stored)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", stored)
}

func TestTokenRepo_UpsertReplacesNeverMerges(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token":      "A",
		"server_url": "https://example.com",
		"username":   "alice-the-first",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	// Second upsert omits the optional username; it must not survive.
	result, err = repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token":      "B",
		"server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	record, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "B", record.Fields["token"])
	_, present := record.Fields["username"]
	assert.False(t, present, "username from the first upsert must not linger")
}

func TestTokenRepo_UpsertPreservesCreatedAt(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "A", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	first, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(1100 * time.Millisecond) // RFC3339 second resolution

	result, err = repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "B", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	second, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.CreatedAt, second.CreatedAt, "created_at survives replacement")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "updated_at advances on replacement")
}

func TestTokenRepo_UpsertValidation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		fields     map[string]string
		wantReason driven.UpsertReason
		wantField  string
	}{
		{
			name:       "unknown field",
			fields:     map[string]string{"token": "T", "server_url": "u", "color": "red"},
			wantReason: driven.ReasonUnknownField,
			wantField:  "color",
		},
		{
			name:       "missing required field",
			fields:     map[string]string{"username": "alice", "token": "T"},
			wantReason: driven.ReasonMissingField,
			wantField:  "server_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.Upsert(ctx, "jira", "alice", tt.fields)
			require.NoError(t, err, "validation failures are soft, not errors")
			assert.False(t, result.OK)
			assert.Equal(t, tt.wantReason, result.Reason)
			assert.Equal(t, tt.wantField, result.Field)

			record, err := repo.Get(ctx, "jira", "alice")
			require.NoError(t, err)
			assert.Nil(t, record, "rejected upsert must not write anything")
		})
	}
}

func TestTokenRepo_UnknownProviderRejected(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "bitbucket", "alice", map[string]string{"token": "T"})
	assert.ErrorIs(t, err, driven.ErrUnknownProvider)

	_, err = repo.Get(ctx, "bitbucket", "alice")
	assert.ErrorIs(t, err, driven.ErrUnknownProvider)

	_, err = repo.Delete(ctx, "bitbucket", "alice")
	assert.ErrorIs(t, err, driven.ErrUnknownProvider)

	_, err = repo.ListUsers(ctx, "bitbucket")
	assert.ErrorIs(t, err, driven.ErrUnknownProvider)
}

func TestTokenRepo_DeleteIdempotent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "T1", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	deleted, err := repo.Delete(ctx, "jira", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	record, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	assert.Nil(t, record)

	deleted, err = repo.Delete(ctx, "jira", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestTokenRepo_CorruptedCiphertextTreatedAsAbsent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "T1", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	_, err = repo.db.Writer.ExecContext(ctx,
		`UPDATE tokens SET value = 'garbage-not-ciphertext' WHERE provider = 'jira' AND user_id = 'alice' AND field = 'token'`,
	)
	require.NoError(t, err)

	record, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err, "corruption degrades to absent, never an error")
	assert.Nil(t, record)
}

func TestTokenRepo_Isolation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "T1", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	// Same provider, different user.
	record, err := repo.Get(ctx, "jira", "bob")
	require.NoError(t, err)
	assert.Nil(t, record)

	// Same user, different provider.
	record, err = repo.Get(ctx, "github", "alice")
	require.NoError(t, err)
	assert.Nil(t, record)

	// Deleting bob's nothing must not disturb alice.
	deleted, err := repo.Delete(ctx, "jira", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	record, err = repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "T1", record.Fields["token"])
}

func TestTokenRepo_Scenario(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "T1", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	record, err := repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "T1", record.Fields["token"])
	assert.Equal(t, "https://example.com", record.Fields["server_url"])

	result, err = repo.Upsert(ctx, "jira", "alice", map[string]string{
		"token": "T2", "server_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	record, err = repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "T2", record.Fields["token"])

	deleted, err := repo.Delete(ctx, "jira", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	record, err = repo.Get(ctx, "jira", "alice")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestTokenRepo_ListUsers(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, user := range []struct{ id, token, username string }{
		{"alice", "TA", "Alice"},
		{"bob", "TB", "Bob"},
	} {
		result, err := repo.Upsert(ctx, "jira", user.id, map[string]string{
			"token":      user.token,
			"server_url": "https://example.com",
			"username":   user.username,
		})
		require.NoError(t, err)
		require.True(t, result.OK)
	}

	summaries, err := repo.ListUsers(ctx, "jira")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byUser := make(map[string]string)
	for _, s := range summaries {
		byUser[s.UserID] = s.Username
		assert.Equal(t, "https://example.com", s.ServerURL)
		assert.False(t, s.UpdatedAt.IsZero())
	}
	assert.Equal(t, map[string]string{"alice": "Alice", "bob": "Bob"}, byUser)

	// Other providers see nothing.
	summaries, err = repo.ListUsers(ctx, "github")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestTokenRepo_ListUsersOmitsSecrets(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	result, err := repo.Upsert(ctx, "gdrive", "alice", map[string]string{
		"access_token":  "ya29.secret",
		"refresh_token": "1//alsosecret",
		"expiry":        "2026-09-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	summaries, err := repo.ListUsers(ctx, "gdrive")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "alice", summaries[0].UserID)
	assert.Equal(t, "2026-09-01T00:00:00Z", summaries[0].Expiry)
	assert.Empty(t, summaries[0].Username)
}
