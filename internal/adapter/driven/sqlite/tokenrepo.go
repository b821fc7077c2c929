package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentvault/agentvault/internal/crypto"
	"github.com/agentvault/agentvault/internal/domain/model"
	"github.com/agentvault/agentvault/internal/domain/port/driven"
	"github.com/agentvault/agentvault/internal/schema"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo is the SQLite implementation of the TokenStore port. A record
// is stored as one row per schema field in the tokens table, keyed by
// (provider, user_id, field); secret fields hold AES-256-GCM ciphertext.
type TokenRepo struct {
	db       *DB
	codec    *crypto.Codec
	registry *schema.Registry
	logger   *slog.Logger
}

// NewTokenRepo creates a TokenRepo. The codec and registry are required;
// logger falls back to slog.Default when nil.
func NewTokenRepo(db *DB, codec *crypto.Codec, registry *schema.Registry, logger *slog.Logger) *TokenRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenRepo{db: db, codec: codec, registry: registry, logger: logger}
}

// Upsert validates fields against the provider schema, encrypts secret
// fields, and replaces the whole record in a single transaction. Existing
// fields not present in this call are removed; created_at survives the
// replacement.
func (r *TokenRepo) Upsert(ctx context.Context, provider, userID string, fields map[string]string) (driven.UpsertResult, error) {
	sch, ok := r.registry.Get(provider)
	if !ok {
		return driven.UpsertResult{}, fmt.Errorf("upsert token: %w: %q", driven.ErrUnknownProvider, provider)
	}

	if field, reason, valid := sch.Validate(fields); !valid {
		r.logger.Warn("token upsert rejected",
			"provider", provider,
			"user_id", userID,
			"reason", reason,
			"field", field,
		)
		return driven.UpsertResult{Reason: driven.UpsertReason(reason), Field: field}, nil
	}

	// Encrypt before opening the transaction to keep it short.
	stored := make(map[string]storedField, len(fields))
	for name, value := range fields {
		spec, _ := sch.Field(name)
		if spec.Secret {
			encrypted, err := r.codec.Encrypt(value)
			if err != nil {
				r.logger.Warn("token upsert rejected",
					"provider", provider,
					"user_id", userID,
					"reason", driven.ReasonEncryptFailed,
					"field", name,
				)
				return driven.UpsertResult{Reason: driven.ReasonEncryptFailed, Field: name}, nil
			}
			stored[name] = storedField{value: encrypted, secret: true}
			continue
		}
		stored[name] = storedField{value: value}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return driven.UpsertResult{}, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	// Preserve created_at across full replacement. MIN is NULL when no
	// record exists yet.
	createdAt := now
	var existing sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT MIN(created_at) FROM tokens WHERE provider = ? AND user_id = ?`,
		provider, userID,
	).Scan(&existing)
	if err == nil && existing.Valid && existing.String != "" {
		createdAt = existing.String
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tokens WHERE provider = ? AND user_id = ?`,
		provider, userID,
	); err != nil {
		return driven.UpsertResult{}, fmt.Errorf("clear token fields: %w", err)
	}

	for _, f := range sch.Fields {
		sf, present := stored[f.Name]
		if !present {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tokens (provider, user_id, field, value, secret, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			provider, userID, f.Name, sf.value, sf.secret, createdAt, now,
		); err != nil {
			return driven.UpsertResult{}, fmt.Errorf("insert token field %q: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return driven.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}

	return driven.UpsertResult{OK: true}, nil
}

type storedField struct {
	value  string
	secret bool
}

// Get returns the decrypted record for (provider, userID), or nil when no
// record exists. A record whose ciphertext fails to decrypt is logged and
// reported as absent so callers fall into their normal re-auth path.
func (r *TokenRepo) Get(ctx context.Context, provider, userID string) (*model.Record, error) {
	if _, ok := r.registry.Get(provider); !ok {
		return nil, fmt.Errorf("get token: %w: %q", driven.ErrUnknownProvider, provider)
	}

	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT field, value, secret, created_at, updated_at FROM tokens WHERE provider = ? AND user_id = ?`,
		provider, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get token %s/%s: %w", provider, userID, err)
	}
	defer rows.Close()

	record := &model.Record{
		Provider: provider,
		UserID:   userID,
		Fields:   make(map[string]string),
	}
	found := false

	for rows.Next() {
		var field, value, createdAt, updatedAt string
		var secret bool
		if err := rows.Scan(&field, &value, &secret, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan token field: %w", err)
		}
		found = true

		if secret {
			plaintext, err := r.codec.Decrypt(value)
			if err != nil {
				// Unreadable credential degrades to "not configured";
				// the warning is the only surface for the corruption.
				r.logger.Warn("stored credential unreadable, treating as absent",
					"provider", provider,
					"user_id", userID,
					"field", field,
					"error", err,
				)
				return nil, nil
			}
			value = plaintext
		}
		record.Fields[field] = value

		created, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		updated, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		if record.CreatedAt.IsZero() || created.Before(record.CreatedAt) {
			record.CreatedAt = created
		}
		if updated.After(record.UpdatedAt) {
			record.UpdatedAt = updated
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token fields: %w", err)
	}

	if !found {
		return nil, nil
	}
	return record, nil
}

// Delete removes the record for (provider, userID). The count is 1 when a
// record existed and 0 otherwise; deleting twice is not an error.
func (r *TokenRepo) Delete(ctx context.Context, provider, userID string) (int64, error) {
	if _, ok := r.registry.Get(provider); !ok {
		return 0, fmt.Errorf("delete token: %w: %q", driven.ErrUnknownProvider, provider)
	}

	res, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM tokens WHERE provider = ? AND user_id = ?`,
		provider, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete token %s/%s: %w", provider, userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete token rows affected: %w", err)
	}
	if affected > 0 {
		// Rows are per-field; the caller counts records.
		return 1, nil
	}
	return 0, nil
}

// ListUsers returns non-secret summaries of every record for the provider,
// most recently updated first. Secret field values never leave the database
// on this path.
func (r *TokenRepo) ListUsers(ctx context.Context, provider string) ([]model.UserSummary, error) {
	if _, ok := r.registry.Get(provider); !ok {
		return nil, fmt.Errorf("list users: %w: %q", driven.ErrUnknownProvider, provider)
	}

	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT user_id, field, value, secret, updated_at FROM tokens WHERE provider = ? ORDER BY updated_at DESC, user_id`,
		provider,
	)
	if err != nil {
		return nil, fmt.Errorf("list users for %s: %w", provider, err)
	}
	defer rows.Close()

	var order []string
	byUser := make(map[string]*model.UserSummary)

	for rows.Next() {
		var userID, field, value, updatedAt string
		var secret bool
		if err := rows.Scan(&userID, &field, &value, &secret, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}

		summary, seen := byUser[userID]
		if !seen {
			summary = &model.UserSummary{UserID: userID}
			byUser[userID] = summary
			order = append(order, userID)
		}

		updated, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		if updated.After(summary.UpdatedAt) {
			summary.UpdatedAt = updated
		}

		if secret {
			continue
		}
		switch field {
		case schema.FieldUsername:
			summary.Username = value
		case schema.FieldServerURL:
			summary.ServerURL = value
		case schema.FieldExpiry:
			summary.Expiry = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user summaries: %w", err)
	}

	summaries := make([]model.UserSummary, 0, len(order))
	for _, userID := range order {
		summaries = append(summaries, *byUser[userID])
	}
	return summaries, nil
}
