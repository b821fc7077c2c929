package driven

import (
	"context"
	"errors"

	"github.com/agentvault/agentvault/internal/domain/model"
)

// ErrUnknownProvider is returned by every TokenStore operation when the
// provider name was never registered. Unknown providers are a wiring bug,
// not a user error, so this is a hard error rather than a soft failure.
var ErrUnknownProvider = errors.New("unknown provider")

// UpsertReason classifies why an upsert was rejected at the validation
// boundary. Empty on success.
type UpsertReason string

const (
	ReasonUnknownField  UpsertReason = "unknown_field"
	ReasonMissingField  UpsertReason = "missing_field"
	ReasonEncryptFailed UpsertReason = "encrypt_failed"
)

// UpsertResult is the soft-fail boundary of Upsert: validation and codec
// failures set OK=false with a reason instead of returning an error, so
// callers branch on one value and report the reason upstream.
type UpsertResult struct {
	OK     bool
	Reason UpsertReason
	// Field names the offending field for validation reasons.
	Field string
}

// TokenStore defines the driven port for encrypted credential persistence,
// keyed by (provider, user_id). Secret fields are ciphertext at rest; this
// interface operates on plaintext at the domain boundary.
type TokenStore interface {
	// Upsert validates fields against the provider's schema, encrypts
	// secret fields, and replaces the whole record in one transaction.
	// Replacement never merges: fields absent from this call are gone.
	// Validation and encryption failures are soft (UpsertResult.OK=false);
	// the error return is reserved for storage I/O and unknown providers.
	Upsert(ctx context.Context, provider, userID string, fields map[string]string) (UpsertResult, error)

	// Get returns the decrypted record, or nil when no record exists.
	// A record whose ciphertext cannot be decrypted is logged and treated
	// as absent, which routes callers into the normal re-auth prompt path.
	Get(ctx context.Context, provider, userID string) (*model.Record, error)

	// Delete removes the record. It is idempotent: the count is 1 when a
	// record existed and 0 otherwise.
	Delete(ctx context.Context, provider, userID string) (int64, error)

	// ListUsers returns non-secret summaries of every record held for the
	// provider, most recently updated first.
	ListUsers(ctx context.Context, provider string) ([]model.UserSummary, error)
}
