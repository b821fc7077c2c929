package model

import "time"

// Record is one (provider, user) credential record. Fields holds the
// record's values keyed by schema field name; secret fields are plaintext
// here — decryption happens at the store boundary, and callers must treat
// the values as transient process-local copies.
type Record struct {
	Provider  string
	UserID    string
	Fields    map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Field returns the named field value, or "" when absent.
func (r *Record) Field(name string) string {
	if r == nil {
		return ""
	}
	return r.Fields[name]
}

// UserSummary is the non-secret projection of a record used by listing
// endpoints and the CLI. Secret field values are never included.
type UserSummary struct {
	UserID    string
	Username  string
	ServerURL string
	Expiry    string
	UpdatedAt time.Time
}
