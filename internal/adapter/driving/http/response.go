package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentvault/agentvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse describes the server and its providers on the root endpoint.
type StatusResponse struct {
	Service   string         `json:"service"`
	Status    string         `json:"status"`
	Providers ProvidersBlock `json:"providers"`
}

// ProvidersBlock lists all known providers and the subset with OAuth configured.
type ProvidersBlock struct {
	All        []string `json:"all"`
	Configured []string `json:"configured"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// TokenSummaryResponse is the non-secret JSON projection of one credential
// record. Secret values are never serialized on any endpoint.
type TokenSummaryResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	ServerURL string `json:"server_url,omitempty"`
	Expiry    string `json:"expiry,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// ConfiguredResponse answers the per-agent configuration check.
type ConfiguredResponse struct {
	Agent      string `json:"agent"`
	UserID     string `json:"user_id"`
	Configured bool   `json:"configured"`
}

// DeleteResponse reports how many records a revoke removed.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// toTokenSummaryResponse converts a domain UserSummary to its JSON representation.
func toTokenSummaryResponse(s model.UserSummary) TokenSummaryResponse {
	return TokenSummaryResponse{
		UserID:    s.UserID,
		Username:  s.Username,
		ServerURL: s.ServerURL,
		Expiry:    s.Expiry,
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
