// Package httphandler is the HTTP driving adapter: the OAuth callback
// endpoints that write into the token store and the admin API that lists
// and revokes stored credentials.
package httphandler

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentvault/agentvault/internal/application"
	"github.com/agentvault/agentvault/internal/domain/port/driven"
)

// Handler serves the OAuth callback and admin endpoints.
type Handler struct {
	store        driven.TokenStore
	oauth        *OAuthRegistry
	agents       *application.CheckerSet
	callbackBase string
	logger       *slog.Logger
}

// NewHandler creates a Handler. callbackBase is the externally visible base
// URL used to reconstruct the redirect URI during code exchange.
func NewHandler(store driven.TokenStore, oauth *OAuthRegistry, agents *application.CheckerSet, callbackBase string, logger *slog.Logger) *Handler {
	return &Handler{
		store:        store,
		oauth:        oauth,
		agents:       agents,
		callbackBase: callbackBase,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", h.Status)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /oauth/callback/{provider}", h.OAuthCallback)
	mux.HandleFunc("GET /api/v1/tokens/{provider}", h.ListTokens)
	mux.HandleFunc("DELETE /api/v1/tokens/{provider}/{user}", h.RevokeToken)
	mux.HandleFunc("GET /api/v1/agents/{agent}/configured", h.AgentConfigured)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Status reports the server state and which providers offer OAuth.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Service: "agentvault",
		Status:  "running",
		Providers: ProvidersBlock{
			All:        h.oauth.All(),
			Configured: h.oauth.Configured(),
		},
	})
}

// Health is the liveness endpoint for container probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// OAuthCallback handles a provider redirect: it exchanges the authorization
// code for credential fields and upserts the user's record. The state query
// parameter carries the user id that initiated the flow. The response is a
// small HTML page the user sees in their browser.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")

	provider, ok := h.oauth.Get(name)
	if !ok || !provider.Configured() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("provider %q not available", name))
		return
	}

	code := r.URL.Query().Get("code")
	userID := r.URL.Query().Get("state")
	if code == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing code or state parameter")
		return
	}

	redirectURI := h.callbackBase + "/oauth/callback/" + name

	fields, err := provider.Exchange(r.Context(), code, redirectURI)
	if err != nil {
		h.logger.Error("oauth exchange failed", "provider", name, "user_id", userID, "error", err)
		h.renderResult(w, http.StatusBadGateway, name, "Authentication failed", "The authorization code could not be exchanged. Please try again.")
		return
	}

	result, err := h.store.Upsert(r.Context(), name, userID, fields)
	if err != nil {
		h.logger.Error("token upsert failed", "provider", name, "user_id", userID, "error", err)
		h.renderResult(w, http.StatusInternalServerError, name, "Storage failed", "Your credentials could not be saved. Please try again.")
		return
	}
	if !result.OK {
		h.logger.Error("token upsert rejected",
			"provider", name,
			"user_id", userID,
			"reason", result.Reason,
			"field", result.Field,
		)
		h.renderResult(w, http.StatusInternalServerError, name, "Storage failed", "Your credentials could not be saved. Please try again.")
		return
	}

	if h.agents != nil {
		h.agents.InvalidateUser(userID)
	}

	h.logger.Info("oauth credentials stored", "provider", name, "user_id", userID)
	h.renderResult(w, http.StatusOK, name, "Authentication successful",
		"You can close this window and return to the chat.")
}

// AgentConfigured reports whether a user holds every credential an agent
// requires. Agents call this before offering provider-backed capabilities
// and prompt for authentication when it is false.
func (h *Handler) AgentConfigured(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id parameter")
		return
	}

	if h.agents == nil {
		writeError(w, http.StatusNotFound, "no agents registered")
		return
	}
	checker, ok := h.agents.Get(agent)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", agent))
		return
	}

	writeJSON(w, http.StatusOK, ConfiguredResponse{
		Agent:      agent,
		UserID:     userID,
		Configured: checker.IsConfigured(r.Context(), userID),
	})
}

// ListTokens returns non-secret summaries of every record for a provider.
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	summaries, err := h.store.ListUsers(r.Context(), provider)
	if err != nil {
		if isUnknownProvider(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown provider %q", provider))
			return
		}
		h.logger.Error("failed to list tokens", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]TokenSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toTokenSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RevokeToken deletes a user's record for a provider. Revoking an absent
// record is a 404; the delete itself is idempotent at the store level.
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	userID := r.PathValue("user")

	deleted, err := h.store.Delete(r.Context(), provider, userID)
	if err != nil {
		if isUnknownProvider(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown provider %q", provider))
			return
		}
		h.logger.Error("failed to revoke token", "provider", provider, "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if deleted == 0 {
		writeError(w, http.StatusNotFound, "no credentials stored")
		return
	}

	if h.agents != nil {
		h.agents.InvalidateUser(userID)
	}

	h.logger.Info("token revoked", "provider", provider, "user_id", userID)
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// renderResult writes the small HTML page shown in the user's browser after
// an OAuth redirect.
func (h *Handler) renderResult(w http.ResponseWriter, status int, provider, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w,
		`<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>Provider: %s</p><p>%s</p></body></html>`,
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(provider), html.EscapeString(detail),
	)
}

func isUnknownProvider(err error) bool {
	return errors.Is(err, driven.ErrUnknownProvider)
}
