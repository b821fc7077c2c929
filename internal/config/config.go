// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/agentvault/agentvault/internal/crypto"
)

// OAuthClient is one provider's OAuth application credentials. A provider's
// OAuth flow is offered only when both values are present.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both client id and secret are set.
func (c OAuthClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// EncryptionKey is the base64-encoded 32-byte key for credential
	// encryption at rest. Required; the process must not start without it.
	EncryptionKey string
	DBPath        string
	ListenAddr    string
	CallbackBase  string

	GitHubOAuth OAuthClient
	GDriveOAuth OAuthClient

	// TriagerTeamsFile is an optional local teams-config path that puts
	// the triager in automation mode (no Drive credentials needed).
	TriagerTeamsFile string
}

// Load reads configuration from environment variables and returns a
// validated Config. AGENTVAULT_ENCRYPTION_KEY is required and validated up
// front so a misconfigured deployment fails before serving traffic.
// Optional variables with defaults: AGENTVAULT_LISTEN_ADDR (127.0.0.1:8089),
// AGENTVAULT_DB_PATH (agentvault.db), AGENTVAULT_CALLBACK_BASE
// (http://<listen_addr>). Per-provider OAuth pairs
// (AGENTVAULT_GITHUB_CLIENT_ID/SECRET, AGENTVAULT_GDRIVE_CLIENT_ID/SECRET)
// are optional; absence disables that provider's OAuth flow.
func Load() (*Config, error) {
	key := os.Getenv("AGENTVAULT_ENCRYPTION_KEY")
	if key == "" {
		return nil, crypto.ErrKeyMissing
	}
	// Validate the key shape now rather than on first write.
	if _, err := crypto.NewCodec(key); err != nil {
		return nil, fmt.Errorf("AGENTVAULT_ENCRYPTION_KEY invalid: %w", err)
	}

	listenAddr := "127.0.0.1:8089"
	if v, ok := os.LookupEnv("AGENTVAULT_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "agentvault.db"
	if v, ok := os.LookupEnv("AGENTVAULT_DB_PATH"); ok {
		dbPath = v
	}

	callbackBase := "http://" + listenAddr
	if v, ok := os.LookupEnv("AGENTVAULT_CALLBACK_BASE"); ok {
		callbackBase = v
	}

	return &Config{
		EncryptionKey: key,
		DBPath:        dbPath,
		ListenAddr:    listenAddr,
		CallbackBase:  callbackBase,
		GitHubOAuth: OAuthClient{
			ClientID:     os.Getenv("AGENTVAULT_GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("AGENTVAULT_GITHUB_CLIENT_SECRET"),
		},
		GDriveOAuth: OAuthClient{
			ClientID:     os.Getenv("AGENTVAULT_GDRIVE_CLIENT_ID"),
			ClientSecret: os.Getenv("AGENTVAULT_GDRIVE_CLIENT_SECRET"),
		},
		TriagerTeamsFile: os.Getenv("AGENTVAULT_TRIAGER_TEAMS_FILE"),
	}, nil
}
