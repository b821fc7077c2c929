package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	googleep "golang.org/x/oauth2/google"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	gdriveadapter "github.com/agentvault/agentvault/internal/adapter/driven/gdrive"
	githubadapter "github.com/agentvault/agentvault/internal/adapter/driven/github"
	jiraadapter "github.com/agentvault/agentvault/internal/adapter/driven/jira"
	sqliteadapter "github.com/agentvault/agentvault/internal/adapter/driven/sqlite"
	httphandler "github.com/agentvault/agentvault/internal/adapter/driving/http"
	"github.com/agentvault/agentvault/internal/application"
	"github.com/agentvault/agentvault/internal/config"
	"github.com/agentvault/agentvault/internal/crypto"
	"github.com/agentvault/agentvault/internal/domain/model"
	"github.com/agentvault/agentvault/internal/domain/port/driven"
	"github.com/agentvault/agentvault/internal/schema"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	bootstrapJira := pflag.Bool("bootstrap-jira", false, "seed the automation user's Jira credentials from env and exit")
	pflag.Parse()

	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	// 1. Load configuration. A missing or malformed encryption key is
	// fatal here: the store never operates unencrypted.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"callback_base", cfg.CallbackBase,
	)

	codec, err := crypto.NewCodec(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	registry := schema.Defaults()

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// 4. Wire the token store.
	store := sqliteadapter.NewTokenRepo(db, codec, registry, slog.Default())

	if *bootstrapJira {
		return bootstrapJiraUser(ctx, store)
	}

	// 5. Toolkit configs, one per agent. Each lazily builds and caches a
	// provider client from the user's stored credentials.
	agents := application.NewCheckerSet(
		newJiraConfig(store),
		newTriagerConfig(cfg, store),
		newReleaseManagerConfig(store),
		newStoreManagerConfig(cfg, store),
	)

	// 6. OAuth providers: offered only when their client pair is set.
	oauthRegistry := httphandler.NewOAuthRegistry(
		httphandler.NewGitHubOAuth(cfg.GitHubOAuth),
		httphandler.NewGDriveOAuth(cfg.GDriveOAuth),
	)
	slog.Info("oauth providers", "configured", oauthRegistry.Configured())

	// 7. HTTP server: OAuth callbacks plus the admin token API.
	apiHandler := httphandler.NewHandler(store, oauthRegistry, agents, cfg.CallbackBase, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("agentvault started", "providers", registry.Providers())

	// 8. Wait for shutdown signal, then drain.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newJiraConfig serves agents that need only a Jira credential.
func newJiraConfig(store driven.TokenStore) *application.ToolkitConfig[driven.IssueTracker] {
	return application.NewToolkitConfig("jira", store, []string{schema.ProviderJira},
		func(ctx context.Context, records map[string]*model.Record) (driven.IssueTracker, error) {
			rec := records[schema.ProviderJira]
			return jiraadapter.NewClient(rec.Field(schema.FieldServerURL), rec.Field(schema.FieldToken))
		}, slog.Default())
}

// newTriagerConfig serves the ticket triager. In interactive mode the team
// configuration lives in Drive, so both Jira and Drive credentials are
// required; with a local teams file only Jira is needed (automation mode).
func newTriagerConfig(cfg *config.Config, store driven.TokenStore) *application.ToolkitConfig[application.TriagerToolkit] {
	providers := []string{schema.ProviderJira, schema.ProviderGDrive}
	if cfg.TriagerTeamsFile != "" {
		providers = []string{schema.ProviderJira}
	}

	return application.NewToolkitConfig("jira-triager", store, providers,
		func(ctx context.Context, records map[string]*model.Record) (application.TriagerToolkit, error) {
			rec := records[schema.ProviderJira]
			tracker, err := jiraadapter.NewClient(rec.Field(schema.FieldServerURL), rec.Field(schema.FieldToken))
			if err != nil {
				return application.TriagerToolkit{}, err
			}

			toolkit := application.TriagerToolkit{Tracker: tracker}
			if driveRec, ok := records[schema.ProviderGDrive]; ok {
				docs, err := newDriveClient(ctx, cfg, driveRec)
				if err != nil {
					return application.TriagerToolkit{}, err
				}
				toolkit.Docs = docs
			}
			return toolkit, nil
		}, slog.Default())
}

// newReleaseManagerConfig serves the release manager, which needs GitHub.
func newReleaseManagerConfig(store driven.TokenStore) *application.ToolkitConfig[driven.RepoHost] {
	return application.NewToolkitConfig("release-manager", store, []string{schema.ProviderGitHub},
		func(ctx context.Context, records map[string]*model.Record) (driven.RepoHost, error) {
			rec := records[schema.ProviderGitHub]
			return githubadapter.NewClient(rec.Field(schema.FieldAccessToken)), nil
		}, slog.Default())
}

// newStoreManagerConfig serves the store manager, which reads workbooks from Drive.
func newStoreManagerConfig(cfg *config.Config, store driven.TokenStore) *application.ToolkitConfig[driven.DocumentStore] {
	return application.NewToolkitConfig("store-manager", store, []string{schema.ProviderGDrive},
		func(ctx context.Context, records map[string]*model.Record) (driven.DocumentStore, error) {
			return newDriveClient(ctx, cfg, records[schema.ProviderGDrive])
		}, slog.Default())
}

func newDriveClient(ctx context.Context, cfg *config.Config, rec *model.Record) (driven.DocumentStore, error) {
	creds := gdriveadapter.Credentials{
		AccessToken:  rec.Field(schema.FieldAccessToken),
		RefreshToken: rec.Field(schema.FieldRefreshToken),
	}
	if raw := rec.Field(schema.FieldExpiry); raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored expiry: %w", err)
		}
		creds.Expiry = expiry
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveOAuth.ClientID,
		ClientSecret: cfg.GDriveOAuth.ClientSecret,
		Endpoint:     googleep.Endpoint,
	}
	return gdriveadapter.NewClient(ctx, conf, creds)
}

// bootstrapJiraUser seeds the automation user's Jira record from env vars,
// for ephemeral CI databases where tokens arrive as individual secrets.
func bootstrapJiraUser(ctx context.Context, store driven.TokenStore) error {
	token := os.Getenv("AGENTVAULT_JIRA_TOKEN")
	if token == "" {
		return errors.New("AGENTVAULT_JIRA_TOKEN is required for --bootstrap-jira")
	}

	serverURL := os.Getenv("AGENTVAULT_JIRA_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://issues.redhat.com"
	}

	userID := os.Getenv("AGENTVAULT_JIRA_USER_ID")
	if userID == "" {
		userID = "jira-triager-bot"
	}

	result, err := store.Upsert(ctx, schema.ProviderJira, userID, map[string]string{
		schema.FieldToken:     token,
		schema.FieldServerURL: serverURL,
	})
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("bootstrap rejected: %s (%s)", result.Reason, result.Field)
	}

	slog.Info("jira credentials seeded", "user_id", userID, "server_url", serverURL)
	return nil
}
