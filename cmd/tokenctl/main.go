// Command tokenctl inspects and manages credential records directly against
// the database. Secret values are never printed.
//
// Usage:
//
//	tokenctl list                      list records for every provider
//	tokenctl users --provider jira     list user ids for one provider
//	tokenctl details USER_ID           show records held for a user
//	tokenctl delete USER_ID            delete all of a user's records
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	sqliteadapter "github.com/agentvault/agentvault/internal/adapter/driven/sqlite"
	"github.com/agentvault/agentvault/internal/crypto"
	"github.com/agentvault/agentvault/internal/domain/model"
	"github.com/agentvault/agentvault/internal/domain/port/driven"
	"github.com/agentvault/agentvault/internal/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := pflag.String("db", "agentvault.db", "path to the database file")
	provider := pflag.String("provider", "", "restrict to one provider")
	pflag.Parse()

	if pflag.NArg() < 1 {
		return fmt.Errorf("usage: tokenctl [flags] list|users|details|delete [args]")
	}
	command := pflag.Arg(0)

	_ = godotenv.Load()

	codec, err := crypto.NewCodec(os.Getenv("AGENTVAULT_ENCRYPTION_KEY"))
	if err != nil {
		return err
	}

	if _, err := os.Stat(*dbPath); err != nil {
		return fmt.Errorf("database not found: %s (run the server first to create it)", *dbPath)
	}

	db, err := sqliteadapter.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := schema.Defaults()
	store := sqliteadapter.NewTokenRepo(db, codec, registry, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx := context.Background()

	providers := registry.Providers()
	if *provider != "" {
		if _, ok := registry.Get(*provider); !ok {
			return fmt.Errorf("unknown provider %q (known: %v)", *provider, providers)
		}
		providers = []string{*provider}
	}

	switch command {
	case "list":
		return listTokens(ctx, store, providers)
	case "users":
		return listUsers(ctx, store, providers)
	case "details":
		if pflag.NArg() < 2 {
			return fmt.Errorf("usage: tokenctl details USER_ID")
		}
		return showDetails(ctx, store, providers, pflag.Arg(1))
	case "delete":
		if pflag.NArg() < 2 {
			return fmt.Errorf("usage: tokenctl delete USER_ID")
		}
		return deleteUser(ctx, store, providers, pflag.Arg(1))
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func listTokens(ctx context.Context, store driven.TokenStore, providers []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, provider := range providers {
		summaries, err := store.ListUsers(ctx, provider)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\t(%d records)\n", provider, len(summaries))
		fmt.Fprintln(w, "  USER\tUSERNAME\tSERVER\tUPDATED")
		for _, s := range summaries {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				s.UserID, s.Username, s.ServerURL, s.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func listUsers(ctx context.Context, store driven.TokenStore, providers []string) error {
	seen := make(map[string]bool)
	for _, provider := range providers {
		summaries, err := store.ListUsers(ctx, provider)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			if !seen[s.UserID] {
				seen[s.UserID] = true
				fmt.Println(s.UserID)
			}
		}
	}
	return nil
}

func showDetails(ctx context.Context, store driven.TokenStore, providers []string, userID string) error {
	found := false
	for _, provider := range providers {
		record, err := store.Get(ctx, provider, userID)
		if err != nil {
			return err
		}
		if record == nil {
			continue
		}
		found = true

		fmt.Printf("%s:\n", provider)
		fmt.Printf("  created: %s\n", record.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  updated: %s\n", record.UpdatedAt.Format(time.RFC3339))
		printNonSecretFields(record)
	}

	if !found {
		fmt.Printf("no records for user %q\n", userID)
	}
	return nil
}

// printNonSecretFields prints plaintext metadata fields only; secret values
// are reported by presence, never by content.
func printNonSecretFields(record *model.Record) {
	for _, name := range []string{schema.FieldServerURL, schema.FieldUsername, schema.FieldExpiry} {
		if v := record.Field(name); v != "" {
			fmt.Printf("  %s: %s\n", name, v)
		}
	}
	for _, name := range []string{schema.FieldToken, schema.FieldAccessToken, schema.FieldRefreshToken} {
		if record.Field(name) != "" {
			fmt.Printf("  %s: (set)\n", name)
		}
	}
}

func deleteUser(ctx context.Context, store driven.TokenStore, providers []string, userID string) error {
	var total int64
	for _, provider := range providers {
		deleted, err := store.Delete(ctx, provider, userID)
		if err != nil {
			return err
		}
		total += deleted
	}
	fmt.Printf("deleted %d record(s) for user %q\n", total, userID)
	return nil
}
