// Package gdrive implements the DocumentStore port using the Google Drive v3 API.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/agentvault/agentvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DocumentStore = (*Client)(nil)

// Client implements the driven.DocumentStore port over the Drive v3 API.
type Client struct {
	svc *drive.Service
}

// Credentials is the decrypted OAuth state needed to talk to Drive on a
// user's behalf. Expiry may be zero when unknown; RefreshToken may be empty,
// in which case the access token is used until it expires.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// NewClient creates a Drive client from stored OAuth credentials. The
// oauth2 config (client id/secret) enables automatic refresh when a refresh
// token is present; refreshed access tokens are not written back to the
// store — stale stored tokens are detected lazily on the next use.
func NewClient(ctx context.Context, conf *oauth2.Config, creds Credentials) (*Client, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.Expiry,
		TokenType:    "Bearer",
	}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// NewClientWithService wraps an existing Drive service, for tests.
func NewClientWithService(svc *drive.Service) *Client {
	return &Client{svc: svc}
}

// ListFolder returns the names of non-trashed files directly under a folder.
func (c *Client) ListFolder(ctx context.Context, folderID string) ([]string, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	var names []string
	pageToken := ""
	for {
		call := c.svc.Files.List().Context(ctx).Q(query).Fields("nextPageToken, files(name)").PageSize(100)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		for _, f := range list.Files {
			names = append(names, f.Name)
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	return names, nil
}

// ReadFile downloads a file's content by ID.
func (c *Client) ReadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return data, nil
}
