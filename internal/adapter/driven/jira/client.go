// Package jira implements the IssueTracker port using the go-jira library.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"golang.org/x/sync/errgroup"

	"github.com/agentvault/agentvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueTracker = (*Client)(nil)

// countsByTeamWorkers bounds the fan-out of CountsByTeam. The queries are
// independent read-only counts, so the only join point is the result map.
const countsByTeamWorkers = 10

// requestTimeout is the fixed timeout applied to every Jira HTTP call.
const requestTimeout = 15 * time.Second

// defaultTeamJQL counts the unresolved, untriaged backlog of one team.
const defaultTeamJQL = `"Team[Team]" = %q AND resolution = Unresolved AND labels in (untriaged) ORDER BY created DESC`

// Client implements the driven.IssueTracker port against a Jira instance
// using personal access token auth.
type Client struct {
	jira    *gojira.Client
	teamJQL string
}

// NewClient creates a Jira client for the given server with PAT bearer auth.
func NewClient(serverURL, token string) (*Client, error) {
	transport := &gojira.PATAuthTransport{Token: token}

	httpClient := transport.Client()
	httpClient.Timeout = requestTimeout

	client, err := gojira.NewClient(httpClient, serverURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client for %s: %w", serverURL, err)
	}

	return &Client{jira: client, teamJQL: defaultTeamJQL}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client, err := gojira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client for %s: %w", baseURL, err)
	}
	return &Client{jira: client, teamJQL: defaultTeamJQL}, nil
}

// CountIssues returns the total number of issues matching the JQL query.
// MaxResults is zero so the server returns only the count, not issue bodies.
func (c *Client) CountIssues(ctx context.Context, jql string) (int, error) {
	_, resp, err := c.jira.Issue.SearchWithContext(ctx, jql, &gojira.SearchOptions{MaxResults: 0})
	if err != nil {
		return 0, fmt.Errorf("count issues %q: %w", jql, err)
	}
	return resp.Total, nil
}

// CountsByTeam fans out one backlog count query per team across a bounded
// worker pool and joins the results into a map keyed by team name. The
// queries share no mutable state; the mutex guards only the result map.
func (c *Client) CountsByTeam(ctx context.Context, teams []string) (map[string]int, error) {
	counts := make(map[string]int, len(teams))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(countsByTeamWorkers)

	for _, team := range teams {
		g.Go(func() error {
			count, err := c.CountIssues(ctx, fmt.Sprintf(c.teamJQL, team))
			if err != nil {
				return fmt.Errorf("team %q: %w", team, err)
			}
			mu.Lock()
			counts[team] = count
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Me returns the display name of the authenticated user. Used to verify a
// stored credential still works against the instance.
func (c *Client) Me(ctx context.Context) (string, error) {
	user, _, err := c.jira.User.GetSelfWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("get authenticated jira user: %w", err)
	}
	return user.DisplayName, nil
}
