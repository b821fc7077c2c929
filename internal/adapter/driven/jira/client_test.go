package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSearchServer serves /rest/api/2/search with a canned total per team name
// found in the jql parameter, and /rest/api/2/myself with a fixed user.
func newSearchServer(t *testing.T, totals map[string]int, requests *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		jql := r.URL.Query().Get("jql")
		total := -1
		for team, count := range totals {
			if strings.Contains(jql, team) {
				total = count
				break
			}
		}
		if total < 0 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errorMessages":["unknown team"]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"startAt":0,"maxResults":0,"total":%d,"issues":[]}`, total)
	})
	mux.HandleFunc("/rest/api/2/myself", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"triager-bot","displayName":"Triager Bot"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCountIssues(t *testing.T) {
	srv := newSearchServer(t, map[string]int{"Platform": 7}, nil)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	count, err := client.CountIssues(context.Background(), fmt.Sprintf(defaultTeamJQL, "Platform"))
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestCountsByTeam(t *testing.T) {
	totals := map[string]int{
		"Platform":   7,
		"Storage":    0,
		"Networking": 42,
	}
	var requests atomic.Int64
	srv := newSearchServer(t, totals, &requests)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	counts, err := client.CountsByTeam(context.Background(), []string{"Platform", "Storage", "Networking"})
	require.NoError(t, err)
	assert.Equal(t, totals, counts)
	assert.Equal(t, int64(3), requests.Load(), "one search per team")
}

func TestCountsByTeam_Empty(t *testing.T) {
	srv := newSearchServer(t, nil, nil)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	counts, err := client.CountsByTeam(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCountsByTeam_QueryFailure(t *testing.T) {
	// Only one of the two teams is known to the server.
	srv := newSearchServer(t, map[string]int{"Platform": 7}, nil)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = client.CountsByTeam(context.Background(), []string{"Platform", "Ghosts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghosts")
}

func TestMe(t *testing.T) {
	srv := newSearchServer(t, nil, nil)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	name, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Triager Bot", name)
}
