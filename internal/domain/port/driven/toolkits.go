package driven

import "context"

// IssueTracker defines the driven port for the Jira toolkit. Only the
// operations the agents actually call are modeled; everything else stays
// behind the concrete client.
type IssueTracker interface {
	// CountIssues returns the number of issues matching the JQL query.
	CountIssues(ctx context.Context, jql string) (int, error)
	// CountsByTeam fans out one count query per team across a bounded
	// worker pool and joins the results into a map keyed by team name.
	CountsByTeam(ctx context.Context, teams []string) (map[string]int, error)
	// Me returns the display name of the authenticated user, used to
	// verify a stored credential still works.
	Me(ctx context.Context) (string, error)
}

// RepoHost defines the driven port for the GitHub toolkit.
type RepoHost interface {
	// AuthenticatedLogin returns the login of the token's owner.
	AuthenticatedLogin(ctx context.Context) (string, error)
	// LatestRelease returns the tag name of a repository's latest release.
	LatestRelease(ctx context.Context, owner, repo string) (string, error)
}

// DocumentStore defines the driven port for the Google Drive toolkit.
type DocumentStore interface {
	// ListFolder returns the names of files directly under a folder.
	ListFolder(ctx context.Context, folderID string) ([]string, error)
	// ReadFile downloads a file's content by ID.
	ReadFile(ctx context.Context, fileID string) ([]byte, error)
}
