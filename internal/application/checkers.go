package application

import (
	"context"

	"github.com/agentvault/agentvault/internal/domain/port/driven"
)

// Checker is the boundary the HTTP layer sees of a ToolkitConfig: enough to
// answer "is this agent usable for this user" and to drop cached clients
// after a credential change.
type Checker interface {
	Agent() string
	IsConfigured(ctx context.Context, userID string) bool
	Invalidate(userID string)
}

// CheckerSet indexes the agent configs by name. Construction order is
// preserved for listings.
type CheckerSet struct {
	byAgent map[string]Checker
	order   []string
}

// NewCheckerSet builds a set from the given checkers.
func NewCheckerSet(checkers ...Checker) *CheckerSet {
	s := &CheckerSet{byAgent: make(map[string]Checker, len(checkers))}
	for _, c := range checkers {
		s.byAgent[c.Agent()] = c
		s.order = append(s.order, c.Agent())
	}
	return s
}

// Get returns the checker for the named agent.
func (s *CheckerSet) Get(agent string) (Checker, bool) {
	c, ok := s.byAgent[agent]
	return c, ok
}

// Agents returns all agent names in construction order.
func (s *CheckerSet) Agents() []string {
	return append([]string(nil), s.order...)
}

// InvalidateUser drops every agent's cached toolkit for the user. Called
// after an upsert or revoke so the next use rebuilds from fresh records.
func (s *CheckerSet) InvalidateUser(userID string) {
	for _, agent := range s.order {
		s.byAgent[agent].Invalidate(userID)
	}
}

// TriagerToolkit bundles the clients the ticket triager needs: the issue
// tracker always, and the document store only in interactive mode where the
// team configuration lives in Drive.
type TriagerToolkit struct {
	Tracker driven.IssueTracker
	Docs    driven.DocumentStore
}
