// Package workflow models the transition structure of a single issue:
// its current status and the moves the upstream workflow allows from it.
package workflow

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/jira-bridge/internal/jira"
)

// Edge is one legal move out of the current status.
type Edge struct {
	ID   string
	Name string
	To   string
}

// Graph is the reachable-transition view of one issue at one moment.
// It only ever holds the current status and its outgoing edges; the
// upstream never exposes the full workflow in one call, and a stale
// wider view would be worse than a narrow fresh one.
type Graph struct {
	IssueKey string
	Current  string
	Edges    []Edge
}

// TransitionError reports a requested move the workflow does not allow
// from the issue's current status.
type TransitionError struct {
	IssueKey  string
	Requested string
	Current   string
	Legal     []string
}

func (e *TransitionError) Error() string {
	if len(e.Legal) == 0 {
		return fmt.Sprintf("issue %s is in terminal status %q, no transitions available", e.IssueKey, e.Current)
	}
	return fmt.Sprintf("transition %q is not available for %s in status %q, available: %s",
		e.Requested, e.IssueKey, e.Current, strings.Join(e.Legal, ", "))
}

// NewGraph builds the transition view for an issue from its current
// status and the upstream's available transitions.
func NewGraph(issueKey, current string, transitions []jira.Transition) *Graph {
	edges := make([]Edge, 0, len(transitions))
	for _, t := range transitions {
		edges = append(edges, Edge{ID: t.ID, Name: t.Name, To: t.To.Name})
	}
	return &Graph{IssueKey: issueKey, Current: current, Edges: edges}
}

// Resolve matches a requested transition against the outgoing edges:
// case-insensitively by name, or exactly by ID. Name matches take the
// first edge in upstream order when duplicates exist.
func (g *Graph) Resolve(requested string) (Edge, error) {
	for _, e := range g.Edges {
		if strings.EqualFold(e.Name, requested) || e.ID == requested {
			return e, nil
		}
	}
	return Edge{}, &TransitionError{
		IssueKey:  g.IssueKey,
		Requested: requested,
		Current:   g.Current,
		Legal:     g.LegalNames(),
	}
}

// LegalNames lists the names of all outgoing edges in upstream order.
func (g *Graph) LegalNames() []string {
	names := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		names = append(names, e.Name)
	}
	return names
}

// Terminal reports whether the issue has no outgoing transitions.
func (g *Graph) Terminal() bool {
	return len(g.Edges) == 0
}
