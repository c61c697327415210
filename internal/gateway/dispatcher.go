// Package gateway dispatches tool invocations: schema validation,
// credential resolution, workflow checks, upstream execution, and
// result normalization, with failures mapped to a fixed error
// taxonomy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/bobmcallan/jira-bridge/internal/catalog"
	"github.com/bobmcallan/jira-bridge/internal/common"
	"github.com/bobmcallan/jira-bridge/internal/creds"
	"github.com/bobmcallan/jira-bridge/internal/jira"
	"github.com/bobmcallan/jira-bridge/internal/workflow"
)

// Dispatcher is the gateway entry point. Each Dispatch processes one
// tool call to completion: no queuing, no retries beyond the upstream
// client's own, exactly one result per invocation. Dispatchers are safe
// for concurrent use.
type Dispatcher struct {
	catalog  *catalog.Catalog
	resolver *creds.Resolver
	client   *jira.Client
	logger   *common.Logger
}

// NewDispatcher wires the dispatcher over a loaded catalog, a credential
// resolver, and the upstream client sharing that resolver.
func NewDispatcher(cat *catalog.Catalog, resolver *creds.Resolver, client *jira.Client, logger *common.Logger) *Dispatcher {
	return &Dispatcher{catalog: cat, resolver: resolver, client: client, logger: logger}
}

// Dispatch runs one tool call end to end and returns its terminal
// result. Validation happens before any credential or network work so
// malformed calls never touch the upstream.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) Result {
	log := d.logger.WithCorrelationId(uuid.New().String())
	log.Debug().Str("tool", call.Name).Msg("dispatching tool call")

	tool, ok := d.catalog.Lookup(call.Name)
	if !ok {
		log.Warn().Str("tool", call.Name).Msg("unknown tool")
		return Result{Status: "error", Err: &Error{
			Kind:    KindUnknownTool,
			Message: fmt.Sprintf("unknown tool %q", call.Name),
		}}
	}

	args, err := catalog.ValidateArgs(tool, call.Args)
	if err != nil {
		log.Warn().Str("tool", call.Name).Str("error", err.Error()).Msg("argument validation failed")
		return failure(err)
	}

	cred, err := d.resolver.Resolve(ctx)
	if err != nil {
		log.Error().Str("tool", call.Name).Str("error", err.Error()).Msg("credential resolution failed")
		return failure(err)
	}

	data, err := d.execute(ctx, call.Name, args, cred.BaseURL)
	if err != nil {
		log.Warn().Str("tool", call.Name).Str("error", err.Error()).Msg("tool call failed")
		return failure(err)
	}

	log.Debug().Str("tool", call.Name).Msg("tool call completed")
	return success(data)
}

func (d *Dispatcher) execute(ctx context.Context, name string, args map[string]interface{}, baseURL string) (map[string]interface{}, error) {
	switch name {
	case "jira_search_issues":
		return d.searchIssues(ctx, args, baseURL)
	case "jira_get_issue":
		return d.getIssue(ctx, args, baseURL)
	case "jira_create_issue":
		return d.createIssue(ctx, args, baseURL)
	case "jira_update_issue":
		return d.updateIssue(ctx, args)
	case "jira_add_comment":
		return d.addComment(ctx, args)
	case "jira_transition_issue":
		return d.transitionIssue(ctx, args)
	case "jira_get_transitions":
		return d.getTransitions(ctx, args)
	case "jira_list_projects":
		return d.listProjects(ctx, args, baseURL)
	}
	// Catalog and dispatch table out of sync.
	return nil, fmt.Errorf("tool %q has no handler", name)
}

func (d *Dispatcher) searchIssues(ctx context.Context, args map[string]interface{}, baseURL string) (map[string]interface{}, error) {
	max := catalog.IntArg(args, "max_results")
	if max < 1 {
		max = 50
	}
	pageSize := max
	if pageSize > 50 {
		pageSize = 50
	}

	pager := d.client.Search(jira.SearchRequest{
		JQL:      catalog.StringArg(args, "jql"),
		Fields:   catalog.StringsArg(args, "fields"),
		PageSize: pageSize,
	})
	issues, more, err := collectIssues(ctx, baseURL, pager, max)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"total_returned": len(issues),
		"more_available": more,
		"issues":         issues,
	}, nil
}

func (d *Dispatcher) getIssue(ctx context.Context, args map[string]interface{}, baseURL string) (map[string]interface{}, error) {
	key := catalog.StringArg(args, "issue_key")
	expand := catalog.StringsArg(args, "expand")

	withComments := false
	upstreamExpand := make([]string, 0, len(expand))
	for _, e := range expand {
		// Comments arrive as an issue field, not an expand option.
		if e == "comments" {
			withComments = true
			continue
		}
		upstreamExpand = append(upstreamExpand, e)
	}

	issue, err := d.client.GetIssue(ctx, key, upstreamExpand)
	if err != nil {
		return nil, err
	}

	data := normalizeIssue(baseURL, issue)
	if withComments {
		comments := normalizeComments(issue.Fields.Comment)
		if comments == nil {
			comments = []map[string]interface{}{}
		}
		data["comments"] = comments
	}
	return data, nil
}

func (d *Dispatcher) createIssue(ctx context.Context, args map[string]interface{}, baseURL string) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		"project":   map[string]interface{}{"key": catalog.StringArg(args, "project")},
		"summary":   catalog.StringArg(args, "summary"),
		"issuetype": map[string]interface{}{"name": catalog.StringArg(args, "issue_type")},
	}
	if desc := catalog.StringArg(args, "description"); desc != "" {
		fields["description"] = jira.ADFDocument(desc)
	}
	if priority := catalog.StringArg(args, "priority"); priority != "" {
		fields["priority"] = map[string]interface{}{"name": priority}
	}
	if assignee := catalog.StringArg(args, "assignee"); assignee != "" {
		fields["assignee"] = map[string]interface{}{"name": assignee}
	}
	if labels := catalog.StringsArg(args, "labels"); len(labels) > 0 {
		fields["labels"] = labels
	}

	created, err := d.client.CreateIssue(ctx, fields)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"key":     created.Key,
		"summary": catalog.StringArg(args, "summary"),
		"url":     baseURL + "/browse/" + created.Key,
	}, nil
}

func (d *Dispatcher) updateIssue(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	key := catalog.StringArg(args, "issue_key")

	fields := map[string]interface{}{}
	var updated []string
	if catalog.HasArg(args, "summary") {
		fields["summary"] = catalog.StringArg(args, "summary")
		updated = append(updated, "summary")
	}
	if catalog.HasArg(args, "description") {
		fields["description"] = jira.ADFDocument(catalog.StringArg(args, "description"))
		updated = append(updated, "description")
	}
	if catalog.HasArg(args, "priority") {
		fields["priority"] = map[string]interface{}{"name": catalog.StringArg(args, "priority")}
		updated = append(updated, "priority")
	}
	if catalog.HasArg(args, "assignee") {
		fields["assignee"] = map[string]interface{}{"name": catalog.StringArg(args, "assignee")}
		updated = append(updated, "assignee")
	}
	if catalog.HasArg(args, "labels") {
		fields["labels"] = catalog.StringsArg(args, "labels")
		updated = append(updated, "labels")
	}

	if len(fields) == 0 {
		return nil, &catalog.ValidationError{
			Param:   "summary",
			Rule:    catalog.RuleMissing,
			Message: "at least one field to update must be provided",
		}
	}

	if err := d.client.UpdateIssue(ctx, key, fields); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"key":            key,
		"updated_fields": updated,
	}, nil
}

func (d *Dispatcher) addComment(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	key := catalog.StringArg(args, "issue_key")
	if err := d.client.AddComment(ctx, key, catalog.StringArg(args, "comment")); err != nil {
		return nil, err
	}
	return map[string]interface{}{"key": key, "comment_added": true}, nil
}

func (d *Dispatcher) transitionIssue(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	key := catalog.StringArg(args, "issue_key")
	requested := catalog.StringArg(args, "transition")

	graph, err := d.fetchGraph(ctx, key)
	if err != nil {
		return nil, err
	}
	edge, err := graph.Resolve(requested)
	if err != nil {
		return nil, err
	}

	err = d.client.ApplyTransition(ctx, key, edge.ID, catalog.StringArg(args, "comment"))
	if err != nil {
		// The upstream re-checks legality at apply time: another actor
		// can move the issue between our check and the mutating call.
		var serr *jira.StatusError
		if errors.As(err, &serr) && (serr.Status == http.StatusBadRequest || serr.Status == http.StatusConflict) {
			return nil, &workflow.TransitionError{
				IssueKey:  key,
				Requested: requested,
				Current:   graph.Current,
				Legal:     graph.LegalNames(),
			}
		}
		return nil, err
	}
	return map[string]interface{}{
		"key":         key,
		"transition":  edge.Name,
		"from_status": graph.Current,
		"to_status":   edge.To,
	}, nil
}

func (d *Dispatcher) getTransitions(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	key := catalog.StringArg(args, "issue_key")
	graph, err := d.fetchGraph(ctx, key)
	if err != nil {
		return nil, err
	}

	moves := make([]map[string]interface{}, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		moves = append(moves, map[string]interface{}{
			"id":        e.ID,
			"name":      e.Name,
			"to_status": e.To,
		})
	}
	return map[string]interface{}{
		"key":                   key,
		"current_status":        graph.Current,
		"available_transitions": moves,
		"terminal":              graph.Terminal(),
	}, nil
}

// fetchGraph takes a fresh snapshot of an issue's status and outgoing
// transitions. Both reads bypass the response cache so the legality
// check reflects the upstream's current state.
func (d *Dispatcher) fetchGraph(ctx context.Context, key string) (*workflow.Graph, error) {
	current, err := d.client.IssueStatus(ctx, key)
	if err != nil {
		return nil, err
	}
	transitions, err := d.client.Transitions(ctx, key)
	if err != nil {
		return nil, err
	}
	return workflow.NewGraph(key, current, transitions), nil
}

func (d *Dispatcher) listProjects(ctx context.Context, args map[string]interface{}, baseURL string) (map[string]interface{}, error) {
	projects, err := d.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	includeArchived := catalog.BoolArg(args, "include_archived")
	out := make([]map[string]interface{}, 0, len(projects))
	for _, p := range projects {
		if p.Archived && !includeArchived {
			continue
		}
		entry := map[string]interface{}{
			"key":  p.Key,
			"name": p.Name,
			"url":  baseURL + "/browse/" + p.Key,
		}
		if p.Lead != nil {
			entry["lead"] = p.Lead.DisplayName
		}
		out = append(out, entry)
	}
	return map[string]interface{}{
		"total_returned": len(out),
		"projects":       out,
	}, nil
}
