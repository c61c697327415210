package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// NamedField is a Jira entity addressed by display name (status, priority,
// issue type).
type NamedField struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UserField is a Jira user reference.
type UserField struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName"`
}

// Comment is one issue comment. Body is ADF in REST v3.
type Comment struct {
	Author  UserField       `json:"author"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
}

// CommentContainer is the comment sub-structure of an issue's fields.
type CommentContainer struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// IssueFields is the subset of issue fields the gateway consumes.
type IssueFields struct {
	Summary     string            `json:"summary"`
	Description json.RawMessage   `json:"description"`
	Status      *NamedField       `json:"status"`
	IssueType   *NamedField       `json:"issuetype"`
	Assignee    *UserField        `json:"assignee"`
	Reporter    *UserField        `json:"reporter"`
	Priority    *NamedField       `json:"priority"`
	Labels      []string          `json:"labels"`
	Created     string            `json:"created"`
	Updated     string            `json:"updated"`
	Comment     *CommentContainer `json:"comment"`
}

// Issue is a remote issue snapshot.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// CreatedIssue is the upstream response to an issue creation.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Transition is one legal status change offered by the upstream for an
// issue in its current status.
type Transition struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	To   NamedField `json:"to"`
}

// GetIssue fetches an issue. expand is passed through to the upstream
// (e.g. "changelog"). Reads are served from the short-lived GET cache.
func (c *Client) GetIssue(ctx context.Context, key string, expand []string) (*Issue, error) {
	q := url.Values{}
	if len(expand) > 0 {
		q.Set("expand", strings.Join(expand, ","))
	}
	body, err := c.get(ctx, apiPrefix+"/issue/"+url.PathEscape(key), q, true)
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue %s: %w", key, err)
	}
	return &issue, nil
}

// IssueStatus fetches only the issue's current status name, bypassing the
// cache. Transition checks need a fresh snapshot.
func (c *Client) IssueStatus(ctx context.Context, key string) (string, error) {
	q := url.Values{}
	q.Set("fields", "status")
	body, err := c.get(ctx, apiPrefix+"/issue/"+url.PathEscape(key), q, false)
	if err != nil {
		return "", err
	}
	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return "", fmt.Errorf("failed to parse issue %s: %w", key, err)
	}
	if issue.Fields.Status == nil {
		return "", fmt.Errorf("issue %s has no status field", key)
	}
	return issue.Fields.Status.Name, nil
}

// CreateIssue creates an issue from a Jira fields map.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]interface{}) (*CreatedIssue, error) {
	body, err := c.post(ctx, apiPrefix+"/issue", nil, map[string]interface{}{"fields": fields})
	if err != nil {
		return nil, err
	}
	var created CreatedIssue
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}
	return &created, nil
}

// UpdateIssue applies a partial fields update to an issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error {
	_, err := c.put(ctx, apiPrefix+"/issue/"+url.PathEscape(key), nil, map[string]interface{}{"fields": fields})
	if err != nil {
		return err
	}
	c.cache.InvalidatePrefix("/issue/" + key)
	return nil
}

// AddComment adds a comment to an issue. Plain text is wrapped as a
// minimal ADF document.
func (c *Client) AddComment(ctx context.Context, key, text string) error {
	_, err := c.post(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/comment", nil,
		map[string]interface{}{"body": ADFDocument(text)})
	if err != nil {
		return err
	}
	c.cache.InvalidatePrefix("/issue/" + key)
	return nil
}

// Transitions fetches the outgoing transitions for the issue's current
// status. Never cached: workflows differ per project and issue type, and a
// stale edge set defeats the legality check.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	body, err := c.get(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/transitions", nil, false)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse transitions for %s: %w", key, err)
	}
	return resp.Transitions, nil
}

// ApplyTransition executes a transition by ID, optionally attaching a
// comment to the same request.
func (c *Client) ApplyTransition(ctx context.Context, key, transitionID, comment string) error {
	payload := map[string]interface{}{
		"transition": map[string]interface{}{"id": transitionID},
	}
	if comment != "" {
		payload["update"] = map[string]interface{}{
			"comment": []interface{}{
				map[string]interface{}{"add": map[string]interface{}{"body": ADFDocument(comment)}},
			},
		}
	}
	_, err := c.post(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/transitions", nil, payload)
	if err != nil {
		return err
	}
	c.cache.InvalidatePrefix("/issue/" + key)
	return nil
}
