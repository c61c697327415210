package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// defaultPageSize is the per-page maxResults sent when the caller doesn't
// set one.
const defaultPageSize = 50

// SearchRequest describes one JQL search.
type SearchRequest struct {
	JQL      string
	Fields   []string
	PageSize int
}

// SearchPage is one page of search results.
type SearchPage struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken"`
	IsLast        bool    `json:"isLast"`
}

// SearchPager is a lazy, restartable sequence of search result pages.
// Each Next call issues exactly one upstream request; no request is made
// until the first Next.
type SearchPager struct {
	c       *Client
	req     SearchRequest
	next    string
	started bool
	done    bool
}

// Search prepares a pager over the enhanced JQL search endpoint
// (GET /rest/api/3/search/jql, cursor-paginated via nextPageToken).
func (c *Client) Search(req SearchRequest) *SearchPager {
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	return &SearchPager{c: c, req: req}
}

// Next fetches the next page, or returns (nil, nil) once the upstream
// reports no further results.
func (p *SearchPager) Next(ctx context.Context) (*SearchPage, error) {
	if p.done {
		return nil, nil
	}

	q := url.Values{}
	q.Set("jql", p.req.JQL)
	q.Set("maxResults", strconv.Itoa(p.req.PageSize))
	if len(p.req.Fields) > 0 {
		q.Set("fields", strings.Join(p.req.Fields, ","))
	} else {
		q.Set("fields", "summary,status,issuetype,assignee,reporter,priority,created,updated")
	}
	if p.started && p.next != "" {
		q.Set("nextPageToken", p.next)
	}

	body, err := p.c.get(ctx, apiPrefix+"/search/jql", q, false)
	if err != nil {
		return nil, err
	}

	var page SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	p.started = true
	p.next = page.NextPageToken
	if page.NextPageToken == "" || page.IsLast {
		p.done = true
	}
	return &page, nil
}

// Exhausted reports whether the upstream has no further pages.
func (p *SearchPager) Exhausted() bool {
	return p.done
}

// Restart resets the pager to the first page.
func (p *SearchPager) Restart() {
	p.next = ""
	p.started = false
	p.done = false
}
