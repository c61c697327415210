package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// projectPageSize is the page size for project listing.
const projectPageSize = 50

// Project is one Jira project.
type Project struct {
	Key      string     `json:"key"`
	Name     string     `json:"name"`
	Lead     *UserField `json:"lead"`
	Archived bool       `json:"archived"`
}

// ListProjects fetches all accessible projects, following startAt/isLast
// pagination. Responses are served from the GET cache within its TTL —
// project sets change rarely relative to issues.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var all []Project
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(projectPageSize))
		q.Set("expand", "lead")

		body, err := c.get(ctx, apiPrefix+"/project/search", q, true)
		if err != nil {
			return nil, err
		}

		var page struct {
			Values []Project `json:"values"`
			IsLast bool      `json:"isLast"`
			Total  int       `json:"total"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse project list: %w", err)
		}

		all = append(all, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			return all, nil
		}
		startAt += len(page.Values)
	}
}
