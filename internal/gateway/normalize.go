package gateway

import (
	"context"

	"github.com/bobmcallan/jira-bridge/internal/jira"
)

// normalizeIssue projects an upstream issue into the flat result shape.
// Absent optional fields are omitted rather than present as null;
// assignee alone falls back to "Unassigned" so list output stays
// scannable.
func normalizeIssue(baseURL string, issue *jira.Issue) map[string]interface{} {
	out := map[string]interface{}{
		"key":     issue.Key,
		"summary": issue.Fields.Summary,
		"url":     baseURL + "/browse/" + issue.Key,
	}
	if issue.Fields.Status != nil {
		out["status"] = issue.Fields.Status.Name
	}
	if issue.Fields.IssueType != nil {
		out["issue_type"] = issue.Fields.IssueType.Name
	}
	if issue.Fields.Assignee != nil {
		out["assignee"] = issue.Fields.Assignee.DisplayName
	} else {
		out["assignee"] = "Unassigned"
	}
	if issue.Fields.Reporter != nil {
		out["reporter"] = issue.Fields.Reporter.DisplayName
	}
	if issue.Fields.Priority != nil {
		out["priority"] = issue.Fields.Priority.Name
	}
	if len(issue.Fields.Labels) > 0 {
		out["labels"] = issue.Fields.Labels
	}
	if issue.Fields.Created != "" {
		out["created"] = issue.Fields.Created
	}
	if issue.Fields.Updated != "" {
		out["updated"] = issue.Fields.Updated
	}
	if desc := jira.ADFText(issue.Fields.Description); desc != "" {
		out["description"] = desc
	}
	return out
}

// normalizeComments flattens an issue's comment container to plain text
// bodies.
func normalizeComments(cc *jira.CommentContainer) []map[string]interface{} {
	if cc == nil {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(cc.Comments))
	for _, c := range cc.Comments {
		entry := map[string]interface{}{
			"author":  c.Author.DisplayName,
			"body":    jira.ADFText(c.Body),
			"created": c.Created,
		}
		out = append(out, entry)
	}
	return out
}

// collectIssues drains the pager up to max normalized issues, one page
// per upstream request, and reports whether more results remain past
// the cap. Pages already consumed are flattened in upstream order.
func collectIssues(ctx context.Context, baseURL string, pager *jira.SearchPager, max int) ([]map[string]interface{}, bool, error) {
	results := make([]map[string]interface{}, 0, max)
	for len(results) < max {
		page, err := pager.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if page == nil {
			return results, false, nil
		}
		for i := range page.Issues {
			if len(results) == max {
				// Cap hit mid-page: leftovers prove more exist.
				return results, true, nil
			}
			results = append(results, normalizeIssue(baseURL, &page.Issues[i]))
		}
	}
	return results, !pager.Exhausted(), nil
}
