package catalog

// Priorities is the fixed set of Jira priority names accepted by the
// create and update tools.
var Priorities = []string{"Highest", "High", "Medium", "Low", "Lowest"}

// Builtin returns the Jira tool definitions exposed by the gateway.
// Names, parameters, and defaults follow the plugin manifest.
func Builtin() []Tool {
	return []Tool{
		{
			Name:        "jira_search_issues",
			Description: "Search Jira issues using JQL (Jira Query Language)",
			Params: []Param{
				{Name: "jql", Type: TypeString, Required: true,
					Description: "JQL query string (e.g., 'project = MYPROJ AND status = Open')"},
				{Name: "max_results", Type: TypeInteger, Default: 50,
					Description: "Maximum number of results to return"},
				{Name: "fields", Type: TypeStringArray,
					Description: "Specific fields to return (optional)"},
			},
		},
		{
			Name:        "jira_get_issue",
			Description: "Get detailed information about a specific Jira issue",
			Params: []Param{
				{Name: "issue_key", Type: TypeString, Required: true,
					Description: "Issue key (e.g., 'PROJ-123')"},
				{Name: "expand", Type: TypeStringArray,
					Description: "Additional data to expand (e.g., ['changelog', 'comments'])"},
			},
		},
		{
			Name:        "jira_create_issue",
			Description: "Create a new Jira issue",
			Params: []Param{
				{Name: "project", Type: TypeString, Required: true,
					Description: "Project key (e.g., 'PROJ')"},
				{Name: "summary", Type: TypeString, Required: true,
					Description: "Issue summary/title"},
				{Name: "description", Type: TypeString,
					Description: "Issue description"},
				{Name: "issue_type", Type: TypeString, Default: "Task",
					Description: "Issue type (e.g., 'Bug', 'Story', 'Task')"},
				{Name: "priority", Type: TypeString, Enum: Priorities,
					Description: "Priority (e.g., 'High', 'Medium', 'Low')"},
				{Name: "assignee", Type: TypeString,
					Description: "Assignee username or email"},
				{Name: "labels", Type: TypeStringArray,
					Description: "Issue labels"},
			},
		},
		{
			Name:        "jira_update_issue",
			Description: "Update an existing Jira issue",
			Params: []Param{
				{Name: "issue_key", Type: TypeString, Required: true,
					Description: "Issue key (e.g., 'PROJ-123')"},
				{Name: "summary", Type: TypeString,
					Description: "New summary/title"},
				{Name: "description", Type: TypeString,
					Description: "New description"},
				{Name: "priority", Type: TypeString, Enum: Priorities,
					Description: "New priority"},
				{Name: "assignee", Type: TypeString,
					Description: "New assignee username or email"},
				{Name: "labels", Type: TypeStringArray,
					Description: "New labels"},
			},
		},
		{
			Name:        "jira_add_comment",
			Description: "Add a comment to a Jira issue",
			Params: []Param{
				{Name: "issue_key", Type: TypeString, Required: true,
					Description: "Issue key (e.g., 'PROJ-123')"},
				{Name: "comment", Type: TypeString, Required: true,
					Description: "Comment text (supports Jira markdown)"},
			},
		},
		{
			Name:        "jira_transition_issue",
			Description: "Change the status of a Jira issue (e.g., move to In Progress, Done)",
			Params: []Param{
				{Name: "issue_key", Type: TypeString, Required: true,
					Description: "Issue key (e.g., 'PROJ-123')"},
				{Name: "transition", Type: TypeString, Required: true,
					Description: "Transition name or ID (e.g., 'In Progress', 'Done', '21')"},
				{Name: "comment", Type: TypeString,
					Description: "Optional comment when transitioning"},
			},
		},
		{
			Name:        "jira_get_transitions",
			Description: "Get available transitions (status changes) for a Jira issue",
			Params: []Param{
				{Name: "issue_key", Type: TypeString, Required: true,
					Description: "Issue key (e.g., 'PROJ-123')"},
			},
		},
		{
			Name:        "jira_list_projects",
			Description: "List all accessible Jira projects",
			Params: []Param{
				{Name: "include_archived", Type: TypeBoolean, Default: false,
					Description: "Include archived projects"},
			},
		},
	}
}
