package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobmcallan/jira-bridge/internal/catalog"
	"github.com/bobmcallan/jira-bridge/internal/common"
	"github.com/bobmcallan/jira-bridge/internal/config"
	"github.com/bobmcallan/jira-bridge/internal/creds"
	"github.com/bobmcallan/jira-bridge/internal/jira"
)

func newDispatcher(t *testing.T, baseURL string) *Dispatcher {
	t.Helper()
	cat, err := catalog.New(catalog.Builtin())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	resolver := creds.NewResolver(func() (creds.Credential, error) {
		return creds.Credential{BaseURL: baseURL, Email: "ops@example.com", APIToken: "token"}, nil
	})
	logger := common.NewSilentLogger()
	client := jira.New(resolver, logger, jira.WithRetryPolicy(jira.RetryPolicy{
		Retries:    3,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		MaxDelay:   30 * time.Millisecond,
	}))
	return NewDispatcher(cat, resolver, client, logger)
}

func dispatch(t *testing.T, d *Dispatcher, name string, args map[string]interface{}) Result {
	t.Helper()
	return d.Dispatch(context.Background(), ToolCall{Name: name, Args: args})
}

func expectKind(t *testing.T, res Result, kind Kind) *Error {
	t.Helper()
	if res.Status != "error" {
		t.Fatalf("expected error result, got %+v", res)
	}
	if res.Err == nil {
		t.Fatal("error result missing error detail")
	}
	if res.Err.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, res.Err.Kind, res.Err.Message)
	}
	return res.Err
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newDispatcher(t, "http://unused")
	res := dispatch(t, d, "jira_delete_everything", nil)
	gerr := expectKind(t, res, KindUnknownTool)
	if !strings.Contains(gerr.Message, "jira_delete_everything") {
		t.Errorf("expected message to name the tool, got %q", gerr.Message)
	}
}

func TestDispatch_ValidationFailureMakesNoUpstreamCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_search_issues", map[string]interface{}{})

	gerr := expectKind(t, res, KindValidation)
	if gerr.Param != "jql" {
		t.Errorf("expected offending param jql, got %q", gerr.Param)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("malformed call must not reach upstream, got %d requests", got)
	}
}

func TestDispatch_ConfigurationError(t *testing.T) {
	cat, _ := catalog.New(catalog.Builtin())
	resolver := creds.NewResolver(creds.FromConfig(config.JiraConfig{Email: "ops@example.com"}))
	logger := common.NewSilentLogger()
	d := NewDispatcher(cat, resolver, jira.New(resolver, logger), logger)

	res := dispatch(t, d, "jira_list_projects", nil)
	gerr := expectKind(t, res, KindConfiguration)
	if !strings.Contains(gerr.Message, "JIRA_URL") || !strings.Contains(gerr.Message, "JIRA_API_TOKEN") {
		t.Errorf("expected missing settings named, got %q", gerr.Message)
	}
}

func searchIssueJSON(i int) map[string]interface{} {
	return map[string]interface{}{
		"key": fmt.Sprintf("MYPROJ-%d", i),
		"fields": map[string]interface{}{
			"summary":   fmt.Sprintf("issue %d", i),
			"status":    map[string]interface{}{"name": "Open"},
			"issuetype": map[string]interface{}{"name": "Task"},
		},
	}
}

func TestDispatch_SearchFewerThanMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("jql"); got != "project = MYPROJ AND status = Open" {
			t.Errorf("unexpected jql %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issues": []interface{}{searchIssueJSON(1), searchIssueJSON(2)},
			"isLast": true,
		})
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_search_issues", map[string]interface{}{
		"jql":         "project = MYPROJ AND status = Open",
		"max_results": float64(5),
	})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	if got := res.Data["total_returned"]; got != 2 {
		t.Errorf("expected 2 results, got %v", got)
	}
	if more := res.Data["more_available"]; more != false {
		t.Errorf("expected more_available=false, got %v", more)
	}
	issues := res.Data["issues"].([]map[string]interface{})
	if issues[0]["key"] != "MYPROJ-1" || issues[0]["status"] != "Open" {
		t.Errorf("unexpected first entry: %+v", issues[0])
	}
	if issues[0]["assignee"] != "Unassigned" {
		t.Errorf("expected Unassigned fallback, got %v", issues[0]["assignee"])
	}
	if _, present := issues[0]["priority"]; present {
		t.Error("absent priority must be omitted, not null")
	}
}

func TestDispatch_SearchCappedWithMoreAvailable(t *testing.T) {
	// Three pages of four issues; the caller caps at ten.
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		start := 0
		if token := r.URL.Query().Get("nextPageToken"); token != "" {
			fmt.Sscanf(token, "page-%d", &start)
		}
		var issues []interface{}
		for i := start; i < start+4 && i < 12; i++ {
			issues = append(issues, searchIssueJSON(i+1))
		}
		page := map[string]interface{}{"issues": issues}
		if start+4 < 12 {
			page["nextPageToken"] = fmt.Sprintf("page-%d", start+4)
		} else {
			page["isLast"] = true
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_search_issues", map[string]interface{}{
		"jql":         "project = MYPROJ",
		"max_results": float64(10),
	})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	issues := res.Data["issues"].([]map[string]interface{})
	if len(issues) != 10 {
		t.Fatalf("expected exactly 10 results, got %d", len(issues))
	}
	if more := res.Data["more_available"]; more != true {
		t.Errorf("expected more_available=true, got %v", more)
	}
	if issues[9]["key"] != "MYPROJ-10" {
		t.Errorf("expected results in upstream order, got last key %v", issues[9]["key"])
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("expected 3 page fetches for a cap of 10, got %d", got)
	}
}

func TestDispatch_GetIssueWithComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/MYPROJ-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body := jira.ADFDocument("looked into this")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key": "MYPROJ-1",
			"fields": map[string]interface{}{
				"summary":     "broken login",
				"status":      map[string]interface{}{"name": "Open"},
				"issuetype":   map[string]interface{}{"name": "Bug"},
				"assignee":    map[string]interface{}{"displayName": "Dana"},
				"priority":    map[string]interface{}{"name": "High"},
				"labels":      []string{"auth"},
				"description": jira.ADFDocument("cannot sign in"),
				"comment": map[string]interface{}{
					"comments": []interface{}{
						map[string]interface{}{
							"author":  map[string]interface{}{"displayName": "Sam"},
							"body":    body,
							"created": "2025-03-01T10:00:00.000+0000",
						},
					},
					"total": 1,
				},
			},
		})
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_get_issue", map[string]interface{}{
		"issue_key": "MYPROJ-1",
		"expand":    []interface{}{"comments"},
	})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	if res.Data["summary"] != "broken login" || res.Data["assignee"] != "Dana" {
		t.Errorf("unexpected issue data: %+v", res.Data)
	}
	if res.Data["description"] != "cannot sign in" {
		t.Errorf("expected description flattened to text, got %v", res.Data["description"])
	}
	if res.Data["url"] != srv.URL+"/browse/MYPROJ-1" {
		t.Errorf("unexpected browse url %v", res.Data["url"])
	}
	comments := res.Data["comments"].([]map[string]interface{})
	if len(comments) != 1 || comments[0]["author"] != "Sam" || comments[0]["body"] != "looked into this" {
		t.Errorf("unexpected comments: %+v", comments)
	}
}

func TestDispatch_CreateIssue(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/3/issue" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "10001", "key": "MYPROJ-42"})
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_create_issue", map[string]interface{}{
		"project":     "MYPROJ",
		"summary":     "new widget",
		"description": "build the widget",
		"priority":    "High",
		"labels":      []interface{}{"widgets"},
	})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	if res.Data["key"] != "MYPROJ-42" || res.Data["url"] != srv.URL+"/browse/MYPROJ-42" {
		t.Errorf("unexpected result: %+v", res.Data)
	}

	fields := payload["fields"].(map[string]interface{})
	if fields["summary"] != "new widget" {
		t.Errorf("unexpected summary: %v", fields["summary"])
	}
	// Omitted issue_type falls back to the declared default.
	issuetype := fields["issuetype"].(map[string]interface{})
	if issuetype["name"] != "Task" {
		t.Errorf("expected default issue type Task, got %v", issuetype["name"])
	}
	desc := fields["description"].(map[string]interface{})
	if desc["type"] != "doc" {
		t.Errorf("expected description wrapped as ADF, got %v", fields["description"])
	}
}

func TestDispatch_CreateIssueEnumViolation(t *testing.T) {
	d := newDispatcher(t, "http://unused")
	res := dispatch(t, d, "jira_create_issue", map[string]interface{}{
		"project":  "MYPROJ",
		"summary":  "x",
		"priority": "Urgent",
	})
	gerr := expectKind(t, res, KindValidation)
	if gerr.Param != "priority" {
		t.Errorf("expected offending param priority, got %q", gerr.Param)
	}
}

func TestDispatch_UpdateIssue(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/rest/api/3/issue/MYPROJ-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_update_issue", map[string]interface{}{
		"issue_key": "MYPROJ-1",
		"summary":   "renamed",
		"labels":    []interface{}{"triaged"},
	})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	updated := res.Data["updated_fields"].([]string)
	if len(updated) != 2 {
		t.Errorf("expected 2 updated fields, got %v", updated)
	}
	fields := payload["fields"].(map[string]interface{})
	if fields["summary"] != "renamed" {
		t.Errorf("unexpected payload: %+v", fields)
	}
	if _, present := fields["priority"]; present {
		t.Error("unsupplied fields must not be sent upstream")
	}
}

func TestDispatch_UpdateIssueNothingToUpdate(t *testing.T) {
	d := newDispatcher(t, "http://unused")
	res := dispatch(t, d, "jira_update_issue", map[string]interface{}{
		"issue_key": "MYPROJ-1",
	})
	expectKind(t, res, KindValidation)
}

// fakeWorkflowServer serves an issue sitting in "To Do" with a single
// outgoing transition and counts mutating transition posts.
func fakeWorkflowServer(t *testing.T, mutations *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/3/issue/MYPROJ-1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"key":    "MYPROJ-1",
				"fields": map[string]interface{}{"status": map[string]interface{}{"name": "To Do"}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/3/issue/MYPROJ-1/transitions":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"transitions": []interface{}{
					map[string]interface{}{
						"id": "11", "name": "In Progress",
						"to": map[string]interface{}{"name": "In Progress"},
					},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/3/issue/MYPROJ-1/transitions":
			atomic.AddInt32(mutations, 1)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func TestDispatch_IllegalTransitionMakesNoMutatingCall(t *testing.T) {
	var mutations int32
	srv := fakeWorkflowServer(t, &mutations)
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_transition_issue", map[string]interface{}{
		"issue_key":  "MYPROJ-1",
		"transition": "Done",
	})

	gerr := expectKind(t, res, KindIllegalTransition)
	if gerr.CurrentStatus != "To Do" {
		t.Errorf("expected current status To Do, got %q", gerr.CurrentStatus)
	}
	if len(gerr.LegalMoves) != 1 || gerr.LegalMoves[0] != "In Progress" {
		t.Errorf("expected legal moves [In Progress], got %v", gerr.LegalMoves)
	}
	if got := atomic.LoadInt32(&mutations); got != 0 {
		t.Errorf("illegal transition must not reach upstream, got %d mutating calls", got)
	}
}

func TestDispatch_TransitionApplied(t *testing.T) {
	var mutations int32
	srv := fakeWorkflowServer(t, &mutations)
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_transition_issue", map[string]interface{}{
		"issue_key":  "MYPROJ-1",
		"transition": "in progress",
	})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	if res.Data["from_status"] != "To Do" || res.Data["to_status"] != "In Progress" {
		t.Errorf("unexpected result: %+v", res.Data)
	}
	if got := atomic.LoadInt32(&mutations); got != 1 {
		t.Errorf("expected exactly one mutating call, got %d", got)
	}
}

func TestDispatch_StaleTransitionRejectionMapsToIllegal(t *testing.T) {
	// The legality check passes but another actor has moved the issue;
	// the upstream rejects the apply with a 409.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/3/issue/MYPROJ-1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"key":    "MYPROJ-1",
				"fields": map[string]interface{}{"status": map[string]interface{}{"name": "To Do"}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/3/issue/MYPROJ-1/transitions":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"transitions": []interface{}{
					map[string]interface{}{
						"id": "11", "name": "In Progress",
						"to": map[string]interface{}{"name": "In Progress"},
					},
				},
			})
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"errorMessages":["Transition is not valid for the current status"]}`))
		}
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_transition_issue", map[string]interface{}{
		"issue_key":  "MYPROJ-1",
		"transition": "In Progress",
	})
	gerr := expectKind(t, res, KindIllegalTransition)
	if gerr.CurrentStatus != "To Do" {
		t.Errorf("expected last-seen status in error, got %q", gerr.CurrentStatus)
	}
}

func TestDispatch_GetTransitionsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/transitions") {
			json.NewEncoder(w).Encode(map[string]interface{}{"transitions": []interface{}{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key":    "MYPROJ-9",
			"fields": map[string]interface{}{"status": map[string]interface{}{"name": "Closed"}},
		})
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_get_transitions", map[string]interface{}{"issue_key": "MYPROJ-9"})

	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	if res.Data["terminal"] != true || res.Data["current_status"] != "Closed" {
		t.Errorf("unexpected result: %+v", res.Data)
	}
}

func TestDispatch_ListProjectsFiltersArchived(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"values": []interface{}{
				map[string]interface{}{
					"key": "LIVE", "name": "Live Project",
					"lead": map[string]interface{}{"displayName": "Riley"},
				},
				map[string]interface{}{"key": "OLD", "name": "Old Project", "archived": true},
			},
			"isLast": true,
		})
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)

	res := dispatch(t, d, "jira_list_projects", nil)
	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res.Err)
	}
	projects := res.Data["projects"].([]map[string]interface{})
	if len(projects) != 1 || projects[0]["key"] != "LIVE" || projects[0]["lead"] != "Riley" {
		t.Errorf("expected archived projects filtered, got %+v", projects)
	}

	res = dispatch(t, d, "jira_list_projects", map[string]interface{}{"include_archived": true})
	if got := res.Data["total_returned"]; got != 2 {
		t.Errorf("expected archived projects included, got %v", got)
	}
}

func TestDispatch_UpstreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`))
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_get_issue", map[string]interface{}{"issue_key": "NOPE-1"})

	gerr := expectKind(t, res, KindUpstreamRejected)
	if gerr.UpstreamStatus != http.StatusNotFound {
		t.Errorf("expected upstream status 404, got %d", gerr.UpstreamStatus)
	}
	if !strings.Contains(gerr.Message, "does not exist") {
		t.Errorf("expected upstream message preserved, got %q", gerr.Message)
	}
}

func TestDispatch_RateLimitedIncludesRetryHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_get_issue", map[string]interface{}{"issue_key": "MYPROJ-1"})

	gerr := expectKind(t, res, KindRateLimited)
	if gerr.RetryAfterSecs != 15 {
		t.Errorf("expected retry-after hint 15s, got %d", gerr.RetryAfterSecs)
	}
}

func TestDispatch_AuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL)
	res := dispatch(t, d, "jira_add_comment", map[string]interface{}{
		"issue_key": "MYPROJ-1",
		"comment":   "ping",
	})
	expectKind(t, res, KindAuthentication)
}
