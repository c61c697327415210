package catalog

import (
	"errors"
	"testing"
)

func mustLookup(t *testing.T, name string) Tool {
	t.Helper()
	c, err := New(Builtin())
	if err != nil {
		t.Fatal(err)
	}
	tool, ok := c.Lookup(name)
	if !ok {
		t.Fatalf("tool %s not in builtin catalog", name)
	}
	return tool
}

func expectRule(t *testing.T, err error, param, rule string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Param != param {
		t.Errorf("expected offending param %q, got %q", param, verr.Param)
	}
	if verr.Rule != rule {
		t.Errorf("expected rule %q, got %q", rule, verr.Rule)
	}
}

func TestValidateArgs_MissingRequired(t *testing.T) {
	tool := mustLookup(t, "jira_search_issues")

	_, err := ValidateArgs(tool, map[string]interface{}{})
	expectRule(t, err, "jql", RuleMissing)
}

func TestValidateArgs_MissingRequiredNamesParam(t *testing.T) {
	// Every builtin tool with a required parameter must name it on failure.
	c, err := New(Builtin())
	if err != nil {
		t.Fatal(err)
	}
	for _, tool := range c.Tools() {
		for _, p := range tool.Params {
			if !p.Required {
				continue
			}
			args := map[string]interface{}{}
			// Supply all other required params so only p is missing.
			for _, other := range tool.Params {
				if other.Required && other.Name != p.Name {
					args[other.Name] = "x"
				}
			}
			_, err := ValidateArgs(tool, args)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("%s: expected validation error for missing %s", tool.Name, p.Name)
			}
			if verr.Param != p.Name {
				t.Errorf("%s: expected error naming %s, got %s", tool.Name, p.Name, verr.Param)
			}
		}
	}
}

func TestValidateArgs_UnknownParam(t *testing.T) {
	tool := mustLookup(t, "jira_get_issue")

	_, err := ValidateArgs(tool, map[string]interface{}{
		"issue_key": "PROJ-1",
		"verbose":   true,
	})
	expectRule(t, err, "verbose", RuleUnknown)
}

func TestValidateArgs_WrongType(t *testing.T) {
	tool := mustLookup(t, "jira_search_issues")

	_, err := ValidateArgs(tool, map[string]interface{}{
		"jql":         "project = X",
		"max_results": "fifty",
	})
	expectRule(t, err, "max_results", RuleWrongType)
}

func TestValidateArgs_FractionalInteger(t *testing.T) {
	tool := mustLookup(t, "jira_search_issues")

	_, err := ValidateArgs(tool, map[string]interface{}{
		"jql":         "project = X",
		"max_results": 2.5,
	})
	expectRule(t, err, "max_results", RuleWrongType)
}

func TestValidateArgs_EnumViolation(t *testing.T) {
	tool := mustLookup(t, "jira_create_issue")

	_, err := ValidateArgs(tool, map[string]interface{}{
		"project":  "PROJ",
		"summary":  "broken build",
		"priority": "Urgent",
	})
	expectRule(t, err, "priority", RuleNotInEnum)
}

func TestValidateArgs_DefaultsApplied(t *testing.T) {
	tool := mustLookup(t, "jira_create_issue")

	args, err := ValidateArgs(tool, map[string]interface{}{
		"project": "PROJ",
		"summary": "broken build",
	})
	if err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	if got := StringArg(args, "issue_type"); got != "Task" {
		t.Errorf("expected default issue_type Task, got %q", got)
	}
	// Optional params without defaults stay absent rather than null.
	if HasArg(args, "priority") {
		t.Error("expected absent priority to be omitted from normalized args")
	}
}

func TestValidateArgs_AllDeclaredDefaultsApplied(t *testing.T) {
	c, err := New(Builtin())
	if err != nil {
		t.Fatal(err)
	}
	for _, tool := range c.Tools() {
		args := map[string]interface{}{}
		for _, p := range tool.Params {
			if p.Required {
				args[p.Name] = "x"
			}
		}
		normalized, err := ValidateArgs(tool, args)
		if err != nil {
			t.Fatalf("%s: %v", tool.Name, err)
		}
		for _, p := range tool.Params {
			if p.Default == nil || p.Required {
				continue
			}
			if !HasArg(normalized, p.Name) {
				t.Errorf("%s: default for omitted %s not applied", tool.Name, p.Name)
			}
		}
	}
}

func TestValidateArgs_JSONNumberCoercion(t *testing.T) {
	tool := mustLookup(t, "jira_search_issues")

	args, err := ValidateArgs(tool, map[string]interface{}{
		"jql":         "project = X",
		"max_results": float64(10), // JSON decoding produces float64
	})
	if err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	if got := IntArg(args, "max_results"); got != 10 {
		t.Errorf("expected max_results 10, got %d", got)
	}
}

func TestValidateArgs_StringArrayCoercion(t *testing.T) {
	tool := mustLookup(t, "jira_get_issue")

	args, err := ValidateArgs(tool, map[string]interface{}{
		"issue_key": "PROJ-1",
		"expand":    []interface{}{"comments", "changelog"},
	})
	if err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	got := StringsArg(args, "expand")
	if len(got) != 2 || got[0] != "comments" || got[1] != "changelog" {
		t.Errorf("unexpected expand value: %v", got)
	}
}

func TestValidateArgs_MixedArrayRejected(t *testing.T) {
	tool := mustLookup(t, "jira_get_issue")

	_, err := ValidateArgs(tool, map[string]interface{}{
		"issue_key": "PROJ-1",
		"expand":    []interface{}{"comments", 7},
	})
	expectRule(t, err, "expand", RuleWrongType)
}

func TestValidateArgs_InputNotMutated(t *testing.T) {
	tool := mustLookup(t, "jira_list_projects")

	in := map[string]interface{}{}
	if _, err := ValidateArgs(tool, in); err != nil {
		t.Fatal(err)
	}
	if len(in) != 0 {
		t.Error("validator mutated caller's argument map")
	}
}
