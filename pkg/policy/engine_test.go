package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rivetrun/rivet/pkg/config"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func playbookOf(tasks ...config.TaskConfig) *config.PlaybookConfig {
	return &config.PlaybookConfig{Name: "test", Tasks: tasks}
}

func TestEvaluateCleanPlaybookIsAllowed(t *testing.T) {
	e := testEngine(t)

	result, err := e.Evaluate(context.Background(), playbookOf(
		config.TaskConfig{Description: "first", Module: "command", Command: "true"},
		config.TaskConfig{Description: "second", Module: "null", When: "exec test -f /etc/hosts"},
	))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Allowed {
		t.Errorf("clean playbook blocked: %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("violations = %+v", result.Violations)
	}
}

func TestEvaluateBlocksBlankDescription(t *testing.T) {
	e := testEngine(t)

	result, err := e.Evaluate(context.Background(), playbookOf(
		config.TaskConfig{Description: "   ", Module: "null"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("blank description must block")
	}
	if len(result.Violations) == 0 || result.Violations[0].Policy != "task-description" {
		t.Errorf("violations = %+v", result.Violations)
	}
}

func TestEvaluateBlocksShellMetacharactersInExec(t *testing.T) {
	e := testEngine(t)

	result, err := e.Evaluate(context.Background(), playbookOf(
		config.TaskConfig{Description: "t", Module: "null", When: "exec sh -c 'true; rm x'"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("metacharacters in exec condition must block")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "exec-condition-safety" {
			found = true
			if !strings.Contains(v.Message, "shell metacharacters") {
				t.Errorf("message = %q", v.Message)
			}
		}
	}
	if !found {
		t.Errorf("no exec-condition-safety violation in %+v", result.Violations)
	}
}

func TestEvaluateWarnsOnDuplicateDescriptions(t *testing.T) {
	e := testEngine(t)

	result, err := e.Evaluate(context.Background(), playbookOf(
		config.TaskConfig{Description: "same", Module: "null"},
		config.TaskConfig{Description: "same", Module: "null"},
	))
	if err != nil {
		t.Fatal(err)
	}
	// Duplicates warn; they do not block.
	if !result.Allowed {
		t.Error("duplicate descriptions must not block")
	}
	found := false
	for _, v := range result.Violations {
		if v.Policy == "duplicate-descriptions" && v.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("no duplicate-descriptions warning in %+v", result.Violations)
	}
}

func TestReplacePoliciesKeepsBuiltins(t *testing.T) {
	e := testEngine(t)

	custom := Policy{
		Name:     "no-prod-stacks",
		Severity: SeverityError,
		Enabled:  true,
		Rego: `package rivet.policies.custom

import rego.v1

deny contains violation if {
	some task in input.tasks
	contains(task.stack_name, "prod")
	violation := {
		"message": sprintf("task %q touches a prod stack", [task.description]),
		"severity": "error",
		"task": task.description,
	}
}
`,
	}
	if err := e.ReplacePolicies(context.Background(), []Policy{custom}); err != nil {
		t.Fatalf("ReplacePolicies: %v", err)
	}

	names := make(map[string]bool)
	for _, p := range e.ListPolicies() {
		names[p.Name] = true
	}
	for _, want := range []string{"task-description", "exec-condition-safety", "duplicate-descriptions", "no-prod-stacks"} {
		if !names[want] {
			t.Errorf("policy %s missing after replace", want)
		}
	}

	result, err := e.Evaluate(context.Background(), playbookOf(
		config.TaskConfig{Description: "deploy", Module: "cloudstack", StackName: "prod-web"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("custom policy must block prod stack")
	}

	// A second replace with an empty set drops the custom policy.
	if err := e.ReplacePolicies(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	result, err = e.Evaluate(context.Background(), playbookOf(
		config.TaskConfig{Description: "deploy", Module: "cloudstack", StackName: "prod-web"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Errorf("dropped policy still blocking: %+v", result.Violations)
	}
}

func TestBrokenPolicyCannotBeCompiled(t *testing.T) {
	e := testEngine(t)

	err := e.ReplacePolicies(context.Background(), []Policy{{
		Name:    "broken",
		Enabled: true,
		Rego:    "this is not rego",
	}})
	if err == nil {
		t.Fatal("broken rego must fail compilation")
	}
}
