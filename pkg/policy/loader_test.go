package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const sampleRego = `# Blocks tasks named forbidden.
package rivet.policies.sample

import rego.v1

deny contains violation if {
	some task in input.tasks
	task.description == "forbidden"
	violation := {"message": "forbidden task", "severity": "error"}
}
`

func TestLoadFromPathsRegoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.rego")
	if err := os.WriteFile(path, []byte(sampleRego), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(zerolog.Nop())
	policies, err := l.LoadFromPaths([]string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("policies = %d", len(policies))
	}
	p := policies[0]
	if p.Name != "sample" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Description != "Blocks tasks named forbidden." {
		t.Errorf("description = %q", p.Description)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("severity = %q", p.Severity)
	}
	if !p.Enabled {
		t.Error("file policies load enabled")
	}
}

func TestLoadFromPathsDirectorySkipsBrokenJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ok.rego"), []byte(sampleRego), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(zerolog.Nop())
	policies, err := l.LoadFromPaths([]string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 || policies[0].Name != "ok" {
		t.Errorf("policies = %+v", policies)
	}
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.rego")
	if err := os.WriteFile(path, []byte(sampleRego), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 1)
	l := NewLoader(zerolog.Nop())
	err := l.Watch(ctx, []string{dir}, func(policies []Policy) error {
		select {
		case reloaded <- policies:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Touch the watched file; the debounced reload must deliver the set.
	if err := os.WriteFile(path, []byte(sampleRego), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case policies := <-reloaded:
		if len(policies) != 1 || policies[0].Name != "sample" {
			t.Errorf("policies = %+v", policies)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}
}

func TestWatchReplacesGatePolicies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.rego")
	if err := os.WriteFile(path, []byte(sampleRego), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := gate.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("LoadPolicies: %v", err)
	}

	applied := make(chan struct{}, 1)
	l := NewLoader(zerolog.Nop())
	err = l.Watch(ctx, []string{dir}, func(policies []Policy) error {
		if err := gate.ReplacePolicies(ctx, policies); err != nil {
			return err
		}
		select {
		case applied <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	replacement := `# Renamed after reload.
package rivet.policies.renamed

import rego.v1

deny contains violation if {
	some task in input.tasks
	task.description == "forbidden"
	violation := {"message": "forbidden task", "severity": "error"}
}
`
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "renamed.rego"), []byte(replacement), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}

	names := make(map[string]bool)
	for _, p := range gate.ListPolicies() {
		names[p.Name] = true
	}
	if names["sample"] {
		t.Error("replaced policy still loaded")
	}
	if !names["renamed"] {
		t.Error("reloaded policy missing")
	}
}

func TestLoadJSONPolicy(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "name": "custom",
  "description": "a json policy",
  "severity": "error",
  "enabled": true,
  "rego": "package rivet.policies.custom\n\nimport rego.v1\n\ndeny contains v if {\n\tfalse\n\tv := \"never\"\n}\n"
}`
	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(zerolog.Nop())
	policies, err := l.LoadFromPaths([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if len(policies) != 1 {
		t.Fatalf("policies = %d", len(policies))
	}
	if policies[0].Name != "custom" || policies[0].Severity != SeverityError {
		t.Errorf("policy = %+v", policies[0])
	}
}

func TestLoadJSONPolicyRequiresName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anon.json")
	if err := os.WriteFile(path, []byte(`{"rego": "package x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(zerolog.Nop())
	if _, err := l.LoadFromPaths([]string{path}); err == nil {
		t.Fatal("nameless policy document must fail")
	}
}
