package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rivetrun/rivet/pkg/engine"
)

func TestApplyCapturesOutput(t *testing.T) {
	m := &Module{
		Command: engine.Literal("echo"),
		Args:    engine.List(engine.Literal("hello")),
	}

	resp, err := m.Apply(engine.NewContext(nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !resp.Changed {
		t.Error("a command that ran must report changed")
	}

	out, ok := resp.Output.(*Output)
	if !ok {
		t.Fatalf("output type %T", resp.Output)
	}
	if out.ExitStatus != 0 {
		t.Errorf("exit status = %d", out.ExitStatus)
	}
	if out.Stdout != "hello\n" {
		t.Errorf("stdout = %q", out.Stdout)
	}
	if len(out.StdoutLines) != 1 || out.StdoutLines[0] != "hello" {
		t.Errorf("stdout_lines = %v", out.StdoutLines)
	}
}

func TestApplyNonZeroExitFails(t *testing.T) {
	m := &Module{
		Command: engine.Literal("sh"),
		Args:    engine.List(engine.Literal("-c"), engine.Literal("echo oops >&2; exit 3")),
	}

	_, err := m.Apply(engine.NewContext(nil))
	if err == nil {
		t.Fatal("non-zero exit must fail the apply")
	}
	me, ok := err.(*engine.ModuleError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if !me.Changed {
		t.Error("the process ran, so the failure carries changed=true")
	}
	if !strings.Contains(me.Description, "oops") {
		t.Errorf("description %q missing stderr", me.Description)
	}
}

func TestApplyEmptyCommandFails(t *testing.T) {
	m := &Module{Command: engine.Var("not-set")}

	_, err := m.Apply(engine.NewContext(nil))
	if err == nil {
		t.Fatal("empty command must fail")
	}
	me := err.(*engine.ModuleError)
	if me.Changed {
		t.Error("nothing ran, so changed must be false")
	}
}

func TestApplySpawnFailure(t *testing.T) {
	m := &Module{Command: engine.Literal("/nonexistent/not-a-binary")}

	_, err := m.Apply(engine.NewContext(nil))
	if err == nil {
		t.Fatal("spawn failure must fail the apply")
	}
}

func TestCreatesGuardSkips(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "done")
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	m := &Module{
		Command: engine.Literal("sh"),
		Args:    engine.List(engine.Literal("-c"), engine.Literal("exit 1")),
		Creates: engine.Literal(marker),
	}

	resp, err := m.Apply(engine.NewContext(nil))
	if err != nil {
		t.Fatalf("guard should have skipped the command: %v", err)
	}
	if resp.Changed {
		t.Error("guarded skip must report changed=false")
	}
}

func TestRemovesGuardSkips(t *testing.T) {
	absent := filepath.Join(t.TempDir(), "already-gone")

	m := &Module{
		Command: engine.Literal("sh"),
		Args:    engine.List(engine.Literal("-c"), engine.Literal("exit 1")),
		Removes: engine.Literal(absent),
	}

	resp, err := m.Apply(engine.NewContext(nil))
	if err != nil {
		t.Fatalf("guard should have skipped the command: %v", err)
	}
	if resp.Changed {
		t.Error("guarded skip must report changed=false")
	}
}

// Arguments resolve against the context at apply time.
func TestArgsResolveLazily(t *testing.T) {
	c := engine.NewContext(map[string]string{"name": "x"})
	m := &Module{
		Command: engine.Literal("echo"),
		Args:    engine.List(engine.Format("hello-%s", engine.Var("name"))),
	}

	resp, err := m.Apply(c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	out := resp.Output.(*Output)
	if out.Stdout != "hello-x\n" {
		t.Errorf("stdout = %q, want %q", out.Stdout, "hello-x\n")
	}
}
