package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.starlark.net/starlark"
)

// Condition is the predicate gating whether a task's module runs. It is
// evaluated fresh for every task invocation and holds no state beyond its
// own parameters.
//
// A false result and an evaluation error are distinct outcomes: false skips
// the task successfully, an error fails it.
type Condition interface {
	Evaluate() (bool, error)
}

// Always is the condition that is unconditionally true.
type Always struct{}

// Evaluate implements Condition.
func (Always) Evaluate() (bool, error) {
	return true, nil
}

// Never is the condition that is unconditionally false.
type Never struct{}

// Evaluate implements Condition.
func (Never) Evaluate() (bool, error) {
	return false, nil
}

// ExecSucceeds runs an external command and is true iff the process exits
// zero. The child gets no stdin; stdout and stderr are captured and
// discarded. A non-zero exit is a legitimate false, while a spawn or IO
// failure surfaces as a condition error.
type ExecSucceeds struct {
	// Command is the program to execute.
	Command string

	// Args are the program arguments.
	Args []string
}

// Evaluate implements Condition.
func (c ExecSucceeds) Evaluate() (bool, error) {
	cmd := exec.Command(c.Command, c.Args...)
	cmd.Stdin = nil
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, NewConditionError("condition command failed to start", err).
		WithOperation(c.Command)
}

// ParseExec splits a shell-like "command arg arg" string on whitespace into
// an ExecSucceeds condition. No quoting is interpreted.
func ParseExec(execute string) ExecSucceeds {
	parts := strings.Fields(execute)
	if len(parts) == 0 {
		return ExecSucceeds{}
	}
	return ExecSucceeds{Command: parts[0], Args: parts[1:]}
}

// Expr evaluates a Starlark expression against the playbook's input
// variables, available as the string dict `vars` plus an `env` helper for
// process environment lookups. The expression must produce a boolean.
type Expr struct {
	// Source is the Starlark expression text, e.g. `vars["stage"] == "prod"`.
	Source string

	// Vars are the input variables exposed to the expression.
	Vars map[string]string
}

// Evaluate implements Condition.
func (c Expr) Evaluate() (bool, error) {
	thread := &starlark.Thread{
		Name: "rivet-condition",
		Print: func(_ *starlark.Thread, _ string) {
			// print() output from condition expressions is dropped.
		},
	}

	vars := starlark.NewDict(len(c.Vars))
	for k, v := range c.Vars {
		if err := vars.SetKey(starlark.String(k), starlark.String(v)); err != nil {
			return false, NewConditionError("building condition environment", err)
		}
	}

	predeclared := starlark.StringDict{
		"vars": vars,
		"env": starlark.NewBuiltin("env", func(_ *starlark.Thread, _ *starlark.Builtin,
			args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs("env", args, nil, 1, &name); err != nil {
				return nil, err
			}
			return starlark.String(os.Getenv(name)), nil
		}),
	}

	result, err := starlark.Eval(thread, "condition.star", c.Source, predeclared)
	if err != nil {
		return false, NewConditionError("condition expression failed", err)
	}
	b, ok := result.(starlark.Bool)
	if !ok {
		return false, NewConditionError(
			fmt.Sprintf("condition expression produced %s, want bool", result.Type()), nil)
	}
	return bool(b), nil
}
