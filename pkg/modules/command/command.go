// Package command implements the local process module: it spawns an
// external program with lazily resolved arguments, captures its output, and
// reports it as structured task state.
package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/rivetrun/rivet/pkg/engine"
)

// moduleName labels results and logs.
const moduleName = "command"

// Output is the structured result of a completed process. It lands in the
// state store, so fields are addressable by later tasks (for example
// "stdout" or "stdout_lines.0").
type Output struct {
	ExitStatus  int      `json:"exit_status"`
	Stdout      string   `json:"stdout"`
	Stderr      string   `json:"stderr"`
	StdoutLines []string `json:"stdout_lines"`
	StderrLines []string `json:"stderr_lines"`
}

// ToValue implements engine.Output.
func (o *Output) ToValue() (engine.Value, error) {
	return engine.FromAny(o)
}

// Module runs a local process. Command, Args, and the guard fields are lazy
// resolvers, evaluated against the run context only when the task executes.
type Module struct {
	// Command is the program to run. Resolving to "" fails the apply.
	Command engine.StringResolver

	// Args is the argument list.
	Args engine.ListResolver

	// Creates is an idempotency guard: when it resolves non-empty and the
	// path already exists, the command is skipped without changes.
	Creates engine.StringResolver

	// Removes is the inverse guard: when it resolves non-empty and the
	// path is already absent, the command is skipped without changes.
	Removes engine.StringResolver
}

// Name implements engine.Module.
func (m *Module) Name() string {
	return moduleName
}

// Apply implements engine.Module. The child process gets no stdin; stdout
// and stderr are captured. A non-zero exit is a module failure carrying the
// captured stderr, with Changed set because the process did run.
func (m *Module) Apply(c *engine.Context) (*engine.Response, error) {
	program := engine.ResolveString(m.Command, c)
	if program == "" {
		return nil, &engine.ModuleError{Changed: false, Description: "command resolved to an empty string"}
	}

	if creates := engine.ResolveString(m.Creates, c); creates != "" {
		if _, err := os.Stat(creates); err == nil {
			return &engine.Response{Changed: false}, nil
		}
	}
	if removes := engine.ResolveString(m.Removes, c); removes != "" {
		if _, err := os.Stat(removes); errors.Is(err, os.ErrNotExist) {
			return &engine.Response{Changed: false}, nil
		}
	}

	args := engine.ResolveList(m.Args, c)

	cmd := exec.Command(program, args...)
	cmd.Stdin = nil
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
		// Process ran to completion, possibly with a non-zero exit.
	default:
		return nil, &engine.ModuleError{
			Changed:     true,
			Description: fmt.Sprintf("spawning %s: %v", program, err),
		}
	}

	if !utf8.Valid(stdout.Bytes()) || !utf8.Valid(stderr.Bytes()) {
		return nil, &engine.ModuleError{
			Changed:     true,
			Description: fmt.Sprintf("%s produced non-UTF-8 output", program),
		}
	}

	out := &Output{
		ExitStatus:  cmd.ProcessState.ExitCode(),
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		StdoutLines: splitLines(stdout.String()),
		StderrLines: splitLines(stderr.String()),
	}

	if err != nil {
		return nil, &engine.ModuleError{Changed: true, Description: stderr.String()}
	}
	return &engine.Response{Changed: true, Output: out}, nil
}

// Destroy implements engine.Module. Running a process has no teardown.
func (m *Module) Destroy() (*engine.Response, error) {
	return &engine.Response{Changed: false}, nil
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
