package engine

import (
	"errors"
	"fmt"
)

// Task binds a human-readable description to a module guarded by a
// condition. Tasks are immutable after construction and owned by exactly
// one playbook. The description doubles as the state-store key for the
// task's output.
type Task struct {
	// Description identifies the task to humans and addresses its output
	// in the state store.
	Description string

	// Module is the action to perform.
	Module Module

	// When gates whether Module runs.
	When Condition
}

// TaskResult is the outcome of one task invocation. It is created once per
// run and never mutated after.
type TaskResult struct {
	// Module is the module name the task ran (or would have run).
	Module string `json:"module"`

	// Succeeded reports whether the task finished without failure. A
	// skipped task succeeded.
	Succeeded bool `json:"succeeded"`

	// Changed reports whether side effects occurred, including partial
	// side effects on a failed apply.
	Changed bool `json:"changed"`

	// Error is the failure text, empty on success.
	Error string `json:"error,omitempty"`

	// Output is the module's structured result, nil when absent.
	Output Output `json:"-"`

	// OutputValue is Output converted to the Value model, set by the
	// playbook driver when the conversion succeeds.
	OutputValue *Value `json:"output,omitempty"`
}

// Run evaluates the task's condition and, when it holds, applies the
// module. Every failure mode is funneled into the returned TaskResult; no
// error and no panic escapes, which lets the driver treat all task
// outcomes identically.
func (t *Task) Run(c *Context) (result *TaskResult) {
	name := "unknown"
	if t.Module != nil {
		name = t.Module.Name()
	}

	defer func() {
		if r := recover(); r != nil {
			result = &TaskResult{
				Module:    name,
				Succeeded: false,
				Changed:   false,
				Error:     fmt.Sprintf("module panicked: %v", r),
			}
		}
	}()

	cond := t.When
	if cond == nil {
		cond = Always{}
	}

	proceed, err := cond.Evaluate()
	if err != nil {
		return &TaskResult{
			Module:    name,
			Succeeded: false,
			Changed:   false,
			Error:     err.Error(),
		}
	}
	if !proceed {
		// A skipped task is not a failure.
		return &TaskResult{
			Module:    name,
			Succeeded: true,
			Changed:   false,
		}
	}

	resp, err := t.Module.Apply(c)
	if err != nil {
		changed := false
		var me *ModuleError
		if errors.As(err, &me) {
			changed = me.Changed
		}
		return &TaskResult{
			Module:    name,
			Succeeded: false,
			Changed:   changed,
			Error:     err.Error(),
		}
	}

	return &TaskResult{
		Module:    name,
		Succeeded: true,
		Changed:   resp.Changed,
		Output:    resp.Output,
	}
}
