package policy

import (
	"time"
)

// Severity grades a violation. Error and critical violations block the
// run; warning and info are reported and ignored.
type Severity string

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = "info"

	// SeverityWarning should be reviewed but does not block.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the run.
	SeverityError Severity = "error"

	// SeverityCritical blocks the run.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity prevents execution.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is one Rego rule set evaluated against playbooks before a run.
type Policy struct {
	// Name uniquely identifies the policy.
	Name string `json:"name"`

	// Description is the human-readable summary.
	Description string `json:"description"`

	// Rego is the policy source. Its deny set yields violations.
	Rego string `json:"rego"`

	// Severity is the default for violations that do not set their own.
	Severity Severity `json:"severity"`

	// Enabled gates evaluation.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the binary.
	Builtin bool `json:"builtin"`
}

// Violation is one deny result from a policy.
type Violation struct {
	// Policy names the violated policy.
	Policy string `json:"policy"`

	// Task is the description of the offending task, when applicable.
	Task string `json:"task,omitempty"`

	// Message describes the violation.
	Message string `json:"message"`

	// Severity grades the violation.
	Severity Severity `json:"severity"`
}

// Result is the outcome of gating one playbook.
type Result struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations lists every deny result, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems (a policy that failed to run),
	// which never block by themselves.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the gate ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Input is the document policies evaluate, built from a loaded playbook.
type Input struct {
	// Playbook carries the run-level fields.
	Playbook PlaybookInput `json:"playbook"`

	// Tasks lists every declared task in order.
	Tasks []TaskInput `json:"tasks"`
}

// PlaybookInput is the run-level slice of the policy input.
type PlaybookInput struct {
	Name string            `json:"name"`
	Vars map[string]string `json:"vars,omitempty"`
}

// TaskInput is one task as seen by policies.
type TaskInput struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Module      string `json:"module"`
	When        string `json:"when,omitempty"`
	Command     string `json:"command,omitempty"`
	StackName   string `json:"stack_name,omitempty"`
}
