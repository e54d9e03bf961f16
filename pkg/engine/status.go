package engine

// RunStatus is the lifecycle state of one playbook run.
type RunStatus string

const (
	// RunStatusPending means the run has not started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning means tasks are executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted means every task finished successfully.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusHalted means a task failed and the remaining tasks were
	// not executed.
	RunStatusHalted RunStatus = "halted"
)

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusHalted
}

// RunSummary aggregates the per-task outcomes of a run.
type RunSummary struct {
	// Total is the number of tasks declared in the playbook.
	Total int `json:"total"`

	// Attempted is the number of tasks that ran or were skipped before
	// the run ended.
	Attempted int `json:"attempted"`

	// Succeeded counts attempted tasks that did not fail.
	Succeeded int `json:"succeeded"`

	// Changed counts attempted tasks that reported side effects.
	Changed int `json:"changed"`

	// Failed is 1 when the run halted, else 0.
	Failed int `json:"failed"`
}
