package stores

import "time"

// RunRecord is one journaled playbook run.
type RunRecord struct {
	// ID is the run identifier assigned by the driver.
	ID string `json:"id"`

	// Playbook is the playbook name.
	Playbook string `json:"playbook"`

	// Status is the terminal (or current) run status.
	Status string `json:"status"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished; nil while running.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// TasksTotal is the number of declared tasks.
	TasksTotal int `json:"tasks_total"`

	// Attempted counts tasks that produced a result.
	Attempted int `json:"attempted"`

	// Succeeded counts successful results, skips included.
	Succeeded int `json:"succeeded"`

	// Changed counts results that mutated something.
	Changed int `json:"changed"`

	// Failed counts failed results.
	Failed int `json:"failed"`
}

// TaskRecord is one journaled task result. Output holds the result's
// structured output as JSON, when the task produced one.
type TaskRecord struct {
	// RunID ties the record to its run.
	RunID string `json:"run_id"`

	// Index is the task's position in the playbook.
	Index int `json:"index"`

	// Description is the task description.
	Description string `json:"description"`

	// Module names the module that ran.
	Module string `json:"module"`

	// Succeeded mirrors the task result.
	Succeeded bool `json:"succeeded"`

	// Changed mirrors the task result.
	Changed bool `json:"changed"`

	// Error is the failure text; nil on success.
	Error *string `json:"error,omitempty"`

	// Output is the JSON-encoded task output; nil when absent.
	Output *string `json:"output,omitempty"`

	// RecordedAt is when the result was journaled.
	RecordedAt time.Time `json:"recorded_at"`
}
