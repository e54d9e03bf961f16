package engine

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink receives one structured record per completed (or skipped) task, in
// execution order. Emission failures are swallowed by the driver: a record
// that cannot be written never aborts the run and never appears in a task's
// error field.
type Sink interface {
	Emit(result *TaskResult) error
}

// JSONSink writes each task record as a JSON document to an io.Writer.
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink creates a sink writing indented JSON records to w.
func NewJSONSink(w io.Writer) *JSONSink {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONSink{enc: enc}
}

// Emit implements Sink.
func (s *JSONSink) Emit(result *TaskResult) error {
	return s.enc.Encode(result)
}

// Observer is notified of run progress. Implementations must not block;
// the driver calls them synchronously between tasks.
type Observer interface {
	RunStarted(runID, name string, total int)
	TaskStarted(runID string, index int, description string)
	TaskFinished(runID string, index int, description string, result *TaskResult)
	RunFinished(runID string, status RunStatus, summary RunSummary)
}

// NopObserver is an Observer that does nothing.
type NopObserver struct{}

// RunStarted implements Observer.
func (NopObserver) RunStarted(string, string, int) {}

// TaskStarted implements Observer.
func (NopObserver) TaskStarted(string, int, string) {}

// TaskFinished implements Observer.
func (NopObserver) TaskFinished(string, int, string, *TaskResult) {}

// RunFinished implements Observer.
func (NopObserver) RunFinished(string, RunStatus, RunSummary) {}

// Playbook owns an ordered sequence of tasks and the single context they
// share. Its lifecycle is exactly one Run invocation, from the first task
// to either completion or the first failure.
type Playbook struct {
	// Name labels the run in logs and the journal.
	Name string

	// Tasks execute in declared order.
	Tasks []*Task

	// Context is the shared run state.
	Context *Context

	runID    string
	status   RunStatus
	sink     Sink
	observer Observer
	logger   zerolog.Logger
}

// PlaybookOption configures a playbook at construction.
type PlaybookOption func(*Playbook)

// WithSink sets the result sink. The default discards records.
func WithSink(s Sink) PlaybookOption {
	return func(p *Playbook) { p.sink = s }
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) PlaybookOption {
	return func(p *Playbook) { p.observer = o }
}

// WithLogger sets the structured logger for the run.
func WithLogger(l zerolog.Logger) PlaybookOption {
	return func(p *Playbook) { p.logger = l }
}

// NewPlaybook builds a playbook over the given tasks and input variables.
func NewPlaybook(name string, tasks []*Task, vars map[string]string, opts ...PlaybookOption) *Playbook {
	p := &Playbook{
		Name:     name,
		Tasks:    tasks,
		Context:  NewContext(vars),
		runID:    uuid.New().String(),
		status:   RunStatusPending,
		observer: NopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunID returns the identifier assigned to this run.
func (p *Playbook) RunID() string {
	return p.runID
}

// Status returns the run's lifecycle state.
func (p *Playbook) Status() RunStatus {
	return p.status
}

// Run executes the tasks sequentially and fail-fast.
//
// For each task in order: the task runs against the shared context; if its
// result carries an output convertible to a Value, that value is committed
// to state under the task's description (overwriting any prior entry)
// before the next task starts; the result is emitted to the sink and
// appended to the returned sequence. A failed result halts the run: the
// returned sequence is exactly the tasks attempted so far, including the
// failing one. There is no retry and no rollback of state or side effects
// already committed.
func (p *Playbook) Run() []*TaskResult {
	p.status = RunStatusRunning
	p.observer.RunStarted(p.runID, p.Name, len(p.Tasks))
	log := p.logger.With().Str("run_id", p.runID).Str("playbook", p.Name).Logger()
	log.Info().Int("tasks", len(p.Tasks)).Msg("run started")

	results := make([]*TaskResult, 0, len(p.Tasks))
	for i, task := range p.Tasks {
		p.observer.TaskStarted(p.runID, i, task.Description)
		log.Debug().Int("index", i).Str("task", task.Description).Msg("task started")

		result := task.Run(p.Context)

		if result.Output != nil {
			if value, err := result.Output.ToValue(); err == nil {
				p.Context.commitState(task.Description, value)
				committed := value.Clone()
				result.OutputValue = &committed
			} else {
				// Malformed output is dropped, not fatal.
				log.Debug().Err(err).Str("task", task.Description).Msg("output not convertible")
			}
		}

		if p.sink != nil {
			if err := p.sink.Emit(result); err != nil {
				log.Debug().Err(err).Str("task", task.Description).Msg("result emission failed")
			}
		}

		p.observer.TaskFinished(p.runID, i, task.Description, result)
		results = append(results, result)

		if !result.Succeeded {
			log.Error().
				Int("index", i).
				Str("task", task.Description).
				Str("module", result.Module).
				Str("error", result.Error).
				Msg("task failed, halting run")
			p.status = RunStatusHalted
			break
		}

		log.Info().
			Int("index", i).
			Str("task", task.Description).
			Str("module", result.Module).
			Bool("changed", result.Changed).
			Msg("task finished")
	}

	if p.status != RunStatusHalted {
		p.status = RunStatusCompleted
	}

	summary := p.summarize(results)
	p.observer.RunFinished(p.runID, p.status, summary)
	log.Info().
		Str("status", string(p.status)).
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Msg("run finished")
	return results
}

func (p *Playbook) summarize(results []*TaskResult) RunSummary {
	summary := RunSummary{
		Total:     len(p.Tasks),
		Attempted: len(results),
	}
	for _, r := range results {
		if r.Succeeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if r.Changed {
			summary.Changed++
		}
	}
	return summary
}
