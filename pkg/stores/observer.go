package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/rivetrun/rivet/pkg/engine"
	"github.com/rivetrun/rivet/pkg/telemetry"
)

// Recorder bridges the run driver to the journal. Journal failures are
// logged and dropped: history is best effort and never aborts a run.
type Recorder struct {
	journal *Journal
	logger  zerolog.Logger
}

// NewRecorder builds a Recorder over the journal.
func NewRecorder(journal *Journal, logger zerolog.Logger) *Recorder {
	return &Recorder{
		journal: journal,
		logger:  logger.With().Str("component", "journal").Logger(),
	}
}

// RunStarted implements engine.Observer.
func (r *Recorder) RunStarted(runID, name string, total int) {
	if err := r.journal.BeginRun(context.Background(), runID, name, total); err != nil {
		logger := telemetry.WithRun(r.logger, runID, name)
		logger.Warn().Err(err).Msg("journaling run start failed")
	}
}

// TaskStarted implements engine.Observer.
func (r *Recorder) TaskStarted(string, int, string) {}

// TaskFinished implements engine.Observer.
func (r *Recorder) TaskFinished(runID string, index int, description string, result *engine.TaskResult) {
	rec := &TaskRecord{
		RunID:       runID,
		Index:       index,
		Description: description,
		Module:      result.Module,
		Succeeded:   result.Succeeded,
		Changed:     result.Changed,
		RecordedAt:  time.Now().UTC(),
	}
	if result.Error != "" {
		msg := result.Error
		rec.Error = &msg
	}
	if result.OutputValue != nil {
		if data, err := json.Marshal(result.OutputValue); err == nil {
			encoded := string(data)
			rec.Output = &encoded
		}
	}

	if err := r.journal.RecordTask(context.Background(), rec); err != nil {
		logger := telemetry.WithTask(r.logger, index, description)
		logger.Warn().Err(err).
			Str("run_id", runID).Msg("journaling task result failed")
	}
}

// RunFinished implements engine.Observer.
func (r *Recorder) RunFinished(runID string, status engine.RunStatus, summary engine.RunSummary) {
	err := r.journal.FinishRun(context.Background(), runID, string(status),
		summary.Attempted, summary.Succeeded, summary.Changed, summary.Failed)
	if err != nil {
		r.logger.Warn().Err(err).Str("run_id", runID).Msg("journaling run finish failed")
	}
}
