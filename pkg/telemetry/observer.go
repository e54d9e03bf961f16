package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rivetrun/rivet/pkg/engine"
)

// Observer feeds run progress into metrics and traces. It implements
// engine.Observer and is safe for concurrent runs.
type Observer struct {
	metrics *Metrics
	tracer  *Tracer

	mu   sync.Mutex
	runs map[string]*runTrack
}

type runTrack struct {
	started   time.Time
	ctx       context.Context
	span      trace.Span
	taskStart time.Time
	taskSpan  trace.Span
}

// NewObserver wires metrics and tracing into one observer. Either
// argument may be nil to skip that concern.
func NewObserver(metrics *Metrics, tracer *Tracer) *Observer {
	return &Observer{
		metrics: metrics,
		tracer:  tracer,
		runs:    make(map[string]*runTrack),
	}
}

// RunStarted implements engine.Observer.
func (o *Observer) RunStarted(runID, name string, total int) {
	track := &runTrack{started: time.Now(), ctx: context.Background()}
	if o.tracer != nil {
		track.ctx, track.span = o.tracer.StartRunSpan(context.Background(), runID, name)
	}
	if o.metrics != nil {
		o.metrics.RecordRunStarted()
	}

	o.mu.Lock()
	o.runs[runID] = track
	o.mu.Unlock()
}

// TaskStarted implements engine.Observer.
func (o *Observer) TaskStarted(runID string, index int, description string) {
	o.mu.Lock()
	track := o.runs[runID]
	o.mu.Unlock()
	if track == nil {
		return
	}

	track.taskStart = time.Now()
	if o.tracer != nil {
		_, track.taskSpan = o.tracer.StartTaskSpan(track.ctx, index, description)
	}
}

// TaskFinished implements engine.Observer.
func (o *Observer) TaskFinished(runID string, index int, description string, result *engine.TaskResult) {
	o.mu.Lock()
	track := o.runs[runID]
	o.mu.Unlock()
	if track == nil {
		return
	}

	if o.metrics != nil {
		o.metrics.RecordTask(result.Module, taskStatus(result), time.Since(track.taskStart))
	}
	if track.taskSpan != nil {
		track.taskSpan.SetAttributes(AttrModule.String(result.Module))
		if !result.Succeeded {
			RecordError(track.taskSpan, errors.New(result.Error))
		}
		track.taskSpan.End()
		track.taskSpan = nil
	}
}

// RunFinished implements engine.Observer.
func (o *Observer) RunFinished(runID string, status engine.RunStatus, summary engine.RunSummary) {
	o.mu.Lock()
	track := o.runs[runID]
	delete(o.runs, runID)
	o.mu.Unlock()
	if track == nil {
		return
	}

	if o.metrics != nil {
		o.metrics.RecordRunCompleted(string(status), time.Since(track.started))
	}
	if track.span != nil {
		track.span.SetAttributes(AttrRunStatus.String(string(status)))
		track.span.End()
	}
}

// taskStatus maps a result onto the metric status label.
func taskStatus(result *engine.TaskResult) string {
	if !result.Succeeded {
		return "failed"
	}
	if !result.Changed {
		return "unchanged"
	}
	return "changed"
}
