package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rivetrun/rivet/pkg/engine"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, "service name"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "carrier-pigeon"
		}, "trace exporter"},
		{"bad sampling rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SamplingRate = 1.5
		}, "sampling rate"},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}, "listen address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	// Must not panic.
	m.RecordRunStarted()
	m.RecordTask("command", "changed", time.Second)
	m.RecordRunCompleted("completed", time.Second)
	if m.Registry() != nil {
		t.Error("disabled metrics must have no registry")
	}
}

func gatherCount(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}

func TestObserverRecordsRunAndTasks(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "rivet"})
	tracer, err := NewTracer(TracingConfig{Enabled: false}, "rivet", "test")
	if err != nil {
		t.Fatal(err)
	}
	obs := NewObserver(m, tracer)

	p := engine.NewPlaybook("observed", []*engine.Task{
		{Description: "noop", Module: engine.NullModule{}},
		{Description: "skipped", Module: engine.NullModule{}, When: engine.Never{}},
	}, nil, engine.WithObserver(obs))
	p.Run()

	if got := gatherCount(t, m.Registry(), "rivet_runs_total"); got != 1 {
		t.Errorf("runs_total = %v", got)
	}
	if got := gatherCount(t, m.Registry(), "rivet_tasks_total"); got != 2 {
		t.Errorf("tasks_total = %v", got)
	}
	if got := gatherCount(t, m.Registry(), "rivet_active_runs"); got != 0 {
		t.Errorf("active_runs = %v after run finished", got)
	}
}

func TestWithRunAndTaskFields(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)

	runLogger := WithRun(logger, "run-42", "deploy")
	runLogger.Info().Msg("started")
	taskLogger := WithTask(logger, 3, "install nginx")
	taskLogger.Warn().Msg("slow")

	out := buf.String()
	for _, want := range []string{
		`"run_id":"run-42"`,
		`"playbook":"deploy"`,
		`"task_index":3`,
		`"task":"install nginx"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel().String() != "error" {
		t.Errorf("level = %s", logger.GetLevel())
	}
}

func TestNewTracerRejectsUnknownExporter(t *testing.T) {
	_, err := NewTracer(TracingConfig{Enabled: true, Exporter: "smoke-signals", SamplingRate: 1}, "rivet", "test")
	if err == nil {
		t.Fatal("unknown exporter must fail")
	}
}
