package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rivetrun/rivet/pkg/config"
	"github.com/rivetrun/rivet/pkg/engine"
	"github.com/rivetrun/rivet/pkg/policy"
	"github.com/rivetrun/rivet/pkg/stores"
	"github.com/rivetrun/rivet/pkg/telemetry"
)

// multiObserver fans progress out to several observers.
type multiObserver []engine.Observer

func (m multiObserver) RunStarted(runID, name string, total int) {
	for _, o := range m {
		o.RunStarted(runID, name, total)
	}
}

func (m multiObserver) TaskStarted(runID string, index int, description string) {
	for _, o := range m {
		o.TaskStarted(runID, index, description)
	}
}

func (m multiObserver) TaskFinished(runID string, index int, description string, result *engine.TaskResult) {
	for _, o := range m {
		o.TaskFinished(runID, index, description, result)
	}
}

func (m multiObserver) RunFinished(runID string, status engine.RunStatus, summary engine.RunSummary) {
	for _, o := range m {
		o.RunFinished(runID, status, summary)
	}
}

func newRunCommand() *cobra.Command {
	var (
		metricsListen string
		traceExporter string
		traceEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "run <playbook.yaml>",
		Short: "Execute a playbook",
		Long: `Load, gate, and execute a playbook. Tasks run in declared order; the
first failure halts the run. Task results stream to stdout as JSON.`,
		Example: `  # Run a playbook
  rivet run deploy.yaml

  # Override variables and journal the run
  rivet run deploy.yaml -e env=staging --journal runs.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			telcfg, err := telemetryConfig()
			if err != nil {
				return err
			}
			telcfg.ServiceVersion = cmd.Root().Version
			telcfg.Metrics.Enabled = metricsListen != ""
			if metricsListen != "" {
				telcfg.Metrics.ListenAddress = metricsListen
			}
			telcfg.Tracing.Enabled = traceExporter != "" && traceExporter != "none"
			telcfg.Tracing.Exporter = traceExporter
			telcfg.Tracing.Endpoint = traceEndpoint
			if err := telcfg.Validate(); err != nil {
				return err
			}

			logger, err := telemetry.NewLogger(telcfg.Logging)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			cfg, err := config.LoadFile(args[0])
			if err != nil {
				logger.Error().Err(err).Msg("loading playbook failed")
				return err
			}

			gate, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			if len(policyPaths) > 0 {
				if err := gate.LoadPolicies(ctx, policyPaths); err != nil {
					logger.Error().Err(err).Msg("loading policies failed")
					return err
				}
			}
			verdict, err := gate.Evaluate(ctx, cfg)
			if err != nil {
				return err
			}
			reportViolations(logger, verdict)
			if !verdict.Allowed {
				return fmt.Errorf("playbook blocked by policy")
			}

			observers := multiObserver{}

			metrics := telemetry.NewMetrics(telcfg.Metrics)
			metrics.StartServer(logger)

			tracer, err := telemetry.NewTracer(telcfg.Tracing, telcfg.ServiceName, telcfg.ServiceVersion)
			if err != nil {
				return err
			}
			defer func() {
				if err := tracer.Shutdown(context.Background()); err != nil {
					logger.Debug().Err(err).Msg("tracer shutdown failed")
				}
			}()
			observers = append(observers, telemetry.NewObserver(metrics, tracer))

			if journalPath != "" {
				journal, err := stores.Open(ctx, journalPath)
				if err != nil {
					logger.Error().Err(err).Msg("opening run journal failed")
					return err
				}
				defer journal.Close()
				observers = append(observers, stores.NewRecorder(journal, logger))
			}

			playbook, err := config.Build(cfg, config.BuildOptions{
				Vars: extraVars,
				PlaybookOptions: []engine.PlaybookOption{
					engine.WithLogger(logger),
					engine.WithSink(engine.NewJSONSink(os.Stdout)),
					engine.WithObserver(observers),
				},
			})
			if err != nil {
				logger.Error().Err(err).Msg("building playbook failed")
				return err
			}

			playbook.Run()
			if playbook.Status() == engine.RunStatusHalted {
				return fmt.Errorf("run halted")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "expose Prometheus metrics on this address")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "none", "trace exporter (otlp, stdout, none)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint")

	return cmd
}
