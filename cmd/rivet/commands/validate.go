package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rivetrun/rivet/pkg/config"
	"github.com/rivetrun/rivet/pkg/modules/cloudstack"
	"github.com/rivetrun/rivet/pkg/policy"
)

// noStackAPI stands in for the cloud client during validation.
type noStackAPI struct{}

func (noStackAPI) Describe(context.Context, string) (*cloudstack.StackInfo, error) {
	return nil, cloudstack.ErrStackNotFound
}

func (noStackAPI) Create(context.Context, string, cloudstack.Template) error { return nil }

func (noStackAPI) Update(context.Context, string, cloudstack.Template) error { return nil }

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <playbook.yaml>",
		Short: "Validate a playbook without running it",
		Long: `Parse and validate a playbook, then gate it against the loaded
policies. Nothing executes; exit status reports whether a run would be
allowed to start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			cfg, err := config.LoadFile(args[0])
			if err != nil {
				logger.Error().Err(err).Msg("playbook is invalid")
				return err
			}

			// Compile everything the run command would, so expression and
			// module errors surface here too. The AWS client is not built
			// for validation.
			if _, err := config.Build(cfg, config.BuildOptions{
				Vars:     extraVars,
				StackAPI: noStackAPI{},
			}); err != nil {
				logger.Error().Err(err).Msg("playbook is invalid")
				return err
			}

			gate, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			if len(policyPaths) > 0 {
				if err := gate.LoadPolicies(ctx, policyPaths); err != nil {
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

			fmt.Printf("%s: %d tasks, ok\n", cfg.Name, len(cfg.Tasks))
			return nil
		},
	}
}

// reportViolations logs each violation at a level matching its severity.
func reportViolations(logger zerolog.Logger, verdict *policy.Result) {
	for _, w := range verdict.Warnings {
		logger.Warn().Msg(w)
	}
	for _, v := range verdict.Violations {
		event := logger.Warn()
		if v.Severity.Blocks() {
			event = logger.Error()
		}
		event.Str("policy", v.Policy).Str("task", v.Task).Msg(v.Message)
	}
}
