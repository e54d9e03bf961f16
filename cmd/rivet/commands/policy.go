package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rivetrun/rivet/pkg/config"
	"github.com/rivetrun/rivet/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the policy gate",
	}
	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyWatchCommand())
	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}

			gate, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			if len(policyPaths) > 0 {
				if err := gate.LoadPolicies(cmd.Context(), policyPaths); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSEVERITY\tSOURCE\tDESCRIPTION")
			for _, p := range gate.ListPolicies() {
				source := "file"
				if p.Builtin {
					source = "builtin"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Severity, source, p.Description)
			}
			return w.Flush()
		},
	}
}

func newPolicyWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <playbook.yaml>",
		Short: "Re-gate a playbook whenever policy files change",
		Long: `Evaluate the playbook against the loaded policies, then keep watching
the --policy paths: every change reloads the policy set and re-evaluates
the playbook. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if len(policyPaths) == 0 {
				return fmt.Errorf("at least one --policy path is required")
			}

			cfg, err := config.LoadFile(args[0])
			if err != nil {
				logger.Error().Err(err).Msg("loading playbook failed")
				return err
			}

			gate, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			if err := gate.LoadPolicies(ctx, policyPaths); err != nil {
				logger.Error().Err(err).Msg("loading policies failed")
				return err
			}
			gatePlaybook(ctx, logger, gate, cfg)

			loader := policy.NewLoader(logger)
			err = loader.Watch(ctx, policyPaths, func(policies []policy.Policy) error {
				if err := gate.ReplacePolicies(ctx, policies); err != nil {
					return err
				}
				gatePlaybook(ctx, logger, gate, cfg)
				return nil
			})
			if err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}
}

// gatePlaybook evaluates one playbook against the gate and logs the verdict.
func gatePlaybook(ctx context.Context, logger zerolog.Logger, gate *policy.Engine, cfg *config.PlaybookConfig) {
	verdict, err := gate.Evaluate(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("policy evaluation failed")
		return
	}
	reportViolations(logger, verdict)
	if verdict.Allowed {
		logger.Info().Str("playbook", cfg.Name).Msg("playbook allowed")
	} else {
		logger.Error().Str("playbook", cfg.Name).Msg("playbook blocked by policy")
	}
}
