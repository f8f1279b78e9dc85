// -- cmd/run.go --
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/marionette/internal/agent"
)

// newRunCmd builds the primary command: execute one natural-language task
// against the live GUI and report the outcome as JSON on stdout.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"<goal>\"",
		Short: "Execute an automation task described in natural language",
		Long: `Runs the closed capture/plan/act loop until the vision model reports the
goal complete, the task fails, or the step ceiling is reached. The final
task report is written to stdout as JSON.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("agent.max_steps", cmd.Flags().Lookup("max-steps"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			result := comps.runner.ExecuteTask(ctx, args[0])

			out, err := jsoniter.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding task report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if result.Status != agent.StatusCompleted {
				return fmt.Errorf("task did not complete: %s", result.Reason)
			}
			return nil
		},
	}

	runCmd.Flags().Int("max-steps", 30, "Maximum planning steps before the task is abandoned")
	return runCmd
}
