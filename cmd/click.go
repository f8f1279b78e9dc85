// -- cmd/click.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// newClickCmd builds the locate-then-click command: resolve an element
// description to coordinates and click it in one shot, without starting
// the full planning loop.
func newClickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "click \"<element description>\"",
		Short: "Find a described element on screen and click it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			point, err := comps.detector.Locate(ctx, args[0], nil)
			if err != nil {
				return fmt.Errorf("locating %q: %w", args[0], err)
			}

			decision := schemas.Decision{
				Kind:        schemas.ActionClick,
				Description: fmt.Sprintf("click %s", args[0]),
			}
			result := comps.executor.Execute(ctx, decision, &point, nil)
			if !result.OK {
				return fmt.Errorf("click failed: %s", result.Detail)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "clicked %q at (%d, %d)\n", args[0], point.X, point.Y)
			return nil
		},
	}
}
