// -- cmd/locate.go --
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// newLocateCmd builds the one-shot element finder: capture the screen, ask
// the vision model where the described element is, and print the resolved
// logical pixel coordinate.
func newLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate \"<element description>\"",
		Short: "Resolve an on-screen element description to pixel coordinates",
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

			out, err := jsoniter.Marshal(map[string]int{"x": point.X, "y": point.Y})
			if err != nil {
				return fmt.Errorf("encoding coordinates: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
