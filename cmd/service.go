// -- cmd/service.go --
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/observability"
	"github.com/xkilldash9x/marionette/internal/service"
)

// newServiceCmd builds the privileged loopback daemon command. The daemon
// owns the screen-capture and input-injection permission grants so the
// agent process itself does not need them; it is normally started on
// demand by the supervisor rather than by hand.
func newServiceCmd() *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Run the privileged input and capture service in the foreground",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("service.addr", cmd.Flags().Lookup("addr"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			return service.NewServer(cfg, Version, logger).Run(cmd.Context())
		},
	}

	serviceCmd.Flags().String("addr", "127.0.0.1:8081", "Loopback listen address for the service")
	return serviceCmd
}
