package cli

import (
	"github.com/spf13/cobra"

	"github.com/chefkeenan/Lume/migrations"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			pool, err := connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrations.Apply(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
