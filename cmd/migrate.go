// -- cmd/migrate.go --
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Applies the database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Database().URL == "" {
				return errors.New("database URL is not configured (hint: set CARTWRIGHT_DATABASE_URL or --database-url)")
			}
			return store.Migrate(cmd.Context(), cfg.Database().URL, observability.GetLogger())
		},
	}
	cmd.Flags().String("database-url", "", "Postgres connection string (overrides database.url)")
	return cmd
}
