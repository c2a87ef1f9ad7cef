package cmd

import (
	"log/slog"
	"os"

	"github.com/RoModerate/romoderate/internal/config"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/pkg/log"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var downAll bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Run: func(_ *cobra.Command, _ []string) {
			staticConfig, errStatic := config.ReadStatic(cfgFile)
			if errStatic != nil {
				slog.Error("Failed to read static config", log.ErrAttr(errStatic))
				os.Exit(1)
			}

			action := database.MigrateUp
			if downAll {
				action = database.MigrateDn
			}

			if errMigrate := database.Migrate(staticConfig.DatabaseDSN, action); errMigrate != nil {
				slog.Error("Could not migrate schema", log.ErrAttr(errMigrate))
				os.Exit(1)
			}

			slog.Info("Migration complete")
		},
	}

	cmd.Flags().BoolVarP(&downAll, "down", "d", false, "Fully reverts all migrations")

	return cmd
}
