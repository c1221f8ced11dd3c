package cli

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/salt/log"
	"github.com/spf13/cobra"
)

func migrateCommand(cfg *Config) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run postgres store migrations",
		Example: heredoc.Doc(`
			$ marmot migrate
			$ marmot migrate --down
		`),
		Args: cobra.NoArgs,
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}

			logger := initLogger(cfg.LogLevel)
			logger.Info("marmot is migrating", "version", Version, "down", down)
			return migratePostgres(logger, cfg.DB, down)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the latest migration")
	return cmd
}

func migratePostgres(logger log.Logger, cfg postgres.Config, down bool) (err error) {
	logger.Info("Initiating Postgres client...")

	pgClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Error("failed to prepare migration", "error", err)
		return err
	}
	defer pgClient.Close()

	var ver uint
	if down {
		ver, err = pgClient.MigrateDown(cfg)
	} else {
		ver, err = pgClient.Migrate(cfg)
	}
	if err != nil {
		return fmt.Errorf("problem with migration %w", err)
	}

	logger.Info("Migration Postgres done.", "version", ver)
	return nil
}
