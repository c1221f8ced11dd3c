package cli

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/cmdx"
	"github.com/spf13/cobra"
)

var envHelp = map[string]string{
	"short": "List of supported environment variables",
	"long": heredoc.Doc(`
			MARMOT_LOG_LEVEL: log level of the plugin and the cli, one of debug, info, warn, error.

			MARMOT_STORE_DRIVER: where resources are stored, one of catalog, memory, postgres.

			MARMOT_DB_HOST, MARMOT_DB_PORT, MARMOT_DB_NAME, MARMOT_DB_USER, MARMOT_DB_PASSWORD:
			postgres connection used by the postgres store and "marmot migrate".

			MARMOT_CATALOG_HOST, MARMOT_CATALOG_API_KEY: catalog used by "marmot lineage".
			The plugin takes these from the Pulumi provider configuration instead.
		`),
}

func New(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "marmot <command> <subcommand> [flags]",
		Short:         "Marmot resource provider",
		Long:          "Pulumi resource provider for data catalog assets and lineage.",
		SilenceErrors: true,
		SilenceUsage:  false,
		Example: heredoc.Doc(`
			$ marmot schema
			$ marmot asset diff --prior prior.yaml --desired desired.yaml
			$ marmot lineage list --source mrn://default/topic/orders
			$ marmot migrate
		`),
		Annotations: map[string]string{
			"group": "core",
			"help:learn": heredoc.Doc(`
				Use 'marmot <command> --help' for info about a command.
			`),
			"help:feedback": heredoc.Doc(`
				Open an issue here https://github.com/goto/pulumi-marmot/issues
			`),
		},
	}

	rootCmd.AddCommand(
		configCommand(cfg),
		migrateCommand(cfg),
		schemaCommand(),
		assetCommand(),
		lineageCommand(cfg),
		versionCmd(),
	)

	// Help topics
	rootCmd.AddCommand(cmdx.SetCompletionCmd("marmot"))
	rootCmd.AddCommand(cmdx.SetRefCmd(rootCmd))
	rootCmd.AddCommand(cmdx.SetHelpTopicCmd("environment", envHelp))
	cmdx.SetHelp(rootCmd)

	rootCmd.PersistentFlags().StringP(configFlag, "c", "", "Override config file")

	return rootCmd
}
