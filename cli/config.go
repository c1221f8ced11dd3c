package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/pulumi-marmot/internal/provider"
	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/pulumi-marmot/pkg/statsd"
	"github.com/goto/pulumi-marmot/pkg/telemetry"
	"github.com/goto/salt/cmdx"
	"github.com/goto/salt/config"
	defaults "github.com/mcuadros/go-defaults"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const (
	configFlag = "config"
	appName    = "marmot"
)

func configCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Manage plugin and cli configuration",
		Example: heredoc.Doc(`
			$ marmot config init
			$ marmot config list`),
	}

	cmd.AddCommand(configInitCommand())
	cmd.AddCommand(configListCommand(cfg))

	return cmd
}

func configInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Example: heredoc.Doc(`
			$ marmot config init
		`),
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmdx.SetConfig(appName)

			if err := cfg.Init(&Config{}); err != nil {
				return err
			}

			fmt.Printf("config created: %v\n", cfg.File())
			return nil
		},
	}
}

func configListCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration settings",
		Example: heredoc.Doc(`
			$ marmot config list
		`),
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(*cfg)
		},
	}
}

type Config struct {
	// Log
	LogLevel string `yaml:"log_level" mapstructure:"log_level" default:"info"`

	// Store
	Store provider.StoreConfig `yaml:"store" mapstructure:"store"`

	// Database
	DB postgres.Config `yaml:"db" mapstructure:"db"`

	// Catalog is only read by the cli. The plugin gets host and api key from
	// the provider configuration of the Pulumi program.
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`

	// StatsD
	StatsD statsd.Config `yaml:"statsd" mapstructure:"statsd"`

	// Telemetry
	Telemetry telemetry.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

type CatalogConfig struct {
	Host   string `yaml:"host" mapstructure:"host"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := cmdx.SetConfig(appName).Load(&cfg)
	if err != nil {
		if errors.As(err, &config.ConfigFileNotFoundError{}) {
			return LoadFromCurrentDir()
		}
		return &cfg, err
	}
	return &cfg, nil
}

// LoadPluginConfig loads the config of the plugin binary. Running without a
// config file is the normal case there, so defaults apply silently.
func LoadPluginConfig() (*Config, error) {
	cfg, err := LoadConfig()
	if errors.Is(err, ErrConfigNotFound) {
		return cfg, nil
	}
	return cfg, err
}

func LoadFromCurrentDir() (*Config, error) {
	var cfg Config
	var opts []config.LoaderOption

	opts = append(opts,
		config.WithPath("./"),
		config.WithName("marmot.yaml"),
		config.WithEnvKeyReplacer(".", "_"),
		config.WithEnvPrefix("MARMOT"),
	)

	if err := config.NewLoader(opts...).Load(&cfg); err != nil {
		if errors.As(err, &config.ConfigFileNotFoundError{}) {
			defaults.SetDefaults(&cfg)
			return &cfg, ErrConfigNotFound
		}
		return &cfg, err
	}
	return &cfg, nil
}

func LoadConfigFromFlag(cfgFile string, cfg *Config) error {
	var opts []config.LoaderOption
	opts = append(opts, config.WithFile(cfgFile))

	return config.NewLoader(opts...).Load(cfg)
}

// loadConfig reloads cfg from the file given with --config, if any.
func loadConfig(cmd *cobra.Command, cfg *Config) error {
	cfgFile, err := cmd.Flags().GetString(configFlag)
	if err != nil || cfgFile == "" {
		return nil
	}
	if err := LoadConfigFromFlag(cfgFile, cfg); err != nil {
		return fmt.Errorf("load config %q: %w", cfgFile, err)
	}
	return nil
}
