package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/memberapi/internal/config"
)

var appVersion string // set in Execute, shown by serve and mcp

// rootOptions carries the persistent flags and the configuration source
// shared by every subcommand.
type rootOptions struct {
	cfgFile string
	envFile string
	dev     bool

	v *viper.Viper
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	config.SetDefaults(opts.v)

	cmd := &cobra.Command{
		Use:   "memberapi",
		Short: "Administrator accounts for the member registry",
		Long: `memberapi stores administrator accounts in an embedded SQLite file and serves
them over a small authenticated REST API.

Configuration comes from flags, MEMBERAPI_* environment variables (plus the
DATABASE_URL, ADMIN_SQL_FILE and SECRET_KEY names), a .env file and
memberapi.yaml, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./"+config.DefaultFileName+")")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "Development mode (debug logging, same as environment=DEV)")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newDBCmd(opts))
	cmd.AddCommand(newAdminCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}

func (o *rootOptions) initConfig() error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}
	if err := config.BindEnv(o.v); err != nil {
		return err
	}

	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		name := strings.TrimSuffix(config.DefaultFileName, ".yaml")
		o.v.SetConfigName(name)
		o.v.SetConfigType("yaml")
		o.v.AddConfigPath(".")
	}

	if err := o.v.ReadInConfig(); err != nil {
		// The default file is optional; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if o.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if o.dev {
		o.v.Set("environment", config.EnvironmentDev)
	}
	return nil
}

// settings loads and validates the effective configuration.
func (o *rootOptions) settings() (*config.Settings, error) {
	return config.Load(o.v)
}
