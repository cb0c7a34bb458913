package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/roemer/goventusky"
	"github.com/roemer/goventusky/internal/config"
	"github.com/roemer/goventusky/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string
	// debug forces debug logging.
	debug bool

	rootCmd = &cobra.Command{
		Use:           "ventusky",
		Short:         "Extract forecasts from ventusky.com pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// .env is optional
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ventusky version %s\n", version)
		},
	})
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newForecastCommand())
	rootCmd.AddCommand(newServeCommand())
}

// setup loads the configuration and builds the logger shared by all commands.
// flagKeys maps configuration keys to the command flags overriding them.
func setup(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, *zap.Logger, error) {
	v := viper.New()
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// positionFlags adds --lat and --lon to cmd.
func positionFlags(cmd *cobra.Command) map[string]string {
	cmd.Flags().Float64("lat", 0, "latitude (default from config)")
	cmd.Flags().Float64("lon", 0, "longitude (default from config)")
	return map[string]string{
		"location.latitude":  "lat",
		"location.longitude": "lon",
	}
}

func newService(cfg *config.Config, log *zap.Logger) (*ventusky.VentuskyService, error) {
	service, err := ventusky.NewVentuskyService(cfg.HTTP.UserAgent, cfg.Cache.Directory, log)
	if err != nil {
		return nil, err
	}
	service.SetBaseURL(cfg.HTTP.BaseURL)
	service.SetHTTPTimeout(cfg.HTTP.Timeout)
	service.SetRateLimit(cfg.HTTP.RequestsPerMinute, 1)
	service.SetCacheTTL(cfg.Cache.TTL)
	return service, nil
}
