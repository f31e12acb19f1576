package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
)

const app = "loanctl"

var rootCmd = &cobra.Command{
	Use:          app,
	Short:        "loanctl trains, validates and queries the home loan approval model",
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		slog.SetDefault(logger.New(os.Stderr, viper.GetString("log-level"), "text"))
	},
}

func init() {
	viper.SetEnvPrefix("LOANCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "a config file (default: built-in defaults plus LA_* environment)")
	flags.String("data", "", "training data file (.csv or .xlsx)")
	flags.String("artifact", "", "fitted pipeline artifact path")
	flags.String("policy", "", "policy document used by ask")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")

	for _, name := range []string{"config", "data", "artifact", "policy", "log-level"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// loadConfig reads the service configuration and layers the CLI's flag and
// LOANCTL_* environment values over it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if v := viper.GetString("data"); v != "" {
		cfg.Training.DataPath = v
	}
	if v := viper.GetString("artifact"); v != "" {
		cfg.Predictor.ArtifactPath = v
	}
	if v := viper.GetString("policy"); v != "" {
		cfg.Predictor.PolicyPath = v
	}
	return cfg, nil
}
