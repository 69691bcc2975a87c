package cmd

import (
	"os"
	"time"

	"github.com/rcvieira/fluxo/core/config"
	"github.com/rcvieira/fluxo/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fluxo",
	Short: "Video-production workflow tracker with real-time cache sync",
	Long: `fluxo tracks video projects through the production pipeline
(briefing, roteiro, captacao, edicao, aprovacao, aprovado) and keeps every
connected client's cache consistent through pushed change events.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags and viper-bound env vars win over plain environment defaults.
	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if viper.IsSet("app_debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
