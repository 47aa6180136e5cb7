// Package cmd implements the osagent command line interface.
package cmd

import (
	"strings"

	"github.com/dinoki-ai/osagent/internal/config"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "osagent",
	Short: "Autonomous agent over a local OpenAI-compatible model server",
	Long: `Osagent turns a natural language request into an issue, plans it,
executes the plan with tools against a local model server, and verifies
the result before closing the issue out.

Typical usage:
  # Execute a task end to end
  osagent run "Summarize the TODO comments in this repo into notes.md"

  # Work through the backlog one issue at a time
  osagent next

  # Answer a question the agent asked, then continue
  osagent clarify 4f1c22d8-... "use the staging cluster"

  # Expose the agent over MCP stdio
  osagent serve`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/osagent/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/osagent")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OSAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional; defaults apply when none is found.
	_ = viper.ReadInConfig()
}

// watchConfig applies logging level changes from the config file to a
// live logger. Long-running commands call this after wiring up.
func watchConfig(log *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(fsnotify.Event) {
		cfg := config.Get()
		log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	})
	viper.WatchConfig()
}
