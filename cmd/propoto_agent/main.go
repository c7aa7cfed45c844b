// Package main provides the propoto_agent CLI: the agent HTTP API server and one-shot
// proposal, analysis and lead-discovery commands.
package main

import (
	"fmt"
	"os"

	"github.com/jonathan/propoto-agents/internal/config"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logFormat  string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "propoto_agent",
	Short: "Propoto agent service",
	Long: "Propoto generates personalized sales proposals from a prospect's website, ingests " +
		"web pages into a knowledge base and discovers qualified leads.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Optional JSON or YAML config file; environment variables take precedence")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func setup(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}

	l, err := logging.New(loaded.LogFormat, loaded.LogLevel)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
