package main

import (
	"strings"

	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>",
	Short: "Extract a knowledge base from a website",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var ingestOut string

func init() {
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	ctx := logging.WithAgent(cmd.Context(), "knowledge")

	comps, err := buildComponents(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer comps.Close()

	resp, err := comps.knowledgeAgent(cfg, logger).Ingest(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), ingestOut, resp)
}
