package main

import (
	"fmt"
	"strings"

	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/spf13/cobra"
)

var leadsCmd = &cobra.Command{
	Use:   "leads [prompt]",
	Short: "Find sales leads, or list stored leads",
	Long: `Runs the sales agent for the given prompt and writes the response JSON.

With --stored no model is called: the highest scoring leads already saved in Postgres are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLeads,
}

var (
	leadsStored   bool
	leadsMinScore int
	leadsLimit    int
	leadsOut      string
)

func init() {
	leadsCmd.Flags().BoolVar(&leadsStored, "stored", false, "List stored leads instead of searching")
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 60, "Minimum score for --stored")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 20, "Maximum leads for --stored")
	leadsCmd.Flags().StringVarP(&leadsOut, "out", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(leadsCmd)
}

func runLeads(cmd *cobra.Command, args []string) error {
	ctx := logging.WithAgent(cmd.Context(), "sales")

	if leadsStored {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("--stored requires DATABASE_URL")
		}
		_, database, err := newStore(ctx, cfg, newHTTPClient(), false)
		if err != nil {
			return err
		}
		defer database.Close()

		leads, err := database.TopLeads(ctx, leadsMinScore, leadsLimit)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), leadsOut, leads)
	}

	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("a prompt is required unless --stored is set")
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}

	comps, err := buildComponents(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer comps.Close()

	resp, err := comps.salesAgent(cfg, logger).FindLeads(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), leadsOut, resp)
}
