package main

import (
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/proposal"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a sales proposal",
	Long:  "Runs the proposal pipeline once and writes the response JSON to stdout or --out.",
	RunE:  runGenerate,
}

var (
	generateReq proposal.Request
	generateOut string
)

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateReq.ProspectName, "name", "n", "", "Prospect name (required)")
	f.StringVarP(&generateReq.ProspectURL, "url", "u", "", "Prospect website URL (required)")
	f.StringVarP(&generateReq.PainPoints, "pain-points", "p", "", "Prospect pain points (required)")
	f.StringVarP(&generateReq.Model, "model", "m", "", "Model key or provider model ID (default: grok)")
	f.StringVarP(&generateReq.Template, "template", "t", "", "Proposal template (default, consultative, enterprise, startup, agency)")
	f.BoolVar(&generateReq.DeepScrape, "deep-scrape", false, "Crawl the prospect website to enrich the prompt")
	f.StringVar(&generateReq.Tone, "tone", "", "Preferred tone, overriding the template tone")
	f.StringVar(&generateReq.PresentationFormat, "format", "", "Presentation format when rendering is enabled (presentation, document, webpage)")
	f.StringVar(&generateReq.ThemeID, "theme", "", "Presentation theme ID")
	f.StringVarP(&generateOut, "out", "o", "", "Output file (default: stdout)")

	for _, name := range []string{"name", "url", "pain-points"} {
		if err := generateCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	ctx := logging.WithAgent(cmd.Context(), "proposal")

	comps, err := buildComponents(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer comps.Close()

	resp, err := comps.proposalService(cfg, logger).Generate(ctx, generateReq)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), generateOut, resp)
}
