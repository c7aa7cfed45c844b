package main

import (
	"fmt"

	"github.com/jonathan/propoto-agents/internal/crawling"
	"github.com/jonathan/propoto-agents/internal/intel"
	"github.com/jonathan/propoto-agents/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Crawl a website and extract business intelligence",
	Long: "Crawls up to --max-pages pages of a prospect website and prints the extracted business " +
		"intelligence as JSON. No model calls are made.",
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeMaxPages int
	analyzeOut      string
	analyzeRaw      bool
)

func init() {
	analyzeCmd.Flags().IntVar(&analyzeMaxPages, "max-pages", crawling.DefaultMaxPages, "Maximum pages to crawl")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Output file (default: stdout)")
	analyzeCmd.Flags().BoolVar(&analyzeRaw, "raw", false, "Include the raw page content in the output")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	target := args[0]
	if err := validation.HTTPURL("url", target); err != nil {
		return err
	}
	if analyzeMaxPages < 1 {
		return fmt.Errorf("--max-pages must be at least 1")
	}

	crawler := newCrawler(cfg, newHTTPClient(), logger)
	pages := crawler.Crawl(cmd.Context(), target, analyzeMaxPages)
	logger.Info("crawl finished", zap.String("url", target), zap.Int("pages", len(pages)))

	bi := intel.Extract(intel.Combine(pages), target)
	if !analyzeRaw {
		bi.RawContent = ""
	}
	return writeJSON(cmd.OutOrStdout(), analyzeOut, bi)
}
