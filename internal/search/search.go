// Package search finds companies on the web for lead discovery. Exa and Google Custom Search
// are interchangeable behind Searcher.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MaxTextLength bounds the page text kept per result.
const MaxTextLength = 500

// Providers selectable by configuration.
const (
	ProviderExa    = "exa"
	ProviderGoogle = "google"
)

// Result is one hit, trimmed for use in a model prompt.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// FormatResults renders results as a JSON array for a prompt.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "[]"
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Sprint(results)
	}
	return string(b)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
