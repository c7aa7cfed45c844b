package search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
)

// DefaultExaURL is the Exa search endpoint.
const DefaultExaURL = "https://api.exa.ai/search"

const (
	exaTimeout    = 30 * time.Second
	exaNumResults = 10
)

// Exa searches with the Exa neural search API.
type Exa struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewExa returns an Exa searcher. An empty url uses DefaultExaURL.
func NewExa(url, apiKey string, httpClient *http.Client) *Exa {
	if url == "" {
		url = DefaultExaURL
	}
	return &Exa{url: url, apiKey: apiKey, httpClient: httpClient}
}

// Configured reports whether an API key is set.
func (e *Exa) Configured() bool {
	return e != nil && e.apiKey != ""
}

type exaContents struct {
	Text bool `json:"text"`
}

type exaRequest struct {
	Query         string      `json:"query"`
	NumResults    int         `json:"numResults"`
	UseAutoprompt bool        `json:"useAutoprompt"`
	Contents      exaContents `json:"contents"`
}

type exaResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text"`
	} `json:"results"`
}

// Search implements Searcher.
func (e *Exa) Search(ctx context.Context, query string) ([]Result, error) {
	if !e.Configured() {
		return nil, apierr.Configuration("Exa API key not configured")
	}

	var resp exaResponse
	err := fetch.JSON(ctx, e.httpClient, fetch.Request{
		Method:  http.MethodPost,
		URL:     e.url,
		Headers: map[string]string{"x-api-key": e.apiKey},
		Body: exaRequest{
			Query:         query,
			NumResults:    exaNumResults,
			UseAutoprompt: true,
			Contents:      exaContents{Text: true},
		},
		Timeout: exaTimeout,
	}, &resp)
	if err != nil {
		return nil, classifyExa(err)
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Result{
			Title: strings.TrimSpace(r.Title),
			URL:   r.URL,
			Text:  truncate(r.Text, MaxTextLength),
		})
	}
	return results, nil
}

func classifyExa(err error) error {
	var status *fetch.StatusError
	if errors.As(err, &status) {
		return apierr.FromHTTPStatus("exa", status.StatusCode, status.Body).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.External("exa", apierr.CodeExaTimeout, "Request timed out while searching Exa", true).WithCause(err)
	}
	return apierr.External("exa", apierr.CodeExaAPI, "Error searching Exa", true).WithCause(err)
}
