package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const googleNumResults = 10

// Google searches with the Programmable Search (Custom Search JSON) API.
type Google struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogle creates a searcher for engine cx. Extra options are passed to the API client.
func NewGoogle(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" || cx == "" {
		return nil, apierr.Configuration("Google search API key and engine ID are required")
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx}, nil
}

// Search implements Searcher.
func (g *Google) Search(ctx context.Context, query string) ([]Result, error) {
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(googleNumResults).Context(ctx).Do()
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			return nil, apierr.FromHTTPStatus("google", gErr.Code, gErr.Message).WithCause(err)
		}
		return nil, apierr.External("google", apierr.CodeExaAPI, "search failed", true).WithCause(err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{
			Title: item.Title,
			URL:   item.Link,
			Text:  truncate(item.Snippet, MaxTextLength),
		})
	}
	return results, nil
}
