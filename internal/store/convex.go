package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
)

// ConvexTimeout bounds each mutation call.
const ConvexTimeout = 30 * time.Second

// Convex stores records through a Convex deployment's HTTP mutation API.
type Convex struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewConvex returns a store for the deployment at baseURL, authenticating with token.
func NewConvex(baseURL, token string, httpClient *http.Client) *Convex {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Convex{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: httpClient}
}

// Configured reports whether both the URL and token are set.
func (c *Convex) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

type mutation struct {
	Path string `json:"path"`
	Args any    `json:"args"`
}

type mutationResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Value  any    `json:"value"`
}

// SaveKnowledge calls knowledge:create.
func (c *Convex) SaveKnowledge(ctx context.Context, k Knowledge) (string, error) {
	entities := k.Entities
	if entities == nil {
		entities = []Entity{}
	}
	return c.mutate(ctx, "knowledge:create", map[string]any{
		"summary":         k.Summary,
		"entities":        entities,
		"relevance_score": k.RelevanceScore,
	})
}

// SaveLead calls leads:create.
func (c *Convex) SaveLead(ctx context.Context, l Lead) (string, error) {
	return c.mutate(ctx, "leads:create", map[string]any{
		"companyName": l.CompanyName,
		"website":     l.Website,
		"score":       l.Score,
		"status":      l.Status,
		"data":        map[string]any{"description": l.Description},
	})
}

// SaveProposal calls proposals:create.
func (c *Convex) SaveProposal(ctx context.Context, p Proposal) (string, error) {
	args := map[string]any{
		"prospectName": p.ProspectName,
		"prospectUrl":  p.ProspectURL,
		"template":     p.Template,
		"model":        p.Model,
		"deepScrape":   p.DeepScrape,
		"content":      p.Content,
	}
	if p.FallbackModel != "" {
		args["fallbackModel"] = p.FallbackModel
	}
	if p.PresentationURL != "" {
		args["presentationUrl"] = p.PresentationURL
	}
	return c.mutate(ctx, "proposals:create", args)
}

func (c *Convex) mutate(ctx context.Context, path string, args any) (string, error) {
	if !c.Configured() {
		return "", apierr.Configuration("Convex URL or token not configured")
	}

	var out mutationResult
	err := fetch.JSON(ctx, c.httpClient, fetch.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/api/mutation",
		Headers: map[string]string{"Authorization": "Bearer " + c.token},
		Body:    mutation{Path: path, Args: args},
		Timeout: ConvexTimeout,
	}, &out)
	if err != nil {
		return "", classifyConvex(path, err)
	}

	if out.ID != "" {
		return out.ID, nil
	}
	if id, ok := out.Value.(string); ok {
		return id, nil
	}
	return "unknown", nil
}

func classifyConvex(path string, err error) error {
	var status *fetch.StatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusUnauthorized:
			return apierr.External("convex", apierr.CodeAuthInvalidKey, "Unauthorized - Invalid Convex token", false).WithCause(err)
		case http.StatusNotFound:
			return apierr.External("convex", apierr.CodeConvexMutationFailed, "Convex mutation not found: "+path, false).WithCause(err)
		}
		return apierr.FromHTTPStatus("convex", status.StatusCode, status.Body).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.External("convex", apierr.CodeConvexTimeout, "Request timed out while calling "+path, true).WithCause(err)
	}
	return apierr.External("convex", apierr.CodeConvexAPI, fmt.Sprintf("Error calling %s", path), true).WithCause(err)
}
