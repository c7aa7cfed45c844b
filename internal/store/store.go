// Package store persists agent output: knowledge extracted from pages, discovered leads and
// generated proposals.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jonathan/propoto-agents/internal/fetch"
)

// Entity is one fact pulled from a page.
type Entity struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

// Knowledge is the analysis of one URL.
type Knowledge struct {
	URL            string   `json:"url"`
	Summary        string   `json:"summary"`
	Entities       []Entity `json:"entities"`
	RelevanceScore int      `json:"relevance_score"`
}

// Lead is a prospective customer found by search.
type Lead struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	Description string `json:"description"`
	Score       int    `json:"score"`
	Status      string `json:"status"`
}

// Proposal records one successful proposal generation.
type Proposal struct {
	ProspectName    string          `json:"prospect_name"`
	ProspectURL     string          `json:"prospect_url"`
	Template        string          `json:"template"`
	Model           string          `json:"model"`
	FallbackModel   string          `json:"fallback_model,omitempty"`
	DeepScrape      bool            `json:"deep_scrape"`
	PresentationURL string          `json:"presentation_url,omitempty"`
	Content         json.RawMessage `json:"content"`
}

// Store saves records and returns the ID assigned by the backend.
type Store interface {
	SaveKnowledge(ctx context.Context, k Knowledge) (string, error)
	SaveLead(ctx context.Context, l Lead) (string, error)
	SaveProposal(ctx context.Context, p Proposal) (string, error)
}

// Multi writes every record to each store in order. The returned ID is the first successful
// store's; the error joins every failure.
type Multi []Store

// SaveKnowledge implements Store.
func (m Multi) SaveKnowledge(ctx context.Context, k Knowledge) (string, error) {
	return m.each(func(s Store) (string, error) { return s.SaveKnowledge(ctx, k) })
}

// SaveLead implements Store.
func (m Multi) SaveLead(ctx context.Context, l Lead) (string, error) {
	return m.each(func(s Store) (string, error) { return s.SaveLead(ctx, l) })
}

// SaveProposal implements Store.
func (m Multi) SaveProposal(ctx context.Context, p Proposal) (string, error) {
	return m.each(func(s Store) (string, error) { return s.SaveProposal(ctx, p) })
}

func (m Multi) each(save func(Store) (string, error)) (string, error) {
	var first string
	var errs []error
	for _, s := range m {
		id, err := save(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first == "" {
			first = id
		}
	}
	return first, errors.Join(errs...)
}

// WithRetry repeats failed saves on s according to policy. The stores inside a Multi are
// wrapped one by one, so a failing backend is retried without writing again to the others.
func WithRetry(s Store, policy fetch.RetryPolicy) Store {
	if m, ok := s.(Multi); ok {
		wrapped := make(Multi, len(m))
		for i, each := range m {
			wrapped[i] = WithRetry(each, policy)
		}
		return wrapped
	}
	return &retrying{store: s, policy: policy}
}

type retrying struct {
	store  Store
	policy fetch.RetryPolicy
}

func (r *retrying) SaveKnowledge(ctx context.Context, k Knowledge) (string, error) {
	return r.do(ctx, func(ctx context.Context) (string, error) { return r.store.SaveKnowledge(ctx, k) })
}

func (r *retrying) SaveLead(ctx context.Context, l Lead) (string, error) {
	return r.do(ctx, func(ctx context.Context) (string, error) { return r.store.SaveLead(ctx, l) })
}

func (r *retrying) SaveProposal(ctx context.Context, p Proposal) (string, error) {
	return r.do(ctx, func(ctx context.Context) (string, error) { return r.store.SaveProposal(ctx, p) })
}

func (r *retrying) do(ctx context.Context, save func(context.Context) (string, error)) (string, error) {
	var id string
	err := fetch.Retry(ctx, r.policy, func(ctx context.Context) error {
		var err error
		id, err = save(ctx)
		return err
	})
	return id, err
}
