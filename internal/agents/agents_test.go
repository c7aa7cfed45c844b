package agents

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/search"
	"github.com/jonathan/propoto-agents/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu    sync.Mutex
	out   string
	err   error
	calls []llm.Request
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.out, f.err
}

func (f *fakeLLM) Close() error { return nil }

type fakeScraper struct {
	content string
	errs    []error
	calls   int
}

func (f *fakeScraper) Scrape(context.Context, string) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return f.content, nil
}

type fakeSearcher struct {
	results []search.Result
	err     error
	calls   int
}

func (f *fakeSearcher) Search(context.Context, string) ([]search.Result, error) {
	f.calls++
	return f.results, f.err
}

type memStore struct {
	mu        sync.Mutex
	knowledge []store.Knowledge
	leads     []store.Lead
	failFor   map[string]bool
}

func (m *memStore) SaveKnowledge(_ context.Context, k store.Knowledge) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knowledge = append(m.knowledge, k)
	return "k1", nil
}

func (m *memStore) SaveLead(_ context.Context, l store.Lead) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[l.CompanyName] {
		return "", apierr.External("convex", apierr.CodeConvexMutationFailed, "Convex mutation not found", false)
	}
	m.leads = append(m.leads, l)
	return "l1", nil
}

func (m *memStore) SaveProposal(context.Context, store.Proposal) (string, error) { return "", nil }

func fastOptions() Options {
	return Options{Retry: fetch.RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}}
}

const knowledgeJSON = `{
  "summary": "Acme sells billing software to SaaS companies.",
  "entities": [{"name": "Stripe", "type": "competitor", "details": "Named on the pricing page"}],
  "relevance_score": 8
}`

func TestKnowledgeAgent_Ingest(t *testing.T) {
	client := &fakeLLM{out: knowledgeJSON}
	scraper := &fakeScraper{content: "# Acme\nBilling for SaaS."}
	st := &memStore{}
	agent := NewKnowledgeAgent(client, scraper, st, fastOptions())

	resp, err := agent.Ingest(context.Background(), " https://acme.example/pricing ")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "https://acme.example/pricing", resp.URL)
	assert.Equal(t, 8, resp.Data.RelevanceScore)
	assert.Equal(t, "k1", resp.KnowledgeID)

	require.Len(t, client.calls, 1)
	assert.Equal(t, llm.DefaultModel, client.calls[0].Model)
	assert.Contains(t, client.calls[0].Prompt, "Billing for SaaS.")
	assert.Contains(t, client.calls[0].System, "competitive intelligence")

	require.Len(t, st.knowledge, 1)
	assert.Equal(t, "Stripe", st.knowledge[0].Entities[0].Name)
}

func TestKnowledgeAgent_RetriesTransientScrapeFailures(t *testing.T) {
	transient := apierr.External("firecrawl", apierr.CodeFirecrawlAPI, "server error", true)
	scraper := &fakeScraper{content: "ok", errs: []error{transient, transient}}
	agent := NewKnowledgeAgent(&fakeLLM{out: knowledgeJSON}, scraper, nil, fastOptions())

	_, err := agent.Ingest(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, 3, scraper.calls)
}

func TestKnowledgeAgent_ScrapeFailure(t *testing.T) {
	scraper := &fakeScraper{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	client := &fakeLLM{out: knowledgeJSON}
	agent := NewKnowledgeAgent(client, scraper, nil, fastOptions())

	_, err := agent.Ingest(context.Background(), "https://acme.example")
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeFirecrawlScrapeFailed, e.Code)
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.Equal(t, 3, scraper.calls)
	assert.Empty(t, client.calls)
}

func TestKnowledgeAgent_RejectsBadURLs(t *testing.T) {
	tests := []struct {
		url  string
		code apierr.Code
	}{
		{"", apierr.CodeMissingField},
		{"acme.example", apierr.CodeInvalidURL},
		{"http://metadata.google.internal/", apierr.CodeInvalidURL},
		{"http://192.168.1.1", apierr.CodeInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			scraper := &fakeScraper{content: "x"}
			agent := NewKnowledgeAgent(&fakeLLM{out: knowledgeJSON}, scraper, nil, fastOptions())

			_, err := agent.Ingest(context.Background(), tt.url)
			e, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Zero(t, scraper.calls)
		})
	}
}

func TestKnowledgeAgent_ModelErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeLLM
		code   apierr.Code
		status int
	}{
		{"malformed output", &fakeLLM{out: `{"summary": "x", "entities": [], "relevance_score": 42}`}, apierr.CodeAgentOutput, 500},
		{"provider failure", &fakeLLM{err: errors.New("boom")}, apierr.CodeAgentFailed, 500},
		{"credits", &fakeLLM{err: errors.New("status 402")}, apierr.CodeOpenRouterAPI, 402},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := NewKnowledgeAgent(tt.client, &fakeScraper{content: "x"}, nil, fastOptions())
			_, err := agent.Ingest(context.Background(), "https://acme.example")
			e, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.Status)
		})
	}
}

const salesJSON = `{
  "leads": [
    {"company_name": "Bright Smiles", "website": "https://brightsmiles.example", "description": "Growing clinic", "score": 91},
    {"company_name": "Tooth Co", "website": "https://toothco.example", "description": "Hiring", "score": 74, "status": "new"},
    {"company_name": "Meh Dental", "website": "https://meh.example", "description": "Unclear fit", "score": 45}
  ],
  "market_summary": "Busy market."
}`

func TestSalesAgent_FindLeads(t *testing.T) {
	client := &fakeLLM{out: salesJSON}
	searcher := &fakeSearcher{results: []search.Result{{Title: "Bright Smiles", URL: "https://brightsmiles.example"}}}
	st := &memStore{}
	agent := NewSalesAgent(client, searcher, st, fastOptions())

	resp, err := agent.FindLeads(context.Background(), "dental clinics in Austin")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Leads, 2)
	for _, l := range resp.Data.Leads {
		assert.GreaterOrEqual(t, l.Score, MinLeadScore)
		assert.Equal(t, "new", l.Status)
	}
	assert.Equal(t, "Busy market.", resp.Data.MarketSummary)
	assert.Equal(t, 2, resp.Stored)
	assert.Zero(t, resp.StoreFailed)
	assert.Len(t, st.leads, 2)

	assert.Contains(t, client.calls[0].Prompt, "https://brightsmiles.example")
	assert.Contains(t, client.calls[0].Prompt, "dental clinics in Austin")
}

func TestSalesAgent_CountsStoreFailures(t *testing.T) {
	st := &memStore{failFor: map[string]bool{"Tooth Co": true}}
	agent := NewSalesAgent(&fakeLLM{out: salesJSON}, &fakeSearcher{}, st, fastOptions())

	resp, err := agent.FindLeads(context.Background(), "dentists")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Stored)
	assert.Equal(t, 1, resp.StoreFailed)
	assert.Len(t, resp.Data.Leads, 2)
}

func TestSalesAgent_NoStore(t *testing.T) {
	agent := NewSalesAgent(&fakeLLM{out: salesJSON}, &fakeSearcher{}, nil, fastOptions())
	resp, err := agent.FindLeads(context.Background(), "dentists")
	require.NoError(t, err)
	assert.Zero(t, resp.Stored)
	assert.Zero(t, resp.StoreFailed)
}

func TestSalesAgent_SearchErrors(t *testing.T) {
	t.Run("retryable errors are retried then surfaced", func(t *testing.T) {
		searcher := &fakeSearcher{err: apierr.FromHTTPStatus("exa", http.StatusTooManyRequests, "")}
		client := &fakeLLM{out: salesJSON}
		agent := NewSalesAgent(client, searcher, nil, fastOptions())

		_, err := agent.FindLeads(context.Background(), "dentists")
		e, ok := apierr.As(err)
		require.True(t, ok)
		assert.Equal(t, apierr.CodeExaRate, e.Code)
		assert.Equal(t, 60, e.RetryAfterSeconds)
		assert.Equal(t, 3, searcher.calls)
		assert.Empty(t, client.calls)
	})

	t.Run("auth errors are not retried", func(t *testing.T) {
		searcher := &fakeSearcher{err: apierr.FromHTTPStatus("exa", http.StatusUnauthorized, "")}
		agent := NewSalesAgent(&fakeLLM{out: salesJSON}, searcher, nil, fastOptions())

		_, err := agent.FindLeads(context.Background(), "dentists")
		require.Error(t, err)
		assert.Equal(t, 1, searcher.calls)
	})
}

func TestSalesAgent_Validation(t *testing.T) {
	agent := NewSalesAgent(&fakeLLM{out: salesJSON}, &fakeSearcher{}, nil, fastOptions())
	_, err := agent.FindLeads(context.Background(), "   ")
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "prompt is required", e.Message)

	agent = NewSalesAgent(&fakeLLM{out: salesJSON}, nil, nil, fastOptions())
	_, err = agent.FindLeads(context.Background(), "dentists")
	e, ok = apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeConfigMissingEnv, e.Code)
}

func TestQualified(t *testing.T) {
	got := qualified([]store.Lead{{Score: 59}, {Score: 60, Status: "contacted"}, {Score: 100}})
	require.Len(t, got, 2)
	assert.Equal(t, "contacted", got[0].Status)
	assert.Equal(t, "new", got[1].Status)
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) save() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "", errors.New("connection reset")
}

func (f *failingStore) SaveKnowledge(context.Context, store.Knowledge) (string, error) { return f.save() }
func (f *failingStore) SaveLead(context.Context, store.Lead) (string, error)           { return f.save() }
func (f *failingStore) SaveProposal(context.Context, store.Proposal) (string, error)   { return f.save() }

func TestKnowledgeAgent_PartialStoreFailureKeepsID(t *testing.T) {
	failing := &failingStore{}
	healthy := &memStore{}
	agent := NewKnowledgeAgent(&fakeLLM{out: knowledgeJSON}, &fakeScraper{content: "# Acme"},
		store.Multi{failing, healthy}, fastOptions())

	resp, err := agent.Ingest(context.Background(), "https://acme.example")
	require.NoError(t, err)

	assert.Equal(t, "k1", resp.KnowledgeID)
	assert.Len(t, healthy.knowledge, 1, "healthy store must be written once")
	assert.Equal(t, 3, failing.calls)
}
