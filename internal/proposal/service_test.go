package proposal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/presentation"
	"github.com/jonathan/propoto-agents/internal/store"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProposal = `{
  "executive_summary": "Acme can cut churn by a third.",
  "current_situation": "Onboarding is manual.",
  "proposed_strategy": "Automate onboarding in two phases.",
  "why_us": "We shipped this for 40 SaaS teams.",
  "investment": [
    {"name": "Starter", "price": "$2,000/mo", "features": ["Audit"]},
    {"name": "Growth", "price": "$5,000/mo", "features": ["Audit", "Build"]},
    {"name": "Scale", "price": "$9,000/mo", "features": ["Audit", "Build", "Support"]}
  ],
  "next_steps": "Book a 30 minute call."
}`

const twoTierProposal = `{
  "executive_summary": "a", "current_situation": "b", "proposed_strategy": "c", "why_us": "d",
  "investment": [
    {"name": "One", "price": "$1", "features": []},
    {"name": "Two", "price": "$2", "features": []}
  ],
  "next_steps": "e"
}`

type reply struct {
	text string
	err  error
}

// scriptedLLM returns replies in order and repeats the last one.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []reply
	calls   []llm.Request
}

func (s *scriptedLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	r := s.replies[len(s.replies)-1]
	if len(s.calls) <= len(s.replies) {
		r = s.replies[len(s.calls)-1]
	}
	return r.text, r.err
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) models() []string {
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Model
	}
	return out
}

type fakeCrawler struct {
	pages []string
	panic bool
	calls int
}

func (f *fakeCrawler) Crawl(context.Context, string, int) []string {
	f.calls++
	if f.panic {
		panic("parser exploded")
	}
	return f.pages
}

type fakeRenderer struct {
	enabled bool
	calls   int
	got     presentation.Input
}

func (f *fakeRenderer) Enabled() bool { return f.enabled }

func (f *fakeRenderer) Generate(_ context.Context, in presentation.Input) presentation.Artifacts {
	f.calls++
	f.got = in
	url := "https://gamma.app/docs/1"
	return presentation.Artifacts{ViewURL: &url}
}

type fakeRecorder struct {
	saved []store.Proposal
	err   error
}

func (f *fakeRecorder) SaveProposal(_ context.Context, p store.Proposal) (string, error) {
	f.saved = append(f.saved, p)
	return "p1", f.err
}

func baseRequest() Request {
	return Request{
		ProspectName: "Acme",
		ProspectURL:  "https://acme.example",
		PainPoints:   "slow onboarding",
	}
}

func TestGenerate_Success(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{text: validProposal}}}
	svc := NewService(client, nil, nil, nil, Config{}, nil)

	resp, err := svc.Generate(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Investment, 3)
	assert.Equal(t, "Growth", resp.Data.Investment[1].Name)
	assert.Equal(t, llm.DefaultModel, resp.ModelUsed)
	assert.Nil(t, resp.FallbackModelUsed)
	assert.Equal(t, DefaultTemplate, resp.TemplateUsed)
	assert.False(t, resp.DeepScrapeEnabled)
	assert.Nil(t, resp.PresentationURL)
	assert.Nil(t, resp.PDFURL)
	assert.Nil(t, resp.PPTXURL)

	require.Len(t, client.calls, 1)
	call := client.calls[0]
	assert.Equal(t, llm.DefaultMaxTokens, call.MaxTokens)
	assert.True(t, call.JSON)
	assert.Contains(t, call.System, "Acme")
	assert.Contains(t, call.Prompt, "Pain Points: slow onboarding")
	assert.NotContains(t, call.Prompt, "WEBSITE INTELLIGENCE")
}

func TestGenerate_ResolvesRegistryModel(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{text: validProposal}}}
	svc := NewService(client, nil, nil, nil, Config{}, nil)

	req := baseRequest()
	req.Model = "claude-sonnet"
	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	id, known := llm.ResolveModel("claude-sonnet")
	require.True(t, known)
	assert.Equal(t, []string{id}, client.models())
	assert.Equal(t, "claude-sonnet", resp.ModelUsed)
}

func TestGenerate_ValidationRejectsBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		code    apierr.Code
		message string
	}{
		{"missing name", func(r *Request) { r.ProspectName = " " }, apierr.CodeMissingField, "prospect_name is required"},
		{"missing url", func(r *Request) { r.ProspectURL = "" }, apierr.CodeMissingField, "prospect_url is required"},
		{"missing pain points", func(r *Request) { r.PainPoints = "" }, apierr.CodeMissingField, "pain_points is required"},
		{"ftp url", func(r *Request) { r.ProspectURL = "ftp://acme.example" }, apierr.CodeInvalidURL, "prospect_url must be a valid HTTP/HTTPS URL"},
		{"metadata address", func(r *Request) { r.ProspectURL = "http://169.254.169.254/" }, apierr.CodeInvalidURL, "Blocked hostname: 169.254.169.254"},
		{"private address", func(r *Request) { r.ProspectURL = "http://10.0.0.8/admin" }, apierr.CodeInvalidURL, "Internal IP address not allowed: 10.0.0.8"},
		{"loopback name", func(r *Request) { r.ProspectURL = "http://localhost:8080" }, apierr.CodeInvalidURL, "Blocked hostname: localhost"},
		{
			"unknown template",
			func(r *Request) { r.Template = "poetry" },
			apierr.CodeTemplateNotFound,
			"Invalid template. Available: default, consultative, enterprise, startup, agency",
		},
		{
			"bad presentation format",
			func(r *Request) { r.PresentationFormat = "poster" },
			apierr.CodeInvalidFormat,
			"presentation_format must be one of: presentation, document, webpage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedLLM{replies: []reply{{text: validProposal}}}
			crawler := &fakeCrawler{pages: []string{"page"}}
			svc := NewService(client, crawler, nil, nil, Config{}, nil)

			req := baseRequest()
			req.DeepScrape = true
			tt.mutate(&req)

			resp, err := svc.Generate(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, resp)

			e, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, http.StatusBadRequest, e.Status)

			assert.Empty(t, client.calls)
			assert.Zero(t, crawler.calls)
		})
	}
}

func TestGenerate_CreditFallbackOnPaidModel(t *testing.T) {
	client := &scriptedLLM{replies: []reply{
		{err: errors.New("Error code: 402 - {'error': {'message': 'This request requires more credits', 'code': 402}}")},
		{text: validProposal},
	}}
	svc := NewService(client, nil, nil, nil, Config{}, nil)
	before := testutil.ToFloat64(telemetry.CreditFallbacks)

	req := baseRequest()
	req.Model = "claude-sonnet"
	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	requested, _ := llm.ResolveModel("claude-sonnet")
	assert.Equal(t, []string{requested, llm.DefaultModel}, client.models())
	assert.Equal(t, "claude-sonnet", resp.ModelUsed)
	require.NotNil(t, resp.FallbackModelUsed)
	assert.Equal(t, llm.DefaultModel, *resp.FallbackModelUsed)
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.CreditFallbacks))
}

func TestGenerate_CreditFallbackAlsoFails(t *testing.T) {
	original := errors.New("openrouter x: status 402")
	client := &scriptedLLM{replies: []reply{
		{err: original},
		{err: errors.New("upstream unavailable")},
	}}
	svc := NewService(client, nil, nil, nil, Config{}, nil)

	req := baseRequest()
	req.Model = "gpt-4o"
	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Len(t, client.calls, 2)

	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusPaymentRequired, e.Status)
	assert.Equal(t, apierr.CodeOpenRouterAPI, e.Code)
	assert.Equal(t,
		"Insufficient OpenRouter credits. Requested model requires more credits than available. "+
			"Error: openrouter x: status 402. Please upgrade your OpenRouter account at "+
			"https://openrouter.ai/settings/credits or use the free 'grok' model.",
		e.Message)
	assert.ErrorIs(t, err, original)
}

func TestGenerate_CreditExhaustedOnDefaultModelDoesNotRetry(t *testing.T) {
	for _, model := range []string{"", "grok", llm.DefaultModel} {
		t.Run("model="+model, func(t *testing.T) {
			client := &scriptedLLM{replies: []reply{{err: errors.New("402 can only afford 100 tokens")}}}
			svc := NewService(client, nil, nil, nil, Config{}, nil)

			req := baseRequest()
			req.Model = model
			_, err := svc.Generate(context.Background(), req)
			require.Error(t, err)

			assert.Len(t, client.calls, 1)
			assert.Equal(t, http.StatusPaymentRequired, apierr.HTTPStatus(err))
			e, _ := apierr.As(err)
			assert.Equal(t,
				"Insufficient OpenRouter credits. Error: 402 can only afford 100 tokens. "+
					"Please upgrade your OpenRouter account at https://openrouter.ai/settings/credits",
				e.Message)
		})
	}
}

func TestGenerate_OtherErrorsAreNotRetried(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{err: errors.New("connection reset by peer")}}}
	svc := NewService(client, nil, nil, nil, Config{}, nil)

	req := baseRequest()
	req.Model = "claude-sonnet"
	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)

	assert.Len(t, client.calls, 1)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, apierr.CodeAgentFailed, e.Code)
	assert.Equal(t, "Failed to generate proposal content: connection reset by peer", e.Message)
}

func TestGenerate_DeadlineIsAgentTimeout(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{err: context.DeadlineExceeded}}}
	svc := NewService(client, nil, nil, nil, Config{}, nil)

	_, err := svc.Generate(context.Background(), baseRequest())
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeAgentTimeout, e.Code)
}

func TestGenerate_WrongTierCountRetriedOnce(t *testing.T) {
	t.Run("second answer accepted", func(t *testing.T) {
		client := &scriptedLLM{replies: []reply{{text: twoTierProposal}, {text: validProposal}}}
		svc := NewService(client, nil, nil, nil, Config{}, nil)

		resp, err := svc.Generate(context.Background(), baseRequest())
		require.NoError(t, err)
		assert.Len(t, resp.Data.Investment, 3)
		assert.Len(t, client.calls, 2)
		assert.Equal(t, client.calls[0].Model, client.calls[1].Model)
	})

	t.Run("both answers rejected", func(t *testing.T) {
		client := &scriptedLLM{replies: []reply{{text: twoTierProposal}, {text: "not json at all"}}}
		svc := NewService(client, nil, nil, nil, Config{}, nil)

		req := baseRequest()
		req.Model = "claude-sonnet"
		resp, err := svc.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Len(t, client.calls, 2)

		e, ok := apierr.As(err)
		require.True(t, ok)
		assert.Equal(t, apierr.CodeAgentOutput, e.Code)
		assert.Equal(t, http.StatusInternalServerError, e.Status)
	})
}

func TestGenerate_DeepScrapeEnrichesPrompt(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{text: validProposal}}}
	crawler := &fakeCrawler{pages: []string{
		"Acme is a SaaS platform for subscription billing. Trusted by 500+ companies.",
		"Our API integrates with Stripe and Salesforce.",
	}}
	svc := NewService(client, crawler, nil, nil, Config{}, nil)

	req := baseRequest()
	req.DeepScrape = true
	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.DeepScrapeEnabled)
	assert.Equal(t, 1, crawler.calls)
	prompt := client.calls[0].Prompt
	assert.Contains(t, prompt, "--- WEBSITE INTELLIGENCE")
	assert.Contains(t, prompt, "Company Name: Acme")
	assert.Contains(t, prompt, "Industry: saas")
}

func TestGenerate_EnrichmentFailuresAbsorbed(t *testing.T) {
	tests := []struct {
		name    string
		crawler *fakeCrawler
	}{
		{"empty crawl", &fakeCrawler{}},
		{"crawler panics", &fakeCrawler{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedLLM{replies: []reply{{text: validProposal}}}
			svc := NewService(client, tt.crawler, nil, nil, Config{}, nil)

			req := baseRequest()
			req.DeepScrape = true
			resp, err := svc.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.NotContains(t, client.calls[0].Prompt, "WEBSITE INTELLIGENCE")
		})
	}
}

func TestGenerate_NoCrawlWithoutDeepScrape(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{text: validProposal}}}
	crawler := &fakeCrawler{pages: []string{"content"}}
	svc := NewService(client, crawler, nil, nil, Config{}, nil)

	_, err := svc.Generate(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Zero(t, crawler.calls)
}

func TestGenerate_RenderingGated(t *testing.T) {
	tests := []struct {
		name       string
		cfgOn      bool
		rendererOn bool
		wantCalls  int
	}{
		{"disabled by config", false, true, 0},
		{"renderer without credentials", true, false, 0},
		{"enabled", true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedLLM{replies: []reply{{text: validProposal}}}
			renderer := &fakeRenderer{enabled: tt.rendererOn}
			svc := NewService(client, nil, renderer, nil, Config{PresentationEnabled: tt.cfgOn}, nil)

			req := baseRequest()
			req.PresentationFormat = "document"
			resp, err := svc.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, renderer.calls)

			if tt.wantCalls == 0 {
				assert.Nil(t, resp.PresentationURL)
				return
			}
			require.NotNil(t, resp.PresentationURL)
			assert.Equal(t, "https://gamma.app/docs/1", *resp.PresentationURL)
			assert.Nil(t, resp.PDFURL)
			assert.Equal(t, "document", renderer.got.Format)
			assert.Len(t, renderer.got.Investment, 3)
		})
	}
}

func TestGenerate_RecordsProposal(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{text: validProposal}}}
	rec := &fakeRecorder{}
	svc := NewService(client, nil, nil, rec, Config{}, nil)

	req := baseRequest()
	req.Template = "startup"
	_, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, rec.saved, 1)
	saved := rec.saved[0]
	assert.Equal(t, "Acme", saved.ProspectName)
	assert.Equal(t, "startup", saved.Template)
	assert.Equal(t, llm.DefaultModel, saved.Model)
	assert.True(t, strings.Contains(string(saved.Content), `"executive_summary"`))
}

func TestGenerate_RecordFailureAbsorbed(t *testing.T) {
	client := &scriptedLLM{replies: []reply{{text: validProposal}}}
	rec := &fakeRecorder{err: errors.New("convex down")}
	svc := NewService(client, nil, nil, rec, Config{}, nil)

	resp, err := svc.Generate(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
}
