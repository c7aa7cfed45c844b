package agents

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/prompts"
	"github.com/jonathan/propoto-agents/internal/schemas"
	"github.com/jonathan/propoto-agents/internal/search"
	"github.com/jonathan/propoto-agents/internal/store"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Lead scoring and storage limits.
const (
	MinLeadScore     = 60
	storeConcurrency = 4
)

// SalesResult is the model's lead list.
type SalesResult struct {
	Leads         []store.Lead `json:"leads"`
	MarketSummary string       `json:"market_summary"`
}

// SalesResponse is returned by FindLeads.
type SalesResponse struct {
	Success     bool         `json:"success"`
	Data        *SalesResult `json:"data"`
	Stored      int          `json:"stored"`
	StoreFailed int          `json:"store_failed"`
}

var salesSchema = llm.ExtractionSchema{
	Name:        "sales",
	Description: "Find and score leads for the request below using only the search results.",
	Fields: []llm.SchemaField{
		{
			Name:     "leads",
			Type:     `[{"company_name": "string", "website": "https://...", "description": "string", "score": 0, "status": "new"}]`,
			Required: true,
		},
		{Name: "market_summary", Description: "3-4 sentences", Required: true},
	},
}

// SalesAgent finds prospective customers for a free-text request.
type SalesAgent struct {
	llm      llm.Client
	searcher search.Searcher
	store    store.Store
	opts     Options
}

// NewSalesAgent wires the agent. st may be nil to skip storage.
func NewSalesAgent(client llm.Client, searcher search.Searcher, st store.Store, opts Options) *SalesAgent {
	opts = opts.withDefaults()
	if st != nil {
		st = store.WithRetry(st, opts.Retry)
	}
	return &SalesAgent{llm: client, searcher: searcher, store: st, opts: opts}
}

// FindLeads searches the web for request, asks the model to qualify the hits, drops leads
// scoring below MinLeadScore and stores the rest.
func (a *SalesAgent) FindLeads(ctx context.Context, request string) (*SalesResponse, error) {
	ctx = logging.WithAgent(ctx, "sales")
	log := logging.With(ctx, a.opts.Logger)

	request = strings.TrimSpace(request)
	if request == "" {
		return nil, apierr.MissingField("prompt")
	}
	if a.searcher == nil {
		return nil, apierr.Configuration("No search provider configured")
	}

	log.Info("starting lead search", zap.String("query", request))
	var results []search.Result
	err := fetch.Retry(ctx, a.opts.Retry, func(ctx context.Context) error {
		var err error
		results, err = a.searcher.Search(ctx, request)
		return err
	})
	if err != nil {
		log.Error("lead search failed", zap.Error(err))
		return nil, err
	}
	log.Info("lead search completed", zap.Int("result_count", len(results)))

	var result SalesResult
	prompt := llm.BuildExtractionPrompt(salesSchema,
		"Request: "+request+"\n\nSearch results",
		clip(search.FormatResults(results), maxToolInput))
	system := prompts.MustGet(prompts.SalesFile, prompts.SystemKey)
	if err := runModel(ctx, a.llm, a.opts, "sales", system, prompt, schemas.Sales, &result); err != nil {
		log.Error("lead qualification failed", zap.Error(err))
		return nil, err
	}

	result.Leads = qualified(result.Leads)
	resp := &SalesResponse{Success: true, Data: &result}
	resp.Stored, resp.StoreFailed = a.storeLeads(ctx, result.Leads)

	log.Info("leads found",
		zap.Int("leads", len(result.Leads)),
		zap.Int("stored", resp.Stored),
		zap.Int("store_failed", resp.StoreFailed))
	return resp, nil
}

// qualified drops leads under MinLeadScore and fills in the default status.
func qualified(leads []store.Lead) []store.Lead {
	out := make([]store.Lead, 0, len(leads))
	for _, l := range leads {
		if l.Score < MinLeadScore {
			continue
		}
		if l.Status == "" {
			l.Status = "new"
		}
		out = append(out, l)
	}
	return out
}

// storeLeads saves each lead independently; one failure does not stop the others.
func (a *SalesAgent) storeLeads(ctx context.Context, leads []store.Lead) (stored, failed int) {
	if a.store == nil || len(leads) == 0 {
		return 0, 0
	}
	log := logging.With(ctx, a.opts.Logger)

	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(storeConcurrency)
	for _, lead := range leads {
		g.Go(func() error {
			if _, err := a.store.SaveLead(gctx, lead); err != nil {
				bad.Add(1)
				telemetry.LeadsStored.WithLabelValues("failed").Inc()
				log.Warn("failed to store lead", zap.String("company_name", lead.CompanyName), zap.Error(err))
				return nil
			}
			ok.Add(1)
			telemetry.LeadsStored.WithLabelValues("success").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}
