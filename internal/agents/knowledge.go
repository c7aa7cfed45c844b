package agents

import (
	"context"
	"strings"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/prompts"
	"github.com/jonathan/propoto-agents/internal/safeurl"
	"github.com/jonathan/propoto-agents/internal/schemas"
	"github.com/jonathan/propoto-agents/internal/store"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"github.com/jonathan/propoto-agents/internal/validation"
	"go.uber.org/zap"
)

// Scraper returns the readable content of one page.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// KnowledgeResult is the analysis of one page.
type KnowledgeResult struct {
	Summary        string         `json:"summary"`
	Entities       []store.Entity `json:"entities"`
	RelevanceScore int            `json:"relevance_score"`
}

// KnowledgeResponse is returned by Ingest.
type KnowledgeResponse struct {
	Success     bool             `json:"success"`
	URL         string           `json:"url"`
	Data        *KnowledgeResult `json:"data"`
	KnowledgeID string           `json:"knowledge_id,omitempty"`
}

var knowledgeSchema = llm.ExtractionSchema{
	Name:        "knowledge",
	Description: "Analyze the website content below.",
	Fields: []llm.SchemaField{
		{Name: "summary", Description: "2-3 sentences", Required: true},
		{Name: "entities", Type: `[{"name": "string", "type": "competitor|feature|pricing|other", "details": "string"}]`, Required: true},
		{Name: "relevance_score", Type: "integer", Description: "1-10", Required: true},
	},
}

// KnowledgeAgent turns a web page into structured business intelligence.
type KnowledgeAgent struct {
	llm     llm.Client
	scraper Scraper
	store   store.Store
	opts    Options
}

// NewKnowledgeAgent wires the agent. st may be nil to skip storage.
func NewKnowledgeAgent(client llm.Client, scraper Scraper, st store.Store, opts Options) *KnowledgeAgent {
	opts = opts.withDefaults()
	if st != nil {
		st = store.WithRetry(st, opts.Retry)
	}
	return &KnowledgeAgent{llm: client, scraper: scraper, store: st, opts: opts}
}

// Ingest scrapes url, extracts knowledge from it and stores the result.
func (a *KnowledgeAgent) Ingest(ctx context.Context, url string) (*KnowledgeResponse, error) {
	ctx = logging.WithAgent(ctx, "knowledge")
	log := logging.With(ctx, a.opts.Logger)

	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apierr.MissingField("url")
	}
	if err := validation.HTTPURL("url", url); err != nil {
		return nil, err
	}
	if err := safeurl.Check(url); err != nil {
		return nil, err
	}

	log.Info("starting URL scrape", zap.String("url", url))
	var content string
	err := fetch.Retry(ctx, a.opts.Retry, func(ctx context.Context) error {
		var err error
		content, err = a.scraper.Scrape(ctx, url)
		return err
	})
	if err != nil {
		log.Error("scrape failed", zap.String("url", url), zap.Error(err))
		if _, ok := apierr.As(err); ok {
			return nil, err
		}
		return nil, apierr.External("firecrawl", apierr.CodeFirecrawlScrapeFailed, "Error scraping URL: "+url, false).WithCause(err)
	}
	log.Info("URL scraped", zap.String("url", url), zap.Int("content_length", len(content)))

	var result KnowledgeResult
	prompt := llm.BuildExtractionPrompt(knowledgeSchema, "Website content from "+url, clip(content, maxToolInput))
	system := prompts.MustGet(prompts.KnowledgeFile, prompts.SystemKey)
	if err := runModel(ctx, a.llm, a.opts, "knowledge", system, prompt, schemas.Knowledge, &result); err != nil {
		log.Error("knowledge extraction failed", zap.Error(err))
		return nil, err
	}
	if result.Entities == nil {
		result.Entities = []store.Entity{}
	}

	resp := &KnowledgeResponse{Success: true, URL: url, Data: &result}
	if a.store != nil {
		id, err := a.store.SaveKnowledge(ctx, store.Knowledge{
			URL:            url,
			Summary:        result.Summary,
			Entities:       result.Entities,
			RelevanceScore: result.RelevanceScore,
		})
		resp.KnowledgeID = id
		if err != nil {
			telemetry.DegradedSteps.WithLabelValues("store").Inc()
			log.Warn("failed to store knowledge", zap.String("knowledge_id", id), zap.Error(err))
		}
	}

	log.Info("knowledge extracted",
		zap.Int("entities", len(result.Entities)),
		zap.Int("relevance_score", result.RelevanceScore))
	return resp, nil
}
