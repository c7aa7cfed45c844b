package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/crawling"
	"github.com/jonathan/propoto-agents/internal/intel"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/presentation"
	"github.com/jonathan/propoto-agents/internal/safeurl"
	"github.com/jonathan/propoto-agents/internal/schemas"
	"github.com/jonathan/propoto-agents/internal/store"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"github.com/jonathan/propoto-agents/internal/validation"
	"go.uber.org/zap"
)

const upgradeURL = "https://openrouter.ai/settings/credits"

// outputAttempts is how many times one model is asked for a proposal before malformed output
// becomes fatal.
const outputAttempts = 2

// Crawler fetches the prospect's site for enrichment.
type Crawler interface {
	Crawl(ctx context.Context, url string, maxPages int) []string
}

// Renderer turns a proposal into a hosted deck.
type Renderer interface {
	Enabled() bool
	Generate(ctx context.Context, in presentation.Input) presentation.Artifacts
}

// Recorder persists generated proposals.
type Recorder interface {
	SaveProposal(ctx context.Context, p store.Proposal) (string, error)
}

// Config tunes a Service.
type Config struct {
	MaxTokens           int
	MaxPages            int
	PresentationEnabled bool
}

// Service runs proposal requests end to end.
type Service struct {
	llm      llm.Client
	crawler  Crawler
	renderer Renderer
	recorder Recorder
	cfg      Config
	log      *zap.Logger
}

// NewService wires a Service. crawler, renderer and recorder may be nil.
func NewService(client llm.Client, crawler Crawler, renderer Renderer, recorder Recorder, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = crawling.DefaultMaxPages
	}
	return &Service{
		llm:      client,
		crawler:  crawler,
		renderer: renderer,
		recorder: recorder,
		cfg:      cfg,
		log:      logger,
	}
}

// Validate rejects requests with missing fields, a non-web or internal prospect URL, or an
// unknown template. No network call is made.
func Validate(req Request) error {
	req = req.normalized()
	if err := validation.Struct(req); err != nil {
		return err
	}
	if err := validation.HTTPURL("prospect_url", req.ProspectURL); err != nil {
		return err
	}
	if err := safeurl.Check(req.ProspectURL); err != nil {
		return err
	}
	if req.Template != "" {
		if _, ok := LookupTemplate(req.Template); !ok {
			return apierr.Validation(apierr.CodeTemplateNotFound,
				"Invalid template. Available: "+strings.Join(TemplateKeys(), ", ")).WithDetail("field", "template")
		}
	}
	return nil
}

// Generate validates req, optionally enriches it from the prospect's website, asks the model
// for a proposal and optionally renders it. Only validation and generation failures are
// returned; enrichment, rendering and recording failures are logged and skipped.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx = logging.WithAgent(ctx, "proposal")
	log := logging.With(ctx, s.log)

	req = req.normalized()
	if err := Validate(req); err != nil {
		log.Info("proposal request rejected", zap.Error(err))
		return nil, err
	}

	templateKey := req.Template
	if templateKey == "" {
		templateKey = DefaultTemplate
	}
	modelID, known := llm.ResolveModel(req.Model)
	if !known {
		log.Warn("unknown model requested, passing through", zap.String("model", req.Model))
	}

	log.Info("generating proposal",
		zap.String("prospect", req.ProspectName),
		zap.String("model", modelID),
		zap.String("template", templateKey),
		zap.Bool("deep_scrape", req.DeepScrape))

	var bi *intel.BusinessIntelligence
	if req.DeepScrape {
		bi = s.enrich(ctx, req.ProspectURL)
	}

	system := SystemPrompt(req.ProspectName)
	prompt := BuildEnrichedPrompt(req, templateKey, bi)

	result, fallback, err := s.generate(ctx, modelID, system, prompt)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Success:           true,
		Data:              result,
		ModelUsed:         req.Model,
		TemplateUsed:      templateKey,
		DeepScrapeEnabled: req.DeepScrape,
	}
	if resp.ModelUsed == "" {
		resp.ModelUsed = llm.DefaultModel
	}
	if fallback != "" {
		resp.FallbackModelUsed = &fallback
	}

	if s.cfg.PresentationEnabled && s.renderer != nil && s.renderer.Enabled() {
		art := s.renderer.Generate(ctx, toPresentation(req, result))
		resp.PresentationURL, resp.PDFURL, resp.PPTXURL = art.ViewURL, art.PDFURL, art.PPTXURL
	}

	s.record(ctx, req, templateKey, modelID, fallback, resp)
	return resp, nil
}

// enrich crawls the prospect site and extracts intelligence. Any failure yields nil.
func (s *Service) enrich(ctx context.Context, url string) (bi *intel.BusinessIntelligence) {
	log := logging.With(ctx, s.log)
	if s.crawler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("website enrichment panicked", zap.Any("panic", r))
			telemetry.DegradedSteps.WithLabelValues("enrich").Inc()
			bi = nil
		}
	}()

	pages := s.crawler.Crawl(ctx, url, s.cfg.MaxPages)
	if len(pages) == 0 {
		log.Info("no pages crawled, continuing without website intelligence", zap.String("url", url))
		return nil
	}
	extracted := intel.Extract(intel.Combine(pages), url)
	log.Info("website intelligence extracted",
		zap.Int("pages", len(pages)),
		zap.String("company", extracted.CompanyName),
		zap.String("industry", extracted.Industry))
	return &extracted
}

// generate runs the model and applies the credit policy: a credit-exhausted call on a paid
// model is retried once on the free default. The second return value names the fallback model
// when it produced the result.
func (s *Service) generate(ctx context.Context, modelID, system, prompt string) (*Result, string, error) {
	log := logging.With(ctx, s.log)

	result, err := s.attempt(ctx, modelID, system, prompt)
	if err == nil {
		return result, "", nil
	}
	if e, ok := apierr.As(err); ok && e.Code == apierr.CodeAgentOutput {
		return nil, "", err
	}
	if !llm.IsCreditExhausted(err) {
		log.Error("proposal generation failed", zap.String("model", modelID), zap.Error(err))
		code := apierr.CodeAgentFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = apierr.CodeAgentTimeout
		}
		return nil, "", apierr.Agent(code, "Failed to generate proposal content: "+err.Error(), err)
	}

	if modelID == llm.DefaultModel {
		log.Error("credits exhausted on default model", zap.Error(err))
		return nil, "", apierr.CreditsExhausted(fmt.Sprintf(
			"Insufficient OpenRouter credits. Error: %v. Please upgrade your OpenRouter account at %s",
			err, upgradeURL), err)
	}

	log.Warn("credits exhausted, retrying with default model",
		zap.String("model", modelID),
		zap.String("fallback_model", llm.DefaultModel),
		zap.Error(err))
	telemetry.CreditFallbacks.Inc()

	result, ferr := s.attempt(ctx, llm.DefaultModel, system, prompt)
	if ferr != nil {
		log.Error("fallback model failed", zap.Error(ferr))
		return nil, "", apierr.CreditsExhausted(fmt.Sprintf(
			"Insufficient OpenRouter credits. Requested model requires more credits than available. "+
				"Error: %v. Please upgrade your OpenRouter account at %s or use the free 'grok' model.",
			err, upgradeURL), errors.Join(err, ferr))
	}
	return result, llm.DefaultModel, nil
}

// attempt asks model for a proposal. Output that fails the schema or does not carry exactly
// three tiers is requested again once before failing with an output error. Provider errors
// return immediately.
func (s *Service) attempt(ctx context.Context, model, system, prompt string) (*Result, error) {
	log := logging.With(ctx, s.log)

	var lastErr error
	for i := 1; i <= outputAttempts; i++ {
		raw, err := s.llm.Generate(ctx, llm.Request{
			Model:     model,
			System:    system,
			Prompt:    prompt,
			MaxTokens: s.cfg.MaxTokens,
			JSON:      true,
		})
		if err != nil {
			return nil, err
		}
		result, err := parseResult(raw)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Warn("proposal output rejected", zap.Int("attempt", i), zap.String("model", model), zap.Error(err))
	}
	return nil, apierr.Agent(apierr.CodeAgentOutput, "Generated proposal did not match the expected structure", lastErr)
}

func parseResult(raw string) (*Result, error) {
	if err := schemas.Validate(schemas.Proposal, raw); err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if len(result.Investment) != 3 {
		return nil, fmt.Errorf("expected 3 pricing tiers, got %d", len(result.Investment))
	}
	return &result, nil
}

func (s *Service) record(ctx context.Context, req Request, templateKey, modelID, fallback string, resp *Response) {
	if s.recorder == nil {
		return
	}
	log := logging.With(ctx, s.log)

	content, err := json.Marshal(resp.Data)
	if err != nil {
		log.Warn("failed to encode proposal for storage", zap.Error(err))
		return
	}
	rec := store.Proposal{
		ProspectName:  req.ProspectName,
		ProspectURL:   req.ProspectURL,
		Template:      templateKey,
		Model:         modelID,
		FallbackModel: fallback,
		DeepScrape:    req.DeepScrape,
		Content:       content,
	}
	if resp.PresentationURL != nil {
		rec.PresentationURL = *resp.PresentationURL
	}
	id, err := s.recorder.SaveProposal(ctx, rec)
	if err != nil {
		telemetry.DegradedSteps.WithLabelValues("record").Inc()
		log.Warn("failed to record proposal", zap.Error(err))
		return
	}
	log.Debug("proposal recorded", zap.String("id", id))
}

func toPresentation(req Request, r *Result) presentation.Input {
	tiers := make([]presentation.Tier, len(r.Investment))
	for i, t := range r.Investment {
		tiers[i] = presentation.Tier{Name: t.Name, Price: t.Price, Features: t.Features}
	}
	return presentation.Input{
		ProspectName:     req.ProspectName,
		ExecutiveSummary: r.ExecutiveSummary,
		CurrentSituation: r.CurrentSituation,
		ProposedStrategy: r.ProposedStrategy,
		WhyUs:            r.WhyUs,
		Investment:       tiers,
		NextSteps:        r.NextSteps,
		Format:           req.PresentationFormat,
		ThemeID:          req.ThemeID,
	}
}
