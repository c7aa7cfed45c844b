// Package presentation renders a finished proposal into a hosted slide deck with PDF and PPTX
// exports. Rendering is optional: every failure degrades to empty artifacts.
package presentation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/gamma"
	"github.com/jonathan/propoto-agents/internal/jobs"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"go.uber.org/zap"
)

// Defaults for Input.
const (
	DefaultFormat   = "presentation"
	DefaultNumCards = 7
)

// Tier is one pricing option shown on the investment slide.
type Tier struct {
	Name     string
	Price    string
	Features []string
}

// Input is the proposal content to render.
type Input struct {
	ProspectName     string
	ExecutiveSummary string
	CurrentSituation string
	ProposedStrategy string
	WhyUs            string
	Investment       []Tier
	NextSteps        string

	Format   string // presentation, document, webpage or social
	NumCards int
	ThemeID  string
}

// Artifacts are the rendered deck URLs. A nil field means the artifact is unavailable.
type Artifacts struct {
	ViewURL *string `json:"presentation_url"`
	PDFURL  *string `json:"pdf_url"`
	PPTXURL *string `json:"pptx_url"`
}

// Provider is the generation backend.
type Provider interface {
	Configured() bool
	CreateGeneration(ctx context.Context, req gamma.GenerationRequest) (string, error)
	Generation(ctx context.Context, id string) (jobs.Status[gamma.Artifacts], error)
	ListThemes(ctx context.Context) ([]gamma.Theme, error)
	ListFolders(ctx context.Context) ([]gamma.Folder, error)
}

// Coordinator submits render jobs and waits for them.
type Coordinator struct {
	provider Provider
	log      *zap.Logger
	poll     jobs.Options
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithPollOptions overrides the polling schedule.
func WithPollOptions(opts jobs.Options) Option {
	return func(c *Coordinator) {
		c.poll = opts
	}
}

// NewCoordinator returns a coordinator over provider.
func NewCoordinator(provider Provider, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		provider: provider,
		log:      logger,
		poll:     jobs.PresentationOptions(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poll.Logger == nil {
		c.poll.Logger = logger
	}
	return c
}

// Enabled reports whether a provider with credentials is available.
func (c *Coordinator) Enabled() bool {
	return c != nil && c.provider != nil && c.provider.Configured()
}

// Generate renders in and returns the artifact URLs, or all-nil artifacts when the provider
// is not configured, rejects the request, fails the job, or does not finish in time.
func (c *Coordinator) Generate(ctx context.Context, in Input) (out Artifacts) {
	log := logging.With(ctx, c.log)
	if !c.Enabled() {
		log.Info("presentation provider not configured, skipping deck generation")
		return Artifacts{}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("presentation generation panicked", zap.Any("panic", r))
			out = Artifacts{}
		}
	}()

	format := in.Format
	if format == "" {
		format = DefaultFormat
	}
	numCards := in.NumCards
	if numCards <= 0 {
		numCards = DefaultNumCards
	}

	req := gamma.NewGenerationRequest(BuildPrompt(in), format, numCards, in.ThemeID)
	log.Info("starting presentation generation", zap.String("format", format), zap.Int("num_cards", numCards))

	id, err := c.provider.CreateGeneration(ctx, req)
	if err != nil {
		c.logProviderError(log, err)
		return Artifacts{}
	}
	if id == "" {
		log.Error("provider returned no generation id")
		return Artifacts{}
	}

	result, err := jobs.Poll(ctx, id, c.provider.Generation, c.poll)
	if err != nil {
		var failed *jobs.FailedError
		var timeout *jobs.TimeoutError
		switch {
		case errors.As(err, &failed):
			log.Error("presentation generation failed", zap.String("generation_id", id), zap.String("provider_error", failed.Message))
		case errors.As(err, &timeout):
			log.Error("presentation generation timed out", zap.String("generation_id", id), zap.Duration("waited", time.Duration(timeout.Attempts)*timeout.Interval))
		default:
			log.Warn("presentation polling stopped", zap.String("generation_id", id), zap.Error(err))
		}
		return Artifacts{}
	}

	log.Info("presentation generated", zap.String("generation_id", id), zap.String("url", result.GammaURL))
	return Artifacts{
		ViewURL: optional(result.GammaURL),
		PDFURL:  optional(result.PDFURL),
		PPTXURL: optional(result.PPTXURL),
	}
}

// ListThemes returns available deck themes, or an empty list on any failure.
func (c *Coordinator) ListThemes(ctx context.Context) []gamma.Theme {
	if !c.Enabled() {
		return []gamma.Theme{}
	}
	themes, err := c.provider.ListThemes(ctx)
	if err != nil {
		logging.With(ctx, c.log).Error("failed to list themes", zap.Error(err))
		return []gamma.Theme{}
	}
	if themes == nil {
		themes = []gamma.Theme{}
	}
	return themes
}

// ListFolders returns workspace folders, or an empty list on any failure.
func (c *Coordinator) ListFolders(ctx context.Context) []gamma.Folder {
	if !c.Enabled() {
		return []gamma.Folder{}
	}
	folders, err := c.provider.ListFolders(ctx)
	if err != nil {
		logging.With(ctx, c.log).Error("failed to list folders", zap.Error(err))
		return []gamma.Folder{}
	}
	if folders == nil {
		folders = []gamma.Folder{}
	}
	return folders
}

func (c *Coordinator) logProviderError(log *zap.Logger, err error) {
	e, ok := apierr.As(err)
	if !ok {
		log.Error("presentation request failed", zap.Error(err))
		return
	}
	telemetry.ProviderErrors.WithLabelValues("gamma", string(e.Code)).Inc()

	fields := []zap.Field{zap.String("error_code", string(e.Code)), zap.Bool("retryable", e.Retryable), zap.Error(err)}
	switch {
	case e.Code == apierr.CodeAuthInvalidKey:
		log.Error("presentation provider rejected API key", fields...)
	case e.Code == apierr.CodeGammaCredits:
		log.Error("presentation provider credits exhausted", fields...)
	case e.Code == apierr.CodeGammaRate:
		log.Error("presentation provider rate limit exceeded", fields...)
	case e.Status == http.StatusBadGateway && !e.Retryable:
		log.Error("presentation request rejected", fields...)
	default:
		log.Error("presentation request failed", fields...)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
