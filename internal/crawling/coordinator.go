package crawling

import (
	"context"
	"errors"

	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/firecrawl"
	"github.com/jonathan/propoto-agents/internal/jobs"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxPages bounds a crawl when the caller does not.
const DefaultMaxPages = 5

// Provider is the crawl backend.
type Provider interface {
	Configured() bool
	StartCrawl(ctx context.Context, url string, limit int) (*firecrawl.CrawlJob, error)
	CrawlStatus(ctx context.Context, id string) (jobs.Status[[]string], error)
	Scrape(ctx context.Context, url string) (string, error)
}

// PageFetcher retrieves one page's readable text without the provider.
type PageFetcher func(ctx context.Context, url string) (string, error)

// Coordinator turns a URL into zero or more markdown pages.
type Coordinator struct {
	provider Provider
	direct   PageFetcher
	log      *zap.Logger
	poll     jobs.Options
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithPollOptions overrides the crawl polling schedule.
func WithPollOptions(opts jobs.Options) Option {
	return func(c *Coordinator) {
		c.poll = opts
	}
}

// WithPageFetcher adds a last-resort fetcher used when the provider cannot scrape a page.
func WithPageFetcher(f PageFetcher) Option {
	return func(c *Coordinator) {
		c.direct = f
	}
}

// DirectFetcher fetches pages over plain HTTP, rendering thin pages in a headless browser
// when opts.UseBrowser is set.
func DirectFetcher(opts *fetch.Options) PageFetcher {
	return func(ctx context.Context, url string) (string, error) {
		result, err := fetch.MainText(ctx, url, opts)
		if err != nil {
			return "", err
		}
		return result.Text, nil
	}
}

// NewCoordinator returns a coordinator over provider, which may be nil.
func NewCoordinator(provider Provider, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		provider: provider,
		log:      logger,
		poll:     jobs.CrawlOptions(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poll.Logger == nil {
		c.poll.Logger = logger
	}
	return c
}

// Crawl returns the non-empty markdown pages found by crawling url, at most maxPages of them.
// If the crawl cannot be started the single page at url is scraped instead, yielding at most
// one entry. A crawl that fails or times out after starting yields an empty slice. Crawl never
// returns an error; an empty result means no content is available.
func (c *Coordinator) Crawl(ctx context.Context, url string, maxPages int) []string {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	log := logging.With(ctx, c.log).With(zap.String("url", url))

	if !c.providerReady() {
		log.Info("crawl provider not configured, scraping single page")
		return c.scrapeFallback(ctx, url)
	}

	job, err := c.provider.StartCrawl(ctx, url, maxPages)
	if err != nil {
		log.Warn("crawl submission failed, scraping single page", zap.Error(err))
		return c.scrapeFallback(ctx, url)
	}

	if !job.Async() {
		log.Info("crawl returned inline results", zap.Int("pages", len(job.Pages)))
		return nonEmpty(job.Pages)
	}

	log.Info("crawl job started", zap.String("job_id", job.ID))
	pages, err := jobs.Poll(ctx, job.ID, c.provider.CrawlStatus, c.poll)
	if err != nil {
		var failed *jobs.FailedError
		var timeout *jobs.TimeoutError
		switch {
		case errors.As(err, &failed):
			log.Error("crawl job failed", zap.String("job_id", job.ID), zap.String("provider_error", failed.Message))
		case errors.As(err, &timeout):
			log.Error("crawl job timed out", zap.String("job_id", job.ID), zap.Int("attempts", timeout.Attempts))
		default:
			log.Warn("crawl polling stopped", zap.String("job_id", job.ID), zap.Error(err))
		}
		telemetry.DegradedSteps.WithLabelValues("crawl").Inc()
		return []string{}
	}

	pages = nonEmpty(pages)
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	log.Info("crawl completed", zap.Int("pages", len(pages)))
	return pages
}

// Scrape returns the content of the single page at url, trying the provider first and then
// the direct fetcher if one is configured.
func (c *Coordinator) Scrape(ctx context.Context, url string) (string, error) {
	log := logging.With(ctx, c.log).With(zap.String("url", url))
	var lastErr error

	if c.providerReady() {
		page, err := c.provider.Scrape(ctx, url)
		switch {
		case err != nil:
			log.Warn("provider scrape failed", zap.Error(err))
			lastErr = err
		case page != "":
			return page, nil
		default:
			log.Warn("provider scrape returned no content")
		}
	}

	if c.direct != nil {
		text, err := c.direct(ctx, url)
		switch {
		case err != nil:
			log.Warn("direct fetch failed", zap.Error(err))
			lastErr = err
		case text != "":
			return text, nil
		}
	}

	return "", &CrawlError{URL: url, Message: "no content retrieved", Cause: lastErr}
}

func (c *Coordinator) scrapeFallback(ctx context.Context, url string) []string {
	page, err := c.Scrape(ctx, url)
	if err != nil {
		telemetry.DegradedSteps.WithLabelValues("scrape").Inc()
		return []string{}
	}
	return []string{page}
}

func (c *Coordinator) providerReady() bool {
	return c.provider != nil && c.provider.Configured()
}

func nonEmpty(pages []string) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
