package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jonathan/propoto-agents/internal/agents"
	"github.com/jonathan/propoto-agents/internal/config"
	"github.com/jonathan/propoto-agents/internal/crawling"
	"github.com/jonathan/propoto-agents/internal/db"
	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/firecrawl"
	"github.com/jonathan/propoto-agents/internal/gamma"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/presentation"
	"github.com/jonathan/propoto-agents/internal/proposal"
	"github.com/jonathan/propoto-agents/internal/search"
	"github.com/jonathan/propoto-agents/internal/store"
	"go.uber.org/zap"
)

// components holds the collaborators built from configuration. Fields are nil when the
// corresponding integration is not configured.
type components struct {
	httpClient *http.Client
	model      llm.Client
	crawler    *crawling.Coordinator
	presenter  *presentation.Coordinator
	searcher   search.Searcher
	store      store.Store
	database   *db.DB
}

func (c *components) Close() {
	if c.model != nil {
		_ = c.model.Close()
	}
	if c.database != nil {
		c.database.Close()
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{}
}

func newModel(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	client, err := llm.NewClient(ctx, llm.Config{
		Provider: llm.Provider(cfg.LLMProvider),
		APIKey:   cfg.LLMAPIKey(),
		BaseURL:  cfg.OpenRouterBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return client, nil
}

// newCrawler builds the crawl coordinator over Firecrawl, with the direct HTTP tier (and
// optional browser rendering) when enabled.
func newCrawler(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) *crawling.Coordinator {
	var opts []crawling.Option
	if cfg.ScrapeDirectFallback {
		fetchOpts := fetch.DefaultOptions()
		fetchOpts.UseBrowser = cfg.ScrapeUseBrowser
		fetchOpts.Logger = logger
		opts = append(opts, crawling.WithPageFetcher(crawling.DirectFetcher(fetchOpts)))
	}
	provider := firecrawl.New(cfg.FirecrawlURL, cfg.FirecrawlAPIKey, httpClient)
	return crawling.NewCoordinator(provider, logger, opts...)
}

func newPresenter(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) *presentation.Coordinator {
	return presentation.NewCoordinator(gamma.New(cfg.GammaAPIURL, cfg.GammaAPIKey, httpClient), logger)
}

// newSearcher returns nil when the selected provider has no credentials.
func newSearcher(ctx context.Context, cfg *config.Config, httpClient *http.Client) (search.Searcher, error) {
	switch cfg.SearchProvider {
	case search.ProviderGoogle:
		if cfg.GoogleSearchAPIKey == "" || cfg.GoogleSearchCX == "" {
			return nil, nil
		}
		google, err := search.NewGoogle(ctx, cfg.GoogleSearchAPIKey, cfg.GoogleSearchCX)
		if err != nil {
			return nil, err
		}
		return google, nil
	default:
		if cfg.ExaAPIKey == "" {
			return nil, nil
		}
		return search.NewExa("", cfg.ExaAPIKey, httpClient), nil
	}
}

// newStore combines Convex and Postgres, whichever are configured. With migrate set the
// Postgres schema is applied first.
func newStore(ctx context.Context, cfg *config.Config, httpClient *http.Client, migrate bool) (store.Store, *db.DB, error) {
	var stores store.Multi

	if convex := store.NewConvex(cfg.ConvexURL, cfg.ConvexToken, httpClient); convex.Configured() {
		stores = append(stores, convex)
	}

	var database *db.DB
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := database.Migrate(ctx); err != nil {
				database.Close()
				return nil, nil, err
			}
		}
		stores = append(stores, database)
	}

	switch len(stores) {
	case 0:
		return nil, nil, nil
	case 1:
		return stores[0], database, nil
	default:
		return stores, database, nil
	}
}

// buildComponents wires everything the agents need.
func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (*components, error) {
	c := &components{httpClient: newHTTPClient()}

	model, err := newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.model = model

	c.crawler = newCrawler(cfg, c.httpClient, logger)
	c.presenter = newPresenter(cfg, c.httpClient, logger)

	c.searcher, err = newSearcher(ctx, cfg, c.httpClient)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.store, c.database, err = newStore(ctx, cfg, c.httpClient, migrate)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) proposalService(cfg *config.Config, logger *zap.Logger) *proposal.Service {
	var recorder proposal.Recorder
	if c.store != nil {
		recorder = c.store
	}
	return proposal.NewService(c.model, c.crawler, c.presenter, recorder, proposal.Config{
		MaxTokens:           cfg.MaxTokens,
		PresentationEnabled: cfg.PresentationEnabled,
	}, logger)
}

func agentOptions(cfg *config.Config, logger *zap.Logger) agents.Options {
	return agents.Options{MaxTokens: cfg.MaxTokens, Logger: logger}
}

func (c *components) knowledgeAgent(cfg *config.Config, logger *zap.Logger) *agents.KnowledgeAgent {
	return agents.NewKnowledgeAgent(c.model, c.crawler, c.store, agentOptions(cfg, logger))
}

func (c *components) salesAgent(cfg *config.Config, logger *zap.Logger) *agents.SalesAgent {
	return agents.NewSalesAgent(c.model, c.searcher, c.store, agentOptions(cfg, logger))
}

// providerStatus reports which integrations have credentials.
func providerStatus(cfg *config.Config) map[string]bool {
	return map[string]bool{
		"openrouter": cfg.OpenRouterAPIKey != "",
		"gemini":     cfg.GeminiAPIKey != "",
		"exa":        cfg.ExaAPIKey != "",
		"google":     cfg.GoogleSearchAPIKey != "" && cfg.GoogleSearchCX != "",
		"firecrawl":  cfg.FirecrawlURL != "",
		"gamma":      cfg.GammaAPIKey != "",
		"convex":     cfg.ConvexURL != "",
		"postgres":   cfg.DatabaseURL != "",
		"redis":      cfg.RedisURL != "",
	}
}

// writeJSON writes v as indented JSON to path, or to stdout when path is empty.
func writeJSON(stdout io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}
