package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/propoto-agents/internal/config"
	"github.com/jonathan/propoto-agents/internal/server"
	"github.com/jonathan/propoto-agents/internal/server/middleware"
	"github.com/jonathan/propoto-agents/internal/server/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent HTTP API server",
	Long:  `Start an HTTP server exposing the proposal, knowledge and sales agents.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT, default 8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort != 0 {
		cfg.Port = servePort
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	if cfg.ServiceKey == "" && cfg.JWTSecret == "" {
		logger.Warn("AGENT_SERVICE_KEY is not set, protected routes will answer 500")
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		logger.Warn("optional integrations not configured", zap.Strings("missing", missing))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer comps.Close()

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	tokens, err := newTokenValidator(cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:                cfg.Port,
		ServiceKey:          cfg.ServiceKey,
		CORSOrigins:         cfg.CORSOrigins,
		PresentationEnabled: cfg.PresentationEnabled,
		Providers:           providerStatus(cfg),
	}, server.Deps{
		Proposals: comps.proposalService(cfg, logger),
		Knowledge: comps.knowledgeAgent(cfg, logger),
		Sales:     comps.salesAgent(cfg, logger),
		Themes:    comps.presenter,
		Limiter:   limiter,
		Tokens:    tokens,
		Logger:    logger,
	})
	return srv.Run(ctx)
}

// newLimiter uses Redis counters when REDIS_URL is set so replicas share limits, and
// in-process token buckets otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ratelimit.Backend, func(), error) {
	limits := ratelimit.LoadConfig()
	if cfg.RedisURL == "" {
		limiter := ratelimit.NewLimiter(limits)
		return limiter, limiter.Stop, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using redis rate limiter", zap.String("addr", opts.Addr))
	return ratelimit.NewRedis(client, limits, logger), func() { _ = client.Close() }, nil
}

// newTokenValidator returns nil when bearer tokens are not enabled.
func newTokenValidator(cfg *config.Config) (middleware.TokenValidator, error) {
	jwtCfg, err := cfg.JWT()
	if err != nil || jwtCfg == nil {
		return nil, err
	}
	return server.NewJWTService(jwtCfg), nil
}
