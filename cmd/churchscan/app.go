package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dwyoon/churchscan/internal/config"
	"github.com/dwyoon/churchscan/internal/discovery"
	"github.com/dwyoon/churchscan/internal/embed"
	"github.com/dwyoon/churchscan/internal/metadata"
	"github.com/dwyoon/churchscan/internal/newsletter"
	"github.com/dwyoon/churchscan/internal/pipeline"
	"github.com/dwyoon/churchscan/internal/providers"
	"github.com/dwyoon/churchscan/internal/recognize"
	"github.com/dwyoon/churchscan/internal/store"
)

// app holds the wired components one command run needs.
type app struct {
	cfg      *config.Config
	store    *store.Store
	scanner  *discovery.Scanner
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// buildApp wires config into a runnable pipeline for one source.
func buildApp(cfg *config.Config, sourceName string, logger *slog.Logger) (*app, error) {
	srcCfg, ok := cfg.Sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceName)
	}
	if srcCfg.ListingURL == "" {
		return nil, fmt.Errorf("source %q has no listing_url configured", sourceName)
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	engineOpts := recognize.DefaultOptions()
	engine := recognize.NewEngine(registry, engineOpts, logger)

	// Metadata extraction reuses the first recognition provider.
	mdClient := registry.Ordered()[0]
	extractor := metadata.NewExtractor(mdClient, logger)

	embedder := embed.NewOpenAIEmbedder(embed.Config{
		APIKey:  config.ResolveEnvVars(cfg.Embedding.APIKey),
		BaseURL: cfg.Embedding.BaseURL,
		Timeout: time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
	})

	st, err := store.OpenPostgres(config.ResolveEnvVars(cfg.Database.DSN), logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	scanner := discovery.NewScanner(discovery.Config{
		ListingURL: srcCfg.ListingURL,
		SourceKind: newsletter.SourceKind(srcCfg.Kind),
		MaxPages:   srcCfg.MaxPages,
	}, logger)

	cacheTTL := time.Duration(cfg.Pipeline.CacheTTLMin) * time.Minute
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}
	p := pipeline.New(st, scanner, scanner, engine, extractor, embedder, cacheTTL, logger)

	return &app{
		cfg:      cfg,
		store:    st,
		scanner:  scanner,
		pipeline: p,
		logger:   logger,
	}, nil
}

// buildRegistry constructs the recognition clients named by the configured
// fallback order. Disabled providers drop out; an empty result is an error.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()
	registry.SetLogger(logger)

	names := cfg.EnabledProviders()
	for _, name := range names {
		pcfg := cfg.Providers[name]
		apiKey := config.ResolveEnvVars(pcfg.APIKey)
		if apiKey == "" {
			logger.Warn("provider has no API key, skipping", "provider", name)
			continue
		}

		var client providers.Client
		switch pcfg.Type {
		case "openrouter":
			client = providers.NewOpenRouterClient(providers.OpenRouterConfig{
				APIKey:       apiKey,
				DefaultModel: pcfg.Model,
				RateLimit:    pcfg.RateLimit,
			})
		case "upstage":
			client = providers.NewUpstageClient(providers.UpstageConfig{
				APIKey:       apiKey,
				DefaultModel: pcfg.Model,
				RateLimit:    pcfg.RateLimit,
			})
		case "gemini":
			client = providers.NewGeminiClient(providers.GeminiConfig{
				APIKey:       apiKey,
				DefaultModel: pcfg.Model,
				RateLimit:    pcfg.RateLimit,
			})
		default:
			return nil, fmt.Errorf("provider %q has unknown type %q", name, pcfg.Type)
		}
		registry.Register(name, client)
	}

	if registry.Len() == 0 {
		return nil, fmt.Errorf("no usable recognition providers configured")
	}
	registry.SetOrder(names)
	return registry, nil
}

// callTimeout returns the per-call timeout the config asks for.
func callTimeout(cfg *config.Config) time.Duration {
	if cfg.Pipeline.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second
}

// printSummary reports one batch run's outcome.
func printSummary(summary *pipeline.Summary) {
	fmt.Printf("processed: %d  skipped: %d  failed: %d\n",
		summary.Processed, summary.Skipped, summary.Failed)
	if summary.FirstFailure != "" {
		fmt.Printf("first failure: %s\n", summary.FirstFailure)
	}
	if summary.QuotaExhausted {
		fmt.Println("embedding quota exhausted; run stopped embedding early")
	}
	if summary.Stopped {
		fmt.Printf("stopped on request with %d issues remaining\n", summary.Remaining)
	}
}
