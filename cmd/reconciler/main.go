package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/cartmatch/reconciler/config"
	"github.com/cartmatch/reconciler/internal/domain"
	"github.com/cartmatch/reconciler/internal/extract"
	"github.com/cartmatch/reconciler/internal/infrastructure/cache"
	"github.com/cartmatch/reconciler/internal/infrastructure/llm"
	"github.com/cartmatch/reconciler/internal/infrastructure/store"
	"github.com/cartmatch/reconciler/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "match"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "match":
		err = runMatch(ctx, cfg, logger, args)
	case "extract-a":
		err = runExtractA(cfg, logger, args)
	case "extract-b":
		err = runExtractB(ctx, cfg, logger, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected extract-a, extract-b, or match)\n", command)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// A user interrupt is a clean termination; partial results were
			// already flushed to the recovery artifact.
			logger.Info("run interrupted by user")
			return
		}
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

// runMatch executes the full reconciliation over the two normalized catalogs.
func runMatch(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	storeAPath := fs.String("store-a", cfg.Paths.StoreA, "normalized store A catalog")
	storeBPath := fs.String("store-b", cfg.Paths.StoreB, "normalized store B catalog")
	output := fs.String("output", cfg.Paths.Output, "path for the ranked match list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	storeA, _, err := store.LoadCatalog(*storeAPath, logger)
	if err != nil {
		return err
	}
	storeB, _, err := store.LoadCatalog(*storeBPath, logger)
	if err != nil {
		return err
	}

	responseCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	client := llm.NewClient(llm.Config{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		Timeout:          cfg.LLM.Timeout,
		MatchRate:        perSecond(cfg.Matcher.RequestsPerWindow, cfg.Matcher.Window),
		MatchBurst:       cfg.Matcher.Burst,
		MatchAttempts:    cfg.Matcher.MaxAttempts,
		MatchBackoffBase: cfg.Matcher.BackoffBase,
		InferRate:        perSecond(cfg.Inference.RequestsPerWindow, cfg.Inference.Window),
		InferBurst:       cfg.Inference.Burst,
		InferAttempts:    cfg.Inference.MaxAttempts,
		InferBackoffBase: cfg.Inference.BackoffBase,
	}, logger)

	normalizer := usecase.NewBrandNormalizer(cfg.Brands.Aliases)
	pipeline := usecase.NewPipeline(
		usecase.NewPartitioner(normalizer, logger),
		client,
		usecase.NewAssembler(logger),
		usecase.NewValidator(logger),
		store.NewArtifactStore(*output, logger),
		responseCache,
		usecase.PipelineConfig{
			MaxConcurrent: cfg.Matcher.MaxConcurrent,
			CacheTTL:      cfg.Cache.TTL,
		},
		logger,
	)

	_, err = pipeline.Run(ctx, storeA, storeB)
	return err
}

// runExtractA normalizes store A's raw JSON dump.
func runExtractA(cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("extract-a", flag.ExitOnError)
	input := fs.String("input", cfg.Paths.StoreARaw, "raw store A dump")
	output := fs.String("output", cfg.Paths.StoreA, "path for the normalized catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *input, err)
	}

	products, _, err := extract.StoreACatalog(data, logger)
	if err != nil {
		return err
	}

	return store.WriteJSON(*output, products, logger)
}

// runExtractB normalizes store B's raw HTML dump and runs brand inference
// against store A's brand vocabulary.
func runExtractB(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("extract-b", flag.ExitOnError)
	input := fs.String("input", cfg.Paths.StoreBRaw, "raw store B dump")
	reference := fs.String("reference", cfg.Paths.StoreA, "normalized store A catalog (brand vocabulary)")
	output := fs.String("output", cfg.Paths.StoreB, "path for the normalized catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *input, err)
	}

	products, _, err := extract.StoreBCatalog(data, logger)
	if err != nil {
		return err
	}

	referenceCatalog, _, err := store.LoadCatalog(*reference, logger)
	if err != nil {
		return err
	}

	client := llm.NewClient(llm.Config{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		Timeout:          cfg.LLM.Timeout,
		InferRate:        perSecond(cfg.Inference.RequestsPerWindow, cfg.Inference.Window),
		InferBurst:       cfg.Inference.Burst,
		InferAttempts:    cfg.Inference.MaxAttempts,
		InferBackoffBase: cfg.Inference.BackoffBase,
	}, logger)

	enricher := usecase.NewBrandEnricher(client, cfg.Inference.ChunkSize, cfg.Inference.MaxConcurrent, logger)
	enriched := enricher.Enrich(ctx, products, uniqueBrands(referenceCatalog))

	if err := store.WriteJSON(*output, enriched.Products, logger); err != nil {
		return err
	}
	return ctx.Err()
}

// newCache builds the configured response cache backend. A nil repository
// disables caching.
func newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, func(), error) {
	switch cfg.Cache.Type {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	case "memory":
		c := cache.NewMemoryCache()
		return c, c.Close, nil
	default:
		return nil, func() {}, nil
	}
}

// uniqueBrands collects the distinct brand strings from a catalog, in first
// appearance order, skipping the unknown sentinel.
func uniqueBrands(products []domain.Product) []string {
	seen := make(map[string]bool)
	var brands []string
	for _, p := range products {
		if p.Brand == "" || p.Brand == domain.UnknownBrand || seen[p.Brand] {
			continue
		}
		seen[p.Brand] = true
		brands = append(brands, p.Brand)
	}
	return brands
}

// perSecond converts a requests-per-window quota to the limiter's unit.
func perSecond(requests int, window time.Duration) rate.Limit {
	return rate.Limit(float64(requests) / window.Seconds())
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(lvl)
	return logCfg.Build()
}
