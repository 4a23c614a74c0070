// Command backfill drives the pipeline worklist from the command line: it
// scores every ingested document, aligns every scored one, and optionally
// recomputes correlations afterwards. Safe to run repeatedly; processing
// is idempotent and resumes from wherever the last run stopped.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MessaoudiOussama/market-analytics/internal/config"
	"github.com/MessaoudiOussama/market-analytics/internal/correlate"
	"github.com/MessaoudiOussama/market-analytics/internal/database"
	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/market"
	"github.com/MessaoudiOussama/market-analytics/internal/pipeline"
	"github.com/MessaoudiOussama/market-analytics/internal/redis"
	"github.com/MessaoudiOussama/market-analytics/internal/segment"
	"github.com/MessaoudiOussama/market-analytics/internal/sentiment"
)

func main() {
	var (
		correlateAfter = flag.Bool("correlate", false, "Recompute correlations after processing the worklist")
		groupBy        = flag.String("group-by", "speaker,symbol,horizon", "Comma-separated grouping dimensions for correlation")
		timeout        = flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = redisClient.Close() }()

	horizons, err := cfg.ParseHorizons()
	if err != nil {
		log.Fatalf("Invalid horizon configuration: %v", err)
	}

	finbert := sentiment.NewFinBERTClient(cfg.ScorerURL)
	segmenter := segment.New(finbert, cfg.MaxTokens)
	engine := sentiment.NewEngine(segmenter, finbert, cfg.ScorerConcurrency)

	provider := market.NewCoalescingProvider(
		market.NewHTTPProvider(cfg.MarketDataURL, cfg.MarketRateLimit),
		redis.NewPriceCache(redisClient),
	)
	aligner := market.NewAligner(provider, cfg.ParseSymbols(), horizons, cfg.LookaheadDays)

	service := pipeline.NewService(
		database.NewDocumentRepo(pool),
		database.NewSentimentRepo(pool),
		database.NewMarketRepo(pool),
		database.NewCorrelationRepo(pool),
		engine,
		aligner,
		cfg.MinSampleSize,
		correlate.Formula(cfg.CompoundFormula),
		cfg.ScorerConcurrency,
		clockwork.NewRealClock(),
	)

	summary, err := service.ProcessPending(ctx)
	if err != nil {
		slog.Error("Backfill run failed", "error", err)
		os.Exit(1)
	}

	if summary.PermanentFailures > 0 {
		slog.Warn("Some documents failed permanently", "count", summary.PermanentFailures)
	}

	if *correlateAfter {
		dims, err := parseDimensions(*groupBy)
		if err != nil {
			log.Fatalf("Invalid group-by: %v", err)
		}
		results, err := service.Correlate(ctx, dims)
		if err != nil {
			slog.Error("Correlation recompute failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Correlations recomputed", "groups", len(results))
	}
}

func parseDimensions(raw string) ([]domain.GroupDimension, error) {
	var dims []domain.GroupDimension
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := domain.ParseGroupDimension(part)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, nil
}
