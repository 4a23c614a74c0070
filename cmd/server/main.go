package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MessaoudiOussama/market-analytics/internal/config"
	"github.com/MessaoudiOussama/market-analytics/internal/correlate"
	"github.com/MessaoudiOussama/market-analytics/internal/database"
	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/market"
	"github.com/MessaoudiOussama/market-analytics/internal/pipeline"
	"github.com/MessaoudiOussama/market-analytics/internal/redis"
	"github.com/MessaoudiOussama/market-analytics/internal/schedule"
	"github.com/MessaoudiOussama/market-analytics/internal/segment"
	"github.com/MessaoudiOussama/market-analytics/internal/sentiment"
	"github.com/MessaoudiOussama/market-analytics/internal/server"
)

// leaderTTL bounds how long a crashed leader blocks the scheduled refresh.
const leaderTTL = 30 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupService(cfg *config.Config, pool *pgxpool.Pool, redisClient *goredis.Client, clock clockwork.Clock) *pipeline.Service {
	horizons, err := cfg.ParseHorizons()
	if err != nil {
		slog.Error("Invalid horizon configuration", "error", err)
		os.Exit(1)
	}

	finbert := sentiment.NewFinBERTClient(cfg.ScorerURL)
	segmenter := segment.New(finbert, cfg.MaxTokens)
	engine := sentiment.NewEngine(segmenter, finbert, cfg.ScorerConcurrency)

	priceCache := redis.NewPriceCache(redisClient)
	provider := market.NewCoalescingProvider(
		market.NewHTTPProvider(cfg.MarketDataURL, cfg.MarketRateLimit),
		priceCache,
	)
	aligner := market.NewAligner(provider, cfg.ParseSymbols(), horizons, cfg.LookaheadDays)

	return pipeline.NewService(
		database.NewDocumentRepo(pool),
		database.NewSentimentRepo(pool),
		database.NewMarketRepo(pool),
		database.NewCorrelationRepo(pool),
		engine,
		aligner,
		cfg.MinSampleSize,
		correlate.Formula(cfg.CompoundFormula),
		cfg.ScorerConcurrency,
		clock,
	)
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	service := setupService(cfg, pool, redisClient, clock)

	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()
	if cfg.RefreshInterval > 0 {
		lock := schedule.NewLeaderLock(redisClient, uuid.NewString(), "leader:pipeline_refresh", leaderTTL)
		dims := []domain.GroupDimension{domain.GroupBySpeaker, domain.GroupBySymbol, domain.GroupByHorizon}
		refresher := schedule.NewRefresher(lock, service, dims, cfg.RefreshInterval, clock)
		go refresher.Run(refreshCtx)
	}

	srv := server.NewServer(cfg, service, pool, redisClient, clock)

	done := runGracefulShutdown(srv)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
