// Command loader runs the animals ETL job: wait for the API, list every
// animal, fetch details with bounded concurrency, normalize, and upload in
// batches. Exits 0 when every record was uploaded, 1 otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/animals-etl/pkg/cache"
	"github.com/Sternrassler/animals-etl/pkg/client"
	"github.com/Sternrassler/animals-etl/pkg/loader"
	"github.com/Sternrassler/animals-etl/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("loader", flag.ExitOnError)
	var (
		baseURL      = fs.String("base-url", getEnv("ANIMALS_BASE_URL", "http://localhost:3123"), "Base URL of the animals API")
		concurrency  = fs.Int("concurrency", getEnvInt("CONCURRENCY", loader.DefaultConcurrency), "Concurrent detail requests")
		batchSize    = fs.Int("batch-size", getEnvInt("BATCH_SIZE", loader.MaxBatchSize), "Upload batch size, max 100")
		perPage      = fs.Int("per-page", getEnvInt("PER_PAGE", loader.DefaultPerPage), "Listing page size")
		maxAttempts  = fs.Int("max-attempts", getEnvInt("MAX_ATTEMPTS", 6), "Attempts per request before giving up")
		timeout      = fs.Duration("timeout", 45*time.Second, "Per-attempt request timeout")
		waitTimeout  = fs.Duration("wait-timeout", 180*time.Second, "How long to wait for the API to come up")
		allowPartial = fs.Bool("allow-partial", false, "Upload successfully fetched records even when some ids failed terminally")
		redisURL     = fs.String("redis-url", getEnv("REDIS_URL", ""), "Redis address for the detail cache (empty disables caching)")
		metricsAddr  = fs.String("metrics-addr", getEnv("METRICS_ADDR", ""), "Listen address for Prometheus metrics (empty disables)")
		logLevel     = fs.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
		logPretty    = fs.Bool("log-pretty", false, "Human-readable log output instead of JSON")
	)
	fs.Parse(args)

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(*logLevel)
	logCfg.Pretty = *logPretty
	logger := logging.Setup(logCfg).With().Str("component", "loader").Logger()

	ctx := context.Background()

	cfg := client.DefaultConfig(*baseURL)
	cfg.RequestTimeout = *timeout
	cfg.Retry.MaxAttempts = *maxAttempts
	apiClient, err := client.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	pipelineCfg := loader.Config{
		PerPage:      *perPage,
		Concurrency:  *concurrency,
		BatchSize:    *batchSize,
		AllowPartial: *allowPartial,
	}

	if *redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: *redisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error().Err(err).Str("redis_url", *redisURL).Msg("Failed to connect to Redis")
			return 1
		}
		pipelineCfg.Cache = cache.New(redisClient, cache.DefaultTTL)
		logger.Info().Str("redis_url", *redisURL).Msg("Detail cache enabled")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info().Str("addr", *metricsAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	if err := loader.WaitUntilReady(ctx, *baseURL, *waitTimeout, time.Second); err != nil {
		logger.Error().Err(err).Msg("API not ready")
		return 1
	}

	report := loader.New(apiClient, pipelineCfg).Run(ctx)
	fmt.Println(report.Summary())

	if report.Failed() {
		return 1
	}
	return 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
