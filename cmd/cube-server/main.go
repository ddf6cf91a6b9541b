// cube-server exposes datacube assembly over HTTP: POST /v1/load
// resolves a STAC collection, loads every modality onto a shared grid
// and returns the merged cube as JSON.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/geoscape-io/stacube/internal/assetcache"
	"github.com/geoscape-io/stacube/internal/config"
	"github.com/geoscape-io/stacube/internal/httpclient"
	"github.com/geoscape-io/stacube/internal/invalidation/kafkaconsumer"
	"github.com/geoscape-io/stacube/internal/logger"
	"github.com/geoscape-io/stacube/internal/metrics"
	"github.com/geoscape-io/stacube/internal/observability"
	"github.com/geoscape-io/stacube/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.FromEnv()

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "cube-server",
	}, os.Stdout)

	observability.ExposeBuildInfo(Version)
	log.Info().Str("addr", cfg.Addr).Str("version", Version).
		Str("endpoint", cfg.Endpoint).Msg("starting cube-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache *assetcache.Cache
	if cfg.Cache.Enabled {
		var err error
		cache, err = assetcache.New(ctx, assetcache.Options{
			RedisAddr: cfg.Cache.RedisAddr,
			LRUSize:   cfg.Cache.LRUSize,
			TTL:       cfg.Cache.TTL,
			OpTimeout: cfg.Cache.OpTimeout,
		})
		if err != nil {
			log.Error().Err(err).Msg("asset cache init failed")
			return 1
		}
		defer func() { _ = cache.Close() }()
	}

	if cfg.Invalidation.Enabled {
		if cache == nil {
			log.Warn().Msg("invalidation enabled without asset cache; consumer not started")
		} else {
			consumer := kafkaconsumer.New(
				kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
				log.With().Str("component", "invalidator").Logger(),
				cache,
			)
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Error().Err(err).Msg("invalidation consumer exited")
				}
			}()
		}
	}

	var metricsHandler = metrics.Init(metrics.Config{Version: Version}).Handler()
	if !cfg.MetricsEnabled {
		metricsHandler = nil
	}

	factory := server.NewSessionFactory(httpclient.NewOutbound(), cache)
	if err := server.Run(ctx, cfg, log, metricsHandler, factory); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		return 1
	}
	log.Info().Msg("server stopped")
	return 0
}
