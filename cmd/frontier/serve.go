package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/frontieralpha/frontier/internal/belief"
	"github.com/frontieralpha/frontier/internal/config"
	"github.com/frontieralpha/frontier/internal/cvrf"
	"github.com/frontieralpha/frontier/internal/episode"
	"github.com/frontieralpha/frontier/internal/infrastructure/cache"
	"github.com/frontieralpha/frontier/internal/infrastructure/db"
	"github.com/frontieralpha/frontier/internal/insight"
	httpiface "github.com/frontieralpha/frontier/internal/interfaces/http"
	"github.com/frontieralpha/frontier/internal/metrics"
	"github.com/frontieralpha/frontier/internal/optimizer"
	"github.com/frontieralpha/frontier/internal/persistence"
)

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	addrOverride, _ := cmd.Flags().GetString("addr")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	reg := metrics.NewRegistry(registry)

	var store persistence.Store = persistence.NewMemoryStore()
	var pinger httpiface.Pinger
	dbManager, err := db.NewManager(cfg.Database)
	if err != nil {
		return err
	}
	defer dbManager.Close()
	if dbManager.IsEnabled() {
		store = dbManager.Store()
		pinger = dbManager
		log.Info().Msg("postgres persistence enabled")
	} else {
		log.Warn().Msg("postgres disabled, using in-memory store")
	}

	var snapshots cvrf.SnapshotCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.New(context.Background(), cfg.Cache)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		snapshots = redisCache
		log.Info().Str("addr", cfg.Cache.Addr).Msg("belief snapshot cache enabled")
	}

	var engine httpiface.Prober
	if cfg.Optimizer.Enabled {
		engine = optimizer.NewClient(cfg.Optimizer)
		log.Info().Str("base_url", cfg.Optimizer.BaseURL).Msg("optimizer client enabled")
	}

	cycleManager := cvrf.NewManager(
		store,
		insight.NewExtractor(cfg.Extractor),
		belief.NewUpdater(cfg.Updater),
		snapshots,
		reg,
	)
	episodeManager := episode.NewManager(store, cycleManager, reg)

	server := httpiface.NewServer(cfg.Server.Addr, episodeManager, cycleManager, registry, pinger, engine)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
