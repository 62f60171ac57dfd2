package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"ledger/internal/backend"
	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	apphttp "ledger/internal/http"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/session"
	"ledger/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Ledger server failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	kv, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldBackend, cfg.DataBackend, log.FieldError, err)
		}
	}()

	summaries := cache.NewLRUCache[core.Month, core.MonthlySummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register("summaries", summaries)
	caches.Start(ctx, cfg.CacheCleanupInterval)
	defer caches.Stop()

	persister := storage.NewPersister(kv.KV, logger,
		storage.WithSeedAdmin(cfg.SeedAdminUsername, cfg.SeedAdminPassword))
	store := ledger.New(persister,
		ledger.WithLogger(logger),
		ledger.WithSummaryCache(summaries))
	if err := store.Init(ctx); err != nil {
		return err
	}

	sessions := session.NewManager(store, logger)
	srv := apphttp.NewServer(cfg.Addr(), store, sessions, logger, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMin,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server",
			"addr", cfg.Addr(),
			log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// In-flight requests finish before the final save.
		serr := srv.Shutdown(shutdownCtx)
		terr := store.Teardown(shutdownCtx)
		return errors.Join(serr, terr)
	})
	return g.Wait()
}
