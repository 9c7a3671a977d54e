package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brandforge/guidegen/internal/api"
	"github.com/brandforge/guidegen/internal/catalog"
	"github.com/brandforge/guidegen/internal/config"
	"github.com/brandforge/guidegen/internal/importer"
	"github.com/brandforge/guidegen/internal/rewrite"
	"github.com/brandforge/guidegen/internal/section"
	"github.com/brandforge/guidegen/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			log.Error("failed to load section catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
		log.Info("loaded section catalog", "path", cfg.CatalogPath, "entries", cat.Len())
	}
	engine := section.NewEngine(cat, cfg.CustomSectionLimit)

	client := rewrite.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	resolver := rewrite.NewResolver(engine, client, rewrite.NewStats(time.Hour), log)

	imports := importer.NewPipeline(st, log, cfg.ImportWorkers, cfg.ImportQueueSize, cfg.JobTTL, cfg.PDFFallbackPdftotext)
	imports.Start(ctx)

	srv := api.NewServer(st, engine, resolver, imports, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		imports.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting guidegen", "port", cfg.Port, "model", cfg.AnthropicModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
