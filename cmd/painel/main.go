// Command painel serves the dashboard backend: workflow CRUD, spreadsheet
// ingestion, dataset reads, chart definitions, and theme preferences over
// HTTP/JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"painel/internal/config"
	"painel/internal/httpapi"
	"painel/internal/ingest"
	"painel/internal/metrics"
	"painel/internal/metrics/datadog"
	"painel/internal/storage"

	// register both backends with the storage factory; config selects one.
	_ "painel/internal/storage/postgres"
	_ "painel/internal/storage/sqlite"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "painel.toml", "configuration file path (created with defaults when missing)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		log.Fatalf("painel: %v", err)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("carregar config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.Open(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		return fmt.Errorf("abrir storage %s: %w", cfg.Storage.Kind, err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("criar schema: %w", err)
	}

	if cfg.Metrics.Enabled {
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.JobName,
			Tags:       datadog.ParseTagsCSV(cfg.Metrics.Tags),
			FlushEvery: cfg.Metrics.FlushInterval(),
		})
		if err != nil {
			log.Printf("metrics: init datadog: %v; seguindo sem metricas", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: flush final: %v", err)
				}
			}()
		}
	}

	manager := ingest.NewManager(repo, cfg.Uploads.Root)
	api := httpapi.New(repo, manager)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("painel: ouvindo em %s (storage=%s uploads=%s)", srv.Addr, cfg.Storage.Kind, cfg.Uploads.Root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("painel: encerrando")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
