package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/letinc/beacon/internal/api"
	"github.com/letinc/beacon/internal/config"
	"github.com/letinc/beacon/internal/dispatcher"
	"github.com/letinc/beacon/internal/ingest"
	"github.com/letinc/beacon/internal/pkg/logger"
	"github.com/letinc/beacon/internal/queue"
	"github.com/letinc/beacon/internal/registry"
	"github.com/letinc/beacon/internal/sink"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildRegistryStore(ctx, cfg.Registry)
	if err != nil {
		log.Fatalf("registry store: %v", err)
	}
	reg := registry.New(store)

	q := queue.New()
	svc := ingest.New(q, reg, cfg.Tracking.FallbackURL())

	sinkClient, notifier, err := buildSink(ctx, cfg.Sink)
	if err != nil {
		log.Fatalf("sink: %v", err)
	}

	d := dispatcher.New(q, sinkClient, dispatcher.Config{
		Interval:    cfg.Dispatch.Interval(),
		MaxDrain:    cfg.Dispatch.MaxDrainCount,
		SinkTimeout: cfg.Dispatch.SinkTimeout(),
	})
	d.Start(ctx)

	handler, err := api.NewHandler(svc, notifier, cfg.Tracking.LogoPath)
	if err != nil {
		log.Fatalf("handler: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("engagement tracker listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	// Stops the loop after a best-effort flush of anything still queued.
	d.Stop()

	if err := reg.Close(); err != nil {
		log.Printf("closing registry: %v", err)
	}
}

func buildRegistryStore(ctx context.Context, cfg config.RegistryConfig) (registry.Store, error) {
	if cfg.RedisURL != "" {
		log.Printf("registry: redis store (ttl=%s)", cfg.TTL())
		return registry.NewRedisStore(ctx, cfg.RedisURL, cfg.TTL())
	}
	log.Printf("registry: in-memory store (ttl=%s)", cfg.TTL())
	return registry.NewMemoryStore(cfg.TTL()), nil
}

// buildSink picks the batch sink and the audit notifier. Sheets wins as
// the batch sink when both are configured; the webhook still carries
// unsubscribe audit records in that case.
func buildSink(ctx context.Context, cfg config.SinkConfig) (sink.Client, sink.Notifier, error) {
	var webhook *sink.WebhookSink
	if cfg.WebhookURL != "" {
		webhook = sink.NewWebhookSink(cfg.WebhookURL, nil)
	}

	if cfg.SheetID != "" {
		sheets, err := sink.NewSheetsSink(ctx, cfg.SheetID, cfg.ServiceAccountFile)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("sink: google sheets (spreadsheet=%s)", cfg.SheetID)
		if webhook == nil {
			return sheets, nil, nil
		}
		return sheets, webhook, nil
	}

	if webhook != nil {
		log.Printf("sink: webhook (%s)", cfg.WebhookURL)
		return webhook, webhook, nil
	}

	return nil, nil, errors.New("no sink configured: set SHEET_ID or WEBHOOK_URL")
}
