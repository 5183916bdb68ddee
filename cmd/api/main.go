package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modeium/backend/internal/adapters"
	"modeium/backend/internal/config"
	"modeium/backend/internal/httpapi"
	"modeium/backend/internal/llm"
	"modeium/backend/internal/models"
	"modeium/backend/internal/scratch"
	"modeium/backend/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	registry, err := models.LoadFile(cfg.ModelsFile)
	if err != nil {
		log.Fatalf("load models: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newScratchStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open scratch store: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(promRegistry)

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	factory := adapters.Factory{
		Clients: map[string]llm.Completer{
			models.ProviderOpenAI:    llm.NewOpenAI("openai", cfg.OpenAIBaseURL, httpClient),
			models.ProviderGroq:      llm.NewOpenAI("groq", cfg.GroqBaseURL, httpClient),
			models.ProviderAnthropic: llm.NewAnthropic(cfg.AnthropicBaseURL, httpClient),
			models.ProviderGemini:    llm.NewGemini(cfg.GeminiBaseURL, httpClient),
		},
		Store:      scratch.WithRemoveHook(store, metrics.RecordScratchCleanup),
		ServerKeys: map[string]string{models.ProviderGroq: cfg.GroqAPIKey},
	}
	if cfg.GroqAPIKey == "" {
		log.Printf("GROQ_API_KEY is not set: free-tier models will fail")
	}

	handler := httpapi.NewRouter(cfg, httpapi.Dependencies{
		Registry: registry,
		Adapters: factory,
		Metrics:  metrics,
		Gatherer: promRegistry,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on %s: models=%d upload_backend=%s", cfg.ListenAddress(), len(registry.All()), store.Backend())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func newScratchStore(ctx context.Context, cfg config.Config) (scratch.Store, error) {
	if cfg.UsesGCSUploads() {
		store, err := scratch.NewGCSStore(ctx, cfg.GCSUploadBucket, cfg.GCSUploadPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := scratch.NewLocalStore(cfg.LocalUploadDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}
