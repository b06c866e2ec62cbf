package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrmushfiq/maas-platform/internal/gateway/handlers"
	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
	"github.com/mrmushfiq/maas-platform/internal/shared/config"
	"github.com/mrmushfiq/maas-platform/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting MaaS API on port %s (env: %s)", cfg.Port, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	deps := handlers.Dependencies{
		LiteLLM: upstream.NewLiteLLM(cfg.LiteLLMAPIBase, cfg.LiteLLMMasterKey, httpClient),
	}
	log.Printf("✓ LiteLLM at %s", cfg.LiteLLMAPIBase)
	if cfg.LiteLLMMasterKey == "" {
		log.Println("  LITELLM_MASTER_KEY is not set; admin calls will be rejected upstream")
	}

	if cfg.JupyterHubConfigured() {
		deps.JupyterHub = upstream.NewJupyterHub(cfg.JupyterHubAPIURL, cfg.JupyterHubAPIToken, httpClient)
		log.Printf("✓ JupyterHub at %s", cfg.JupyterHubAPIURL)
	} else {
		log.Println("  JupyterHub not configured; notebook endpoints degrade")
	}

	if cfg.RateLimitEnabled() {
		redisClient, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		deps.Redis = redisClient
		log.Printf("✓ Rate limiting at %d requests/minute", cfg.RateLimitPerMinute)
	}

	if cfg.StaticDir != "" {
		log.Printf("✓ Serving dashboard from %s", cfg.StaticDir)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(cfg, deps),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
