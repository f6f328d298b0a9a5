package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	httpapi "github.com/i474232898/weather-lookup/internal/api/http"
	"github.com/i474232898/weather-lookup/internal/board"
	"github.com/i474232898/weather-lookup/internal/cache"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/scheduler"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog := logger.New(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		appLog.Fatalf("failed to open %q store: %v", cfg.Store.Backend, err)
	}
	defer kv.Close()

	// The board plays the page: it owns affordances and cards.
	b := board.New()
	manager := cache.NewManager(kv, cache.NewPolicy(clock.New(), cfg.CacheWindowHours), b, appLog)

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewOpenWeatherProvider(httpClient, providers.OpenWeatherConfig{
		APIKey:  cfg.OpenWeatherAPIKey,
		BaseURL: cfg.OpenWeatherBaseURL,
		Units:   cfg.OpenWeatherUnits,
	})

	service := weather.NewService(provider, manager, b, b, appLog)
	service.Restore(ctx)

	sched := scheduler.New(cfg.PruneInterval, service, appLog)
	if err := sched.Start(); err != nil {
		appLog.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, b, httpapi.Options{AccessLog: true})

	go func() {
		appLog.Infof("listening on :%s (store=%s)", cfg.Port, cfg.Store.Backend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLog.Errorf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLog.Errorf("error during shutdown: %v", err)
	}
}
