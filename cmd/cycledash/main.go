package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cycle-dashboard/internal/advisory"
	"cycle-dashboard/internal/cfg"
	"cycle-dashboard/internal/dashboard"
	"cycle-dashboard/internal/gateway"
	"cycle-dashboard/internal/logging"
	"cycle-dashboard/internal/metrics"
	"cycle-dashboard/internal/ml"
	"cycle-dashboard/internal/present"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	logFile, err := logging.Setup(logging.Options{
		Level:      c.LogLevel,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	registry := initializeModels(ctx, c, mw)
	defer registry.Close()

	advisor := advisory.New(ctx, advisory.Config{
		Provider: c.Advisory.Provider,
		APIKey:   c.Advisory.APIKey,
		Model:    c.Advisory.Model,
		BaseURL:  c.Advisory.BaseURL,
		Timeout:  c.Advisory.Timeout,
	}, advisory.Options{
		Timeout:           c.Advisory.Timeout,
		RequestsPerMinute: c.Advisory.RequestsPerMinute,
		Metrics:           mw,
	})

	server := dashboard.NewServer(registry, advisor, dashboard.Options{
		Addr:    c.HTTPAddr,
		Metrics: mw,
	})
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("dashboard start failed")
	}

	waitForShutdown(ctx, cancel, server)
}

// initializeModels loads one classifier per configured purpose. A purpose
// that fails stays unavailable; the process only exits when none loaded.
func initializeModels(ctx context.Context, c cfg.Settings, mw *metrics.MetricsWrapper) *gateway.Registry {
	registry := gateway.NewRegistry(gateway.Options{
		CacheSize: c.CacheSize,
		CacheTTL:  c.CacheTTL,
		Timeout:   c.InferenceTimeout,
		Metrics:   mw,
	})

	opts := ml.LoadOptions{
		PythonPath: c.PythonPath,
		ORTLibrary: c.ORTLibrary,
		Timeout:    c.InferenceTimeout,
		Metrics:    mw,
	}

	for _, purpose := range present.Purposes {
		name := string(purpose)
		if _, ok := c.Models[name]; !ok {
			log.Warn().Str("purpose", name).Msg("No model configured")
			continue
		}
		spec := c.ModelSpec(name)
		if err := registry.Load(ctx, purpose, c.Schema(name), spec, opts); err != nil {
			// already logged by the registry
			continue
		}
		log.Info().
			Str("purpose", name).
			Str("backend", spec.Backend).
			Str("model_path", spec.Path).
			Msg("Model loaded")
	}

	if registry.AllUnavailable() {
		log.Fatal().Msg("no prediction model could be loaded")
	}
	return registry
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, server *dashboard.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
