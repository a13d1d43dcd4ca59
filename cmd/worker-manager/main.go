// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vocabulary-workers/internal/app"
	"vocabulary-workers/internal/common/camunda"
	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/observability"
	"vocabulary-workers/pkg/registry"

	ec "vocabulary-workers/internal/workers/vocabulary/extract-concepts"
	ft "vocabulary-workers/internal/workers/vocabulary/format-terms"
	rt "vocabulary-workers/internal/workers/vocabulary/resolve-terms"
	sd "vocabulary-workers/internal/workers/vocabulary/search-descriptors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Pipeline components ---
	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("pipeline components failed", zap.Error(err))
	}
	defer components.Close()

	pipeline, err := components.NewPipeline(log, rt.WithObservability(obs))
	if err != nil {
		zapLog.Fatal("pipeline construction failed", zap.Error(err))
	}
	defer pipeline.Release()

	resolveHandler := rt.NewHandler(rt.NewConfig(cfg), pipeline, log)

	// --- Zeebe client with retry ---
	zeebe, err := camunda.Connect(ctx, camunda.NewClientConfig(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}

	workers := camunda.NewWorkers(zeebe.Zeebe(), log)

	if taskType := rt.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		workers.Start(taskType, config.GetWorkerConfig(cfg, taskType), resolveHandler.Handle)
	}

	if taskType := ec.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		handler := ec.NewHandler(ec.NewConfig(cfg), components.Fallback, components.Registry, log)
		workers.Start(taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle)
	}

	if taskType := sd.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		handler := sd.NewHandler(sd.NewConfig(cfg), components.Backends, log)
		workers.Start(taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle)
	}

	if taskType := ft.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		handler := ft.NewHandler(ft.NewConfig(cfg), log)
		workers.Start(taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle)
	}
	zapLog.Info("workers registered", zap.Strings("taskTypes", workers.Started()))

	// --- Health, Metrics & REST Server ---
	activities := registry.Default()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.HandleFunc("/api/v1/activities", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(activities)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle(rt.Route, rt.NewHTTPHandler(resolveHandler))
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}

	workers.Close()

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
