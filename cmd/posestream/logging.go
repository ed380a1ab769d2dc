package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// newLogger builds the process logger. outputs overrides where entries go;
// the TUI sends them to a file so they do not tear the screen.
func newLogger(cfg config.LogConfig, outputs ...string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zcfg.Level = lvl
	}
	if len(outputs) > 0 {
		zcfg.OutputPaths = outputs
		zcfg.ErrorOutputPaths = outputs
	}
	return zcfg.Build()
}

// serveMetrics exposes the default Prometheus registry on addr until ctx ends.
// An empty addr disables it.
func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("Metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
