// Package server boots the federator process: load config, connect the
// optional Redis and audit-trail stores, discover backends, serve HTTP
// until a signal arrives, then shut down gracefully. Adapted from the
// teacher's internal/server/server.go, narrowed to the one HTTP listener
// this service needs (no gRPC, no job queue, no generic storage).
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/oit-uog/solr-federator/config"
	"github.com/oit-uog/solr-federator/internal/audit"
	"github.com/oit-uog/solr-federator/internal/coordinator"
	"github.com/oit-uog/solr-federator/internal/httpapi"
	"github.com/oit-uog/solr-federator/internal/imagestore"
	"github.com/oit-uog/solr-federator/pkg/cache"
	"github.com/oit-uog/solr-federator/pkg/logger"
)

// Start boots the HTTP server and runs until SIGINT/SIGTERM, then shuts
// down gracefully.
func Start() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Info("runtime", "GOMAXPROCS", runtime.GOMAXPROCS(0), "NumCPU", runtime.NumCPU())

	// Redis is non-fatal — the federator degrades to single-process caching
	// and no cross-replica schema-rebind notifications without it.
	if err := cache.Connect(); err != nil {
		logger.Warn("cache: Redis unavailable, continuing without distributed coordination", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	images, err := imagestore.New(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("imagestore: %w", err)
	}

	rec, err := audit.Open(config.AuditDBPath())
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	co := coordinator.New(config.APIURL(), config.DefaultQueryRows(), config.QueryCacheTTL())
	co.SetImageStore(images)
	co.SetAuditRecorder(rec)

	startCtx, startCancel := context.WithTimeout(context.Background(), 60*time.Second)
	err = co.Start(startCtx)
	startCancel()
	if err != nil {
		return fmt.Errorf("coordinator: start: %w", err)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	go co.WatchRebind(watchCtx)

	handler := httpapi.New(co, images).Handler()

	addr := ":" + config.AppPort()
	srv := &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("federator listening on %s [env: %s, upstream: %s]\n", addr, config.AppEnv(), config.APIURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		fmt.Printf("\nsignal %s received, shutting down\n", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	httpErr := srv.Shutdown(shutdownCtx)
	logger.CloseMongoHandler()
	return httpErr
}
