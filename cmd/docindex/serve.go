package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/metrics"
	chiTransport "github.com/kailas-cloud/docindex/internal/transport/chi"
	"github.com/kailas-cloud/docindex/internal/version"
)

func newServeCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), st)
		},
	}
}

func runServe(ctx context.Context, st *cliState) error {
	cfg, logger := st.cfg, st.logger
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("Starting docindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", st.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_path", cfg.Index.Path),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	metrics.RegisterHTTPMetrics()

	server := chiTransport.NewServer(a.ingest, a.manager, a.health, logger,
		chiTransport.WithMaxUploadBytes(int64(cfg.HTTP.MaxUploadMB)<<20),
		chiTransport.WithAPIKeys(cfg.HTTP.APIKeys),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
