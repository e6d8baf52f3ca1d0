package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgrabner/recall/internal/config"
	"github.com/mgrabner/recall/internal/memory"
	"github.com/mgrabner/recall/internal/metrics"
	"github.com/mgrabner/recall/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the Recall HTTP server. Endpoints:

  POST /chat       run a chat turn with memory
  GET  /history    ordered session transcript
  GET  /sessions   sessions of a user
  POST /summary    extend the rolling profile summary
  GET  /context    similarity search over past turns
  GET  /health     liveness
  GET  /stats      runtime metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from RECALL_LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	if _, err := getService(true); err != nil {
		return err
	}

	collector := metrics.NewCollector()
	svc := memory.New(dbClient, embedder, logger, memory.Options{
		SwallowAnswerWriteErrors: cfg.SwallowAnswerWriteErrors,
		Metrics:                  collector,
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	srv := server.New(addr, svc, model.Generate, collector, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
