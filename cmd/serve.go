package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/ratefit/internal/config"
	"github.com/cwbudde/ratefit/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveCheckDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the calibration job server",
	Long: `Starts the HTTP server: REST endpoints to create, inspect and cancel
calibration jobs, SSE and websocket streams for live progress, and
JSONL trace downloads. Checkpoints are written under the checkpoint
directory; pass an empty one to disable persistence.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveCheckDir, "checkpoint-dir", "", "Directory for checkpoints and traces")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr = serveAddr
	}
	checkDir := cfg.Server.CheckpointDir
	if cmd.Flags().Changed("checkpoint-dir") {
		checkDir = serveCheckDir
	}

	srv, err := server.NewServer(addr, checkDir)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
