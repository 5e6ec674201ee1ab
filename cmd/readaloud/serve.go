package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud-go/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control server",
	Long: `Serve exposes the reading controller over HTTP on HTTP_PORT:
open a document, start, pause, stop, seek and tune the voice. When
BEARER_TOKEN is set every control route requires it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("dry-run", false, "synthesize but log instead of playing audio")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if err := a.buildController(dryRun); err != nil {
		return err
	}

	a.logger.Info("starting readaloud", "version", version)
	if a.cfg.AuthDisabled() {
		a.logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}
	a.logger.Info("configuration loaded",
		"log_level", a.cfg.LogLevel,
		"log_format", a.cfg.LogFormat,
		"http_port", a.cfg.HTTPPort,
		"state_backend", a.cfg.StateBackend,
		"audio_output", a.cfg.AudioOutput,
		"read_chunk_size", a.cfg.ReadChunkSize,
		"stop_timeout", a.cfg.StopTimeout,
	)

	server := api.New(a.cfg, a.logger, a.ctrl, a.store, a.metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
