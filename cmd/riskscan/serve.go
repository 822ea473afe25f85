package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/olegrjumin/riskscan/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Port = servePort
		}
		printBanner()

		c := build(cfg, logger, cfg.Screenshot.Enabled)
		defer c.Close()

		deps := httpapi.Deps{Scanner: c.scanner}
		if c.store != nil {
			deps.Records = c.store
		}
		if c.queue != nil {
			deps.Screenshotter = c.queue
		}
		if c.narrator != nil {
			deps.Explainer = c.narrator
		}

		server := httpapi.NewServer(fmt.Sprintf(":%d", cfg.Port), logger, deps)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Starting server", "port", cfg.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-quit:
		}
		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Info("Server stopped gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
}

func printBanner() {
	figure.NewColorFigure("riskscan", "small", "cyan", true).Print()
	color.New(color.FgHiBlack).Printf("  version %s\n\n", version)
}
