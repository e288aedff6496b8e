package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/smsvault/internal/api"
	"github.com/wesm/smsvault/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the smsvault HTTP server",
	Long: `Run the smsvault HTTP server in the foreground.

The server exposes:
  - The web dashboard at /
  - The JSON API under /api (messages, bulk upload, stats)

The database is created and migrated automatically on startup.
Use Ctrl+C to stop the server gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Open database, owned here for the process lifetime
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	if err := s.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	apiServer := api.NewServer(cfg, s, logger)

	// Start API server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	bindAddr := cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	fmt.Printf("smsvault started\n")
	fmt.Printf("  Dashboard: http://%s\n", net.JoinHostPort(bindAddr, strconv.Itoa(cfg.Server.Port)))
	fmt.Printf("  Database:  %s\n", cfg.DatabasePath())
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	// Wait for shutdown signal or server error
	ctx := cmd.Context()
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		fmt.Println("\nShutting down...")
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		return fmt.Errorf("API server: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}

	fmt.Println("Shutdown complete.")
	return nil
}
