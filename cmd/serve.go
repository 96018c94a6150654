package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/albydefault/notes-app/internal/config"
	"github.com/albydefault/notes-app/internal/gemini"
	"github.com/albydefault/notes-app/internal/handlers"
	"github.com/albydefault/notes-app/internal/processor"
	"github.com/albydefault/notes-app/internal/scanner"
	"github.com/albydefault/notes-app/internal/store"
	"github.com/albydefault/notes-app/internal/store/db/sqlite"
)

func newServeCmd() *cobra.Command {
	var port string
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the notes web server",
		Long: `Starts the notes web interface on the specified port.

Upload photographed pages of handwritten notes, then process a session to
generate a transcription, a study guide, and exam questions with Gemini.
GEMINI_API_KEY must be set for processing; uploads and browsing work
without it.`,
		Example: `  # Start server on default port 8000
  notes serve

  # Start server on custom port with a config file
  notes serve --port 3000 --config notes.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}

			db, err := sqlite.Open(cfg.DBPath())
			if err != nil {
				return err
			}
			sessionStore := store.New(db)
			defer sessionStore.Close()

			var gen processor.Generator
			if cfg.GeminiAPIKey != "" {
				client, err := gemini.NewClient(cmd.Context(), cfg.GeminiAPIKey, cfg.GeminiModel)
				if err != nil {
					return err
				}
				defer client.Close()
				gen = client
			} else {
				slog.Warn("GEMINI_API_KEY not set, note processing is disabled")
			}

			handler := handlers.New(
				sessionStore,
				scanner.New(cfg.TargetHeight),
				processor.New(sessionStore, gen, cfg),
				cfg,
			)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/upload", handler.HandleUpload)
			mux.HandleFunc("/api/process-notes/", handler.HandleProcessNotes)
			mux.HandleFunc("/view/", handler.HandleView)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Notes interface available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	return cmd
}
