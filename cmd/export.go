package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/albydefault/notes-app/internal/config"
	"github.com/albydefault/notes-app/internal/export"
	"github.com/albydefault/notes-app/internal/store"
	"github.com/albydefault/notes-app/internal/store/db/sqlite"
)

func newExportCmd() *cobra.Command {
	var output string
	var configPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export session records for offline analysis",
		Long: `Exports all sessions and their file records to a parquet or JSONL
file, one row per session/file pair. The format is detected from the
output extension.`,
		Example: `  # Export to parquet
  notes export --output sessions.parquet

  # Export to JSONL
  notes export --output sessions.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db, err := sqlite.Open(cfg.DBPath())
			if err != nil {
				return err
			}
			sessionStore := store.New(db)
			defer sessionStore.Close()

			ctx := cmd.Context()
			sessions, err := sessionStore.ListSessions(ctx)
			if err != nil {
				return err
			}
			for _, session := range sessions {
				files, err := sessionStore.ListFiles(ctx, session.ID, "")
				if err != nil {
					return err
				}
				session.Files = files
			}

			records := export.Flatten(sessions)
			if err := export.Write(output, records); err != nil {
				return err
			}

			slog.Info("Export written", "output", output, "sessions", len(sessions), "rows", len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "sessions.parquet", "Output file (.parquet or .jsonl)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	return cmd
}
