package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Handwritten-notes scanner with AI-generated study materials",
		Long: `Notes turns photographed handwritten notes into study materials.

Uploaded images run through a document-scanning pass (boundary detection,
perspective correction, contrast normalization) and are then transcribed,
expanded into a study guide, and turned into exam questions by Gemini.
Results are grouped into sessions persisted in a local sqlite database.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}
