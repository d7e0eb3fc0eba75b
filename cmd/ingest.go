package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JPisOP007/jeevo/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Index guideline documents into the knowledge base",
	Long: `Ingest loads every supported document under the given directory
(.txt, .md, .html, .pdf and MedQuAD-style .json question-answer files),
splits them into overlapping chunks, embeds each chunk and builds a fresh
index revision. The new revision replaces the old one atomically, so
queries keep working during the rebuild.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		result, err := a.Indexer.Rebuild(ctx, args[0])
		if err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}

		fmt.Printf("Indexed %d chunks from %d documents in %s\n",
			result.Chunks, result.DocumentsLoaded, result.Duration.Round(time.Millisecond))
		if result.DocumentsFailed > 0 {
			fmt.Printf("Skipped %d documents that failed to load (see logs)\n", result.DocumentsFailed)
		}
		fmt.Printf("Active revision: %s\n", result.Revision)
		return nil
	})
}
