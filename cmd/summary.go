package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JPisOP007/jeevo/internal/app"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [condition]",
	Short: "Summarize everything the guidelines say about a condition",
	Long: `Summary retrieves a broad slice of the knowledge base covering
symptoms, diagnosis, treatment and prevention of the named condition and
generates a single grounded overview.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	condition := strings.Join(args, " ")

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		answer, err := a.RAG.Summary(ctx, condition)
		if err != nil {
			return fmt.Errorf("summarizing %q: %w", condition, err)
		}

		printAnswer(answer)
		return nil
	})
}
