package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JPisOP007/jeevo/internal/app"
	"github.com/JPisOP007/jeevo/internal/rag"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a health question answered from indexed guidelines",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of guideline chunks to retrieve (0 uses the configured default)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	question := strings.Join(args, " ")

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if !a.RAG.IsMedicalQuery(question) {
			fmt.Println("This doesn't look like a health question. Jeevo only answers questions grounded in medical guidelines.")
			return nil
		}

		answer, err := a.RAG.Query(ctx, question, askTopK)
		if err != nil {
			return fmt.Errorf("answering question: %w", err)
		}

		printAnswer(answer)
		return nil
	})
}

// printAnswer renders a grounded answer with its provenance.
func printAnswer(answer rag.Answer) {
	fmt.Println(answer.Answer)
	fmt.Println()
	if len(answer.Sources) > 0 {
		fmt.Printf("Sources: %s\n", strings.Join(answer.Sources, ", "))
	}
	fmt.Printf("Confidence: %s (mean similarity %.2f, %d chunks)\n",
		answer.Confidence, answer.MeanSimilarity, answer.RetrievedChunks)
}
