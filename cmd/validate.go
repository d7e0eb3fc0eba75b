package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JPisOP007/jeevo/internal/app"
)

var validateAnswer string

var validateCmd = &cobra.Command{
	Use:   "validate [question]",
	Short: "Check an answer against the indexed guidelines",
	Long: `Validate generates a reference answer for the question from the
knowledge base and measures how much of it the provided answer covers.
The score is coarse key-term overlap, a smoke test for drift rather than
a clinical review.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateAnswer, "answer", "a", "", "answer text to check (required)")
	_ = validateCmd.MarkFlagRequired("answer")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	question := strings.Join(args, " ")

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		validation, err := a.RAG.Validate(ctx, question, validateAnswer)
		if err != nil {
			return fmt.Errorf("validating answer: %w", err)
		}

		if validation.Inconclusive {
			fmt.Printf("Inconclusive: %s\n", validation.Reason)
			return nil
		}

		fmt.Printf("Accuracy: %.0f%%\n", validation.Accuracy*100)
		fmt.Printf("Confidence: %s\n", validation.Confidence)
		if len(validation.MatchingTerms) > 0 {
			fmt.Printf("Matching terms: %s\n", strings.Join(validation.MatchingTerms, ", "))
		}
		if len(validation.Sources) > 0 {
			fmt.Printf("Sources: %s\n", strings.Join(validation.Sources, ", "))
		}
		return nil
	})
}
