package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <user-id>",
	Short: "Extend the user's rolling profile summary",
	Long: `Fold every question/answer turn that has not been summarized yet
into the user's profile summary and print the result. With no pending
turns this prints the stored summary without calling the model.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	svc, err := getService(true)
	if err != nil {
		return err
	}

	summary, err := svc.Summarize(context.Background(), args[0], model.Generate)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	if summary == "" {
		fmt.Println("No summary yet.")
		return nil
	}
	fmt.Println(summary)
	return nil
}
