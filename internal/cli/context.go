package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context <user-id> <query>",
	Short: "Find the user's past turns most similar to a query",
	Args:  cobra.ExactArgs(2),
	RunE:  runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	svc, err := getService(true)
	if err != nil {
		return err
	}

	turns, err := svc.RelevantContext(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("relevant context: %w", err)
	}

	if len(turns) == 0 {
		fmt.Println("No relevant turns found.")
		return nil
	}
	for _, t := range turns {
		fmt.Printf("(%.2f) User: %s\n", t.Score, t.Question)
		if t.Answer != "" {
			fmt.Printf("       Assistant: %s\n", t.Answer)
		}
	}
	return nil
}
