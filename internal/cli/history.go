package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgrabner/recall/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the ordered transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, err := getService(false)
	if err != nil {
		return err
	}

	history, err := svc.History(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if len(history) == 0 {
		fmt.Println("No history for this session.")
		return nil
	}
	for _, e := range history {
		prefix := "User"
		if e.Type == models.EntryAnswer {
			prefix = "Assistant"
		}
		fmt.Printf("[%s] %s: %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), prefix, e.Text)
	}
	return nil
}
