package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions <user-id>",
	Short: "List a user's sessions",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	svc, err := getService(false)
	if err != nil {
		return err
	}

	sessions, err := svc.Sessions(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s\t%s\n", s.SessionID, s.Title)
	}
	return nil
}
