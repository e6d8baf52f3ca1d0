package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <user-id> <session-id> <prompt>",
	Short: "Run one chat turn with full memory context",
	Long: `Log the prompt into the session chain, build a prompt from the
transcript, the rolling profile summary, and similar past turns, ask the
configured model, and store its answer back into the chain.

Examples:
  recall chat alice trip-planning "Where did we leave off?"`,
	Args: cobra.ExactArgs(3),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	userID, sessionID, prompt := args[0], args[1], args[2]

	svc, err := getService(true)
	if err != nil {
		return err
	}

	answer, err := svc.Respond(context.Background(), userID, sessionID, prompt, model.Generate)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	fmt.Println(answer)
	return nil
}
