package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mgrabner/recall/internal/llm"
	"github.com/mgrabner/recall/internal/metrics"
	"github.com/mgrabner/recall/internal/models"
)

// Summarize extends the user's rolling profile summary with every turn not
// yet folded in, then marks those turns summarized. When nothing is pending
// it returns the stored summary without calling the model, so repeated calls
// with no new activity cost one read. The generate call and the summarized
// flags are not atomic: a crash between them can fold the same turns twice
// on the next run, which extends rather than corrupts the summary.
func (s *Service) Summarize(ctx context.Context, userID string, generate GenerateFunc) (string, error) {
	if err := s.store.EnsureSummary(ctx, userID); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	turns, err := s.store.UnsummarizedTurns(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	current := ""
	if stored, err := s.store.Summary(ctx, userID); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	} else if stored != nil {
		current = stored.Content
	}

	lines := transcriptLines(turns)
	if len(lines) == 0 {
		s.logger.Debug("summary up to date", "user_id", userID)
		return current, nil
	}

	prompt := llm.ProfilePrompt(current, strings.Join(lines, "\n"))
	start := time.Now()
	updated, err := generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize: generate: %w", err)
	}
	s.observe(metrics.OpLLMGenerate, start)

	if err := s.store.SetSummary(ctx, userID, updated); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if err := s.store.MarkSummarized(ctx, userID); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	s.logger.Info("summary extended", "user_id", userID, "turns", len(turns))
	return updated, nil
}

// transcriptLines renders pending turns as "User:"/"Assistant:" lines. Each
// side of a turn appears only if it has not been summarized yet, so an
// answer that arrived after its question was folded in still gets included.
func transcriptLines(turns []models.TurnRecord) []string {
	lines := []string{}
	for _, t := range turns {
		if !t.IsSummarized {
			lines = append(lines, "User: "+t.Text)
		}
		if t.AnswerText != nil && (t.AnswerDone == nil || !*t.AnswerDone) {
			lines = append(lines, "Assistant: "+*t.AnswerText)
		}
	}
	return lines
}
