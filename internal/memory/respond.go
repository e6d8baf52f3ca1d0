package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mgrabner/recall/internal/metrics"
	"github.com/mgrabner/recall/internal/models"
)

// Respond runs a full chat turn: log the question, assemble the prompt from
// the session transcript, the rolling summary, and relevance retrieval, ask
// the model, then log its answer back into the chain. The answer returns to
// the caller even when logging it degrades under the swallow policy.
func (s *Service) Respond(ctx context.Context, userID, sessionID, prompt string, generate GenerateFunc) (string, error) {
	if err := s.LogQuestion(ctx, userID, sessionID, prompt); err != nil {
		return "", err
	}

	history, err := s.History(ctx, sessionID)
	if err != nil {
		return "", err
	}

	summary, err := s.Summarize(ctx, userID, generate)
	if err != nil {
		return "", err
	}

	related, err := s.RelevantContext(ctx, userID, prompt)
	if err != nil {
		return "", err
	}

	full := BuildPrompt(prompt, CollapseConsecutive(history), related, summary)

	start := time.Now()
	answer, err := generate(ctx, full)
	if err != nil {
		return "", fmt.Errorf("respond: generate: %w", err)
	}
	s.observe(metrics.OpLLMGenerate, start)

	if err := s.LogAnswer(ctx, sessionID, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// BuildPrompt assembles the model prompt from the question and whatever
// context is available. Empty context sections are omitted entirely.
func BuildPrompt(question string, history []models.HistoryEntry, related []models.RelatedTurn, summary string) string {
	sections := []string{"This is the question:\n" + strings.TrimSpace(question)}

	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, e := range history {
			prefix := "User:"
			if e.Type == models.EntryAnswer {
				prefix = "Assistant:"
			}
			lines = append(lines, prefix+" "+e.Text)
		}
		sections = append(sections, "If it helps, this is some context regarding the conversation so far:\n"+strings.Join(lines, "\n"))
	}

	if len(related) > 0 {
		lines := make([]string, 0, 2*len(related))
		for _, t := range related {
			lines = append(lines, "User: "+t.Question)
			if t.Answer != "" {
				lines = append(lines, fmt.Sprintf("Assistant: %s (score: %.2f)", t.Answer, t.Score))
			}
		}
		sections = append(sections, "These are the most relevant questions and answers from the past for this query:\n"+strings.Join(lines, "\n"))
	}

	if summary != "" {
		sections = append(sections, "Some extra context is this summary that I have about the user. Only use it if it helps to answer the question:\n"+strings.TrimSpace(summary))
	}

	return strings.Join(sections, "\n\n")
}
