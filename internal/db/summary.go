package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/mgrabner/recall/internal/models"
)

// EnsureSummary lazily creates the user's summary singleton with empty
// content. Repeat calls leave an existing summary untouched.
func (c *Client) EnsureSummary(ctx context.Context, userID string) error {
	sql := `
		LET $u = UPSERT ONLY type::record("user", $user_id);
		IF array::len(SELECT VALUE out FROM has_summary WHERE in = $u.id) = 0 {
			LET $sum = CREATE ONLY summary SET content = "", updated = time::now();
			RELATE ($u.id)->has_summary->($sum.id);
		};
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"user_id": userID,
	})
	if err != nil {
		return fmt.Errorf("ensure summary: %w", err)
	}
	return nil
}

// Summary returns the user's summary node, or nil if it was never created.
func (c *Client) Summary(ctx context.Context, userID string) (*models.Summary, error) {
	sql := `
		SELECT id, content, updated FROM summary
		WHERE id IN (SELECT VALUE out FROM has_summary WHERE in = type::record("user", $user_id))
	`
	results, err := surrealdb.Query[[]models.Summary](ctx, c.db, sql, map[string]any{
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// SetSummary replaces the summary content wholesale and bumps the updated
// timestamp.
func (c *Client) SetSummary(ctx context.Context, userID, content string) error {
	sql := `
		UPDATE summary SET content = $content, updated = time::now()
		WHERE id IN (SELECT VALUE out FROM has_summary WHERE in = type::record("user", $user_id))
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"user_id": userID,
		"content": content,
	})
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}

// UnsummarizedTurns returns the user's questions (with answers, when
// present) where either side has not been folded into the rolling summary,
// ordered by question timestamp.
func (c *Client) UnsummarizedTurns(ctx context.Context, userID string) ([]models.TurnRecord, error) {
	sql := `
		SELECT id, text, timestamp, is_summarized,
			(->answered->answer.text)[0] AS answer_text,
			(->answered->answer.timestamp)[0] AS answer_time,
			(->answered->answer.is_summarized)[0] AS answer_summarized
		FROM question
		WHERE id IN (
				SELECT VALUE out FROM asked WHERE in IN (
					SELECT VALUE out FROM owns WHERE in = type::record("user", $user_id)))
			AND (is_summarized = false OR (->answered->answer.is_summarized)[0] = false)
		ORDER BY timestamp
	`
	results, err := surrealdb.Query[[]models.TurnRecord](ctx, c.db, sql, map[string]any{
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("unsummarized turns: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.TurnRecord{}, nil
	}
	return (*results)[0].Result, nil
}

// MarkSummarized flips is_summarized to true on every currently
// unsummarized question of the user and on the answers hanging off them.
// The flag never transitions back.
func (c *Client) MarkSummarized(ctx context.Context, userID string) error {
	sql := `
		LET $qs = (
			SELECT VALUE id FROM question
			WHERE id IN (
					SELECT VALUE out FROM asked WHERE in IN (
						SELECT VALUE out FROM owns WHERE in = type::record("user", $user_id)))
				AND (is_summarized = false OR (->answered->answer.is_summarized)[0] = false)
		);
		UPDATE question SET is_summarized = true WHERE id IN $qs;
		UPDATE answer SET is_summarized = true WHERE id IN (SELECT VALUE out FROM answered WHERE in IN $qs);
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"user_id": userID,
	})
	if err != nil {
		return fmt.Errorf("mark summarized: %w", err)
	}
	return nil
}
