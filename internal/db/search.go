package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/mgrabner/recall/internal/models"
)

// SimilarTurns ranks the user's answered questions by cosine similarity
// between their stored combined-turn embeddings and the query embedding.
// Only questions that carry an embedding and have an answer participate.
// Ties on score break by timestamp descending (most recent first).
//
// Cold-start failures (no vectors indexed yet, null operand) surface as
// errors here; callers classify them with IsVectorColdStart and degrade to
// an empty result.
func (c *Client) SimilarTurns(ctx context.Context, userID string, embedding []float32, limit int) ([]models.RelatedTurn, error) {
	sql := `
		SELECT text AS question,
			(->answered->answer.text)[0] AS answer,
			vector::similarity::cosine(embedding, $embedding) AS score,
			timestamp
		FROM question
		WHERE id IN (
				SELECT VALUE out FROM asked WHERE in IN (
					SELECT VALUE out FROM owns WHERE in = type::record("user", $user_id)))
			AND embedding != NONE
			AND array::len(embedding) > 0
			AND array::len(->answered->answer) > 0
		ORDER BY score DESC, timestamp DESC
		LIMIT $limit
	`
	results, err := surrealdb.Query[[]models.RelatedTurn](ctx, c.db, sql, map[string]any{
		"user_id":   userID,
		"embedding": embedding,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("similar turns: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.RelatedTurn{}, nil
	}
	return (*results)[0].Result, nil
}
