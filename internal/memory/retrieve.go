package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mgrabner/recall/internal/db"
	"github.com/mgrabner/recall/internal/metrics"
	"github.com/mgrabner/recall/internal/models"
)

// RelevantContext embeds the query and returns the user's most similar past
// turns, highest score first, at most five. Only answered turns participate
// since the stored vectors encode question+answer pairs. A user with no
// indexed vectors yet yields an empty slice, not an error; embedding
// failures propagate.
func (s *Service) RelevantContext(ctx context.Context, userID, query string) ([]models.RelatedTurn, error) {
	start := time.Now()
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("relevant context: %w", err)
	}
	s.observe(metrics.OpEmbedding, start)

	searchStart := time.Now()
	turns, err := s.store.SimilarTurns(ctx, userID, embedding, topRelated)
	if err != nil {
		if db.IsVectorColdStart(err) {
			s.logger.Debug("no indexed turns yet", "user_id", userID)
			return []models.RelatedTurn{}, nil
		}
		return nil, fmt.Errorf("relevant context: %w", err)
	}
	s.observe(metrics.OpDBSearch, searchStart)

	// The store orders by score already; re-sort in case a backend returns
	// insertion order, and enforce the result cap.
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Score != turns[j].Score {
			return turns[i].Score > turns[j].Score
		}
		return turns[i].Timestamp.After(turns[j].Timestamp)
	})
	if len(turns) > topRelated {
		turns = turns[:topRelated]
	}
	return turns, nil
}
