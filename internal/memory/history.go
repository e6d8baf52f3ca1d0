package memory

import (
	"context"
	"fmt"
	"sort"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mgrabner/recall/internal/models"
)

// History returns the session transcript in chain order: questions follow
// their successor links from head to tail, each immediately followed by its
// answer when one exists. Questions not reachable from the head (orphans
// left by partial writes) append afterwards in timestamp order. Logical
// duplicates, same (type, text, timestamp), collapse to one entry. An
// unknown session yields an empty transcript.
func (s *Service) History(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	records, err := s.store.SessionTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return orderTurns(records), nil
}

// recordKey identifies a record within one session's result set.
func recordKey(id surrealmodels.RecordID) string {
	return fmt.Sprintf("%s:%v", id.Table, id.ID)
}

// orderTurns linearizes turn records into a transcript. Records arrive
// timestamp-ordered; the successor pointers are authoritative where they
// exist.
func orderTurns(records []models.TurnRecord) []models.HistoryEntry {
	byID := make(map[string]*models.TurnRecord, len(records))
	hasPredecessor := make(map[string]bool, len(records))
	for i := range records {
		byID[recordKey(records[i].ID)] = &records[i]
	}
	for i := range records {
		if records[i].NextID != nil {
			hasPredecessor[recordKey(*records[i].NextID)] = true
		}
	}

	// The head is the earliest record no successor edge points at.
	var head *models.TurnRecord
	for i := range records {
		if !hasPredecessor[recordKey(records[i].ID)] {
			head = &records[i]
			break
		}
	}

	entries := []models.HistoryEntry{}
	seen := map[models.HistoryKey]bool{}
	visited := map[string]bool{}

	appendTurn := func(r *models.TurnRecord) {
		q := models.HistoryEntry{Type: models.EntryQuestion, Text: r.Text, Timestamp: r.Timestamp}
		if !seen[q.Key()] {
			seen[q.Key()] = true
			entries = append(entries, q)
		}
		if r.AnswerText != nil {
			a := models.HistoryEntry{Type: models.EntryAnswer, Text: *r.AnswerText}
			if r.AnswerTime != nil {
				a.Timestamp = *r.AnswerTime
			}
			if !seen[a.Key()] {
				seen[a.Key()] = true
				entries = append(entries, a)
			}
		}
	}

	for cur := head; cur != nil; {
		id := recordKey(cur.ID)
		if visited[id] {
			// Cycle guard; successor edges should form a path.
			break
		}
		visited[id] = true
		appendTurn(cur)
		if cur.NextID == nil {
			break
		}
		cur = byID[recordKey(*cur.NextID)]
	}

	// Orphans keep their relative timestamp order.
	orphans := []*models.TurnRecord{}
	for i := range records {
		if !visited[recordKey(records[i].ID)] {
			orphans = append(orphans, &records[i])
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		return orphans[i].Timestamp.Before(orphans[j].Timestamp)
	})
	for _, r := range orphans {
		appendTurn(r)
	}

	return entries
}

// CollapseConsecutive drops history entries whose (type, text) repeats the
// immediately preceding entry. Used when rendering transcripts into prompts
// so retries do not inflate the context.
func CollapseConsecutive(entries []models.HistoryEntry) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].Type == e.Type && out[n-1].Text == e.Text {
			continue
		}
		out = append(out, e)
	}
	return out
}
