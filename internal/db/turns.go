package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/mgrabner/recall/internal/models"
)

// EnsureUserAndSession upserts the user, the session, and the ownership edge
// between them. Safe to call on every request; repeat calls are no-ops.
func (c *Client) EnsureUserAndSession(ctx context.Context, userID, sessionID string) error {
	sql := `
		LET $u = UPSERT ONLY type::record("user", $user_id);
		LET $s = UPSERT ONLY type::record("session", $session_id);
		IF array::len(SELECT VALUE id FROM owns WHERE in = $u.id AND out = $s.id) = 0 {
			RELATE ($u.id)->owns->($s.id);
		};
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"user_id":    userID,
		"session_id": sessionID,
	})
	if err != nil {
		return fmt.Errorf("ensure user and session: %w", err)
	}
	return nil
}

// AppendQuestion creates a question node and splices it onto the end of the
// session's chain in one transaction: attach the membership edge, link the
// old tail (if any) to the new node as successor, and move the tail pointer.
// SurrealDB serializes the transaction, so two concurrent appends to the
// same session can never observe the same prior tail.
func (c *Client) AppendQuestion(ctx context.Context, sessionID, questionID, text string, timestamp time.Time) error {
	sql := `
		BEGIN TRANSACTION;
		LET $s = type::record("session", $session_id);
		LET $q = CREATE ONLY type::record("question", $question_id) SET
			text = $text,
			timestamp = type::datetime($timestamp),
			is_summarized = false;
		RELATE $s->asked->($q.id);
		LET $tail = (SELECT VALUE out FROM last_turn WHERE in = $s);
		IF array::len($tail) > 0 {
			RELATE ($tail[0])->next->($q.id);
		};
		DELETE last_turn WHERE in = $s;
		RELATE $s->last_turn->($q.id);
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"session_id":  sessionID,
		"question_id": questionID,
		"text":        text,
		"timestamp":   timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("append question: %w", err)
	}
	return nil
}

// TailQuestion returns the session's tail question, or nil when the session
// has no questions yet.
func (c *Client) TailQuestion(ctx context.Context, sessionID string) (*models.Question, error) {
	sql := `
		SELECT id, text, timestamp, is_summarized FROM question
		WHERE id IN (SELECT VALUE out FROM last_turn WHERE in = type::record("session", $session_id))
	`
	results, err := surrealdb.Query[[]models.Question](ctx, c.db, sql, map[string]any{
		"session_id": sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("tail question: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// AttachAnswer creates the answer node, links it to its question, and stores
// the combined-turn embedding on the question node, all in one transaction.
func (c *Client) AttachAnswer(ctx context.Context, questionID, answerID, text string, timestamp time.Time, embedding []float32) error {
	sql := `
		BEGIN TRANSACTION;
		LET $q = type::record("question", $question_id);
		LET $a = CREATE ONLY type::record("answer", $answer_id) SET
			text = $text,
			timestamp = type::datetime($timestamp),
			is_summarized = false;
		RELATE $q->answered->($a.id);
		UPDATE $q SET embedding = $embedding;
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"question_id": questionID,
		"answer_id":   answerID,
		"text":        text,
		"timestamp":   timestamp.UTC().Format(time.RFC3339Nano),
		"embedding":   embedding,
	})
	if err != nil {
		return fmt.Errorf("attach answer: %w", err)
	}
	return nil
}

// SessionTurns returns every question of a session joined with its successor
// pointer and answer, ordered by timestamp. The chain walk over the
// successor pointers happens in the memory package, where it is testable
// without a store.
func (c *Client) SessionTurns(ctx context.Context, sessionID string) ([]models.TurnRecord, error) {
	sql := `
		SELECT id, text, timestamp, is_summarized,
			(->next->question.id)[0] AS next_id,
			(->answered->answer.text)[0] AS answer_text,
			(->answered->answer.timestamp)[0] AS answer_time,
			(->answered->answer.is_summarized)[0] AS answer_summarized
		FROM question
		WHERE id IN (SELECT VALUE out FROM asked WHERE in = type::record("session", $session_id))
		ORDER BY timestamp
	`
	results, err := surrealdb.Query[[]models.TurnRecord](ctx, c.db, sql, map[string]any{
		"session_id": sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("session turns: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.TurnRecord{}, nil
	}
	return (*results)[0].Result, nil
}

// sessionListing is the raw row shape of ListSessions.
type sessionListing struct {
	SessionID    string  `json:"session_id"`
	LastQuestion *string `json:"last_question"`
}

// ListSessions returns the sessions owned by a user, each titled with its
// most recent question.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	sql := `
		SELECT record::id(id) AS session_id,
			(SELECT VALUE text FROM question
				WHERE id IN (SELECT VALUE out FROM asked WHERE in = $parent.id)
				ORDER BY timestamp DESC LIMIT 1)[0] AS last_question
		FROM session
		WHERE id IN (SELECT VALUE out FROM owns WHERE in = type::record("user", $user_id))
		ORDER BY session_id
	`
	results, err := surrealdb.Query[[]sessionListing](ctx, c.db, sql, map[string]any{
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := []models.SessionInfo{}
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			last := ""
			if row.LastQuestion != nil {
				last = *row.LastQuestion
			}
			sessions = append(sessions, models.SessionInfo{
				SessionID: row.SessionID,
				Title:     models.SessionTitle(last),
			})
		}
	}
	return sessions, nil
}
