// Package models defines data structures for the Recall conversation store.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// EntryType distinguishes the two kinds of history entries.
type EntryType string

const (
	EntryQuestion EntryType = "question"
	EntryAnswer   EntryType = "answer"
)

// Question is a single user prompt stored in a session's chain.
// Embedding is set exactly once, when the answer is attached; it encodes the
// combined question+answer text, never the bare question.
type Question struct {
	ID           surrealmodels.RecordID `json:"id"`
	Text         string                 `json:"text"`
	Timestamp    time.Time              `json:"timestamp"`
	Embedding    []float32              `json:"embedding,omitempty"`
	IsSummarized bool                   `json:"is_summarized"`
}

// Answer is the response paired with a question, at most one per question.
type Answer struct {
	ID           surrealmodels.RecordID `json:"id"`
	Text         string                 `json:"text"`
	Timestamp    time.Time              `json:"timestamp"`
	IsSummarized bool                   `json:"is_summarized"`
}

// Summary is the singleton rolling profile for a user. Content is replaced
// wholesale on each extension and never reset once created.
type Summary struct {
	ID      surrealmodels.RecordID `json:"id"`
	Content string                 `json:"content"`
	Updated time.Time              `json:"updated"`
}

// HistoryEntry is one element of an ordered session transcript.
type HistoryEntry struct {
	Type      EntryType `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the identity of the entry for deduplication purposes.
func (e HistoryEntry) Key() HistoryKey {
	return HistoryKey{Type: e.Type, Text: e.Text, Timestamp: e.Timestamp}
}

// HistoryKey is the (type, text, timestamp) identity of a logical turn.
type HistoryKey struct {
	Type      EntryType
	Text      string
	Timestamp time.Time
}

// RelatedTurn is one ranked result from relevance retrieval.
type RelatedTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// SessionInfo is a session listing entry: the id plus a short title derived
// from the latest question.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

// TurnRecord is a question joined with its successor pointer and answer as
// read from the store. The chain walk over these records happens in the
// memory package.
type TurnRecord struct {
	ID           surrealmodels.RecordID  `json:"id"`
	Text         string                  `json:"text"`
	Timestamp    time.Time               `json:"timestamp"`
	IsSummarized bool                    `json:"is_summarized"`
	NextID       *surrealmodels.RecordID `json:"next_id,omitempty"`
	AnswerText   *string                 `json:"answer_text,omitempty"`
	AnswerTime   *time.Time              `json:"answer_time,omitempty"`
	AnswerDone   *bool                   `json:"answer_summarized,omitempty"`
}
