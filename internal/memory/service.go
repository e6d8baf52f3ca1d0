// Package memory implements the conversational memory subsystem: ordered
// per-session turn chains, the per-user rolling summary, and relevance
// retrieval over past turns.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mgrabner/recall/internal/metrics"
	"github.com/mgrabner/recall/internal/models"
)

// topRelated is the number of past turns returned by relevance retrieval.
const topRelated = 5

// Store is the persistence surface the service needs. *db.Client implements
// it; tests substitute fakes.
type Store interface {
	EnsureUserAndSession(ctx context.Context, userID, sessionID string) error
	AppendQuestion(ctx context.Context, sessionID, questionID, text string, timestamp time.Time) error
	TailQuestion(ctx context.Context, sessionID string) (*models.Question, error)
	AttachAnswer(ctx context.Context, questionID, answerID, text string, timestamp time.Time, embedding []float32) error
	SessionTurns(ctx context.Context, sessionID string) ([]models.TurnRecord, error)
	ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error)

	EnsureSummary(ctx context.Context, userID string) error
	Summary(ctx context.Context, userID string) (*models.Summary, error)
	SetSummary(ctx context.Context, userID, content string) error
	UnsummarizedTurns(ctx context.Context, userID string) ([]models.TurnRecord, error)
	MarkSummarized(ctx context.Context, userID string) error

	SimilarTurns(ctx context.Context, userID string, embedding []float32, limit int) ([]models.RelatedTurn, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateFunc produces a response for a prompt. The HTTP layer injects the
// configured model; tests inject stubs.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Options tunes service behavior.
type Options struct {
	// SwallowAnswerWriteErrors enables the availability-over-completeness
	// policy for LogAnswer: store read/write failures are logged, not
	// raised. Embedding-provider failures always propagate.
	SwallowAnswerWriteErrors bool

	// Metrics, when set, receives operation timings.
	Metrics *metrics.Collector

	// Now overrides the timestamp source (tests).
	Now func() time.Time
}

// Service orchestrates the turn store, the summarization engine, and the
// relevance retriever. It keeps no in-process cache; every read re-queries
// the store. It performs no retries and no internal timeouts; callers apply
// their own cancellation through ctx.
type Service struct {
	store    Store
	embedder Embedder
	logger   *slog.Logger
	stats    *metrics.Collector

	swallowAnswerWriteErrors bool
	now                      func() time.Time
}

// New creates a memory service.
func New(store Store, embedder Embedder, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:                    store,
		embedder:                 embedder,
		logger:                   logger,
		stats:                    opts.Metrics,
		swallowAnswerWriteErrors: opts.SwallowAnswerWriteErrors,
		now:                      now,
	}
}

// observe records a timing if a collector is attached.
func (s *Service) observe(op string, start time.Time) {
	if s.stats != nil {
		s.stats.RecordTiming(op, time.Since(start))
	}
}

// LogQuestion records a user prompt: idempotently ensures the user, the
// session, and the ownership edge, then appends the question to the
// session's chain with a server-generated timestamp.
func (s *Service) LogQuestion(ctx context.Context, userID, sessionID, text string) error {
	timestamp := s.now()

	start := time.Now()
	if err := s.store.EnsureUserAndSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("log question: %w", err)
	}
	if err := s.store.AppendQuestion(ctx, sessionID, uuid.NewString(), text, timestamp); err != nil {
		return fmt.Errorf("log question: %w", err)
	}
	s.observe(metrics.OpDBQuery, start)

	s.logger.Debug("question logged", "user_id", userID, "session_id", sessionID)
	return nil
}

// LogAnswer pairs an answer with the session's tail question, embeds the
// combined "Q:\nA:" text, and stores the vector on the question node. An
// empty session is a silent no-op. Under the swallow policy, store failures
// degrade to a log line; the answer's side effects are best-effort only.
func (s *Service) LogAnswer(ctx context.Context, sessionID, text string) error {
	timestamp := s.now()

	tail, err := s.store.TailQuestion(ctx, sessionID)
	if err != nil {
		return s.answerWriteError(sessionID, "tail lookup failed", err)
	}
	if tail == nil {
		// Defensive against races and empty sessions: nothing to pair with.
		s.logger.Debug("no tail question, dropping answer", "session_id", sessionID)
		return nil
	}

	combined := fmt.Sprintf("Q: %s\nA: %s", tail.Text, text)
	embedStart := time.Now()
	embedding, err := s.embedder.Embed(ctx, combined)
	if err != nil {
		// Provider failures are never swallowed.
		return fmt.Errorf("embed turn: %w", err)
	}
	s.observe(metrics.OpEmbedding, embedStart)

	questionID, err := models.RecordIDString(tail.ID)
	if err != nil {
		return s.answerWriteError(sessionID, "unexpected tail id", err)
	}

	start := time.Now()
	if err := s.store.AttachAnswer(ctx, questionID, uuid.NewString(), text, timestamp, embedding); err != nil {
		return s.answerWriteError(sessionID, "attach failed", err)
	}
	s.observe(metrics.OpDBQuery, start)

	s.logger.Debug("answer logged", "session_id", sessionID, "question_id", questionID)
	return nil
}

// answerWriteError applies the named swallow policy to a store failure
// during LogAnswer.
func (s *Service) answerWriteError(sessionID, msg string, err error) error {
	if s.swallowAnswerWriteErrors {
		s.logger.Warn("answer write degraded", "session_id", sessionID, "reason", msg, "error", err)
		return nil
	}
	return fmt.Errorf("log answer: %s: %w", msg, err)
}

// Sessions lists the sessions owned by a user, titled by latest question.
func (s *Service) Sessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	return s.store.ListSessions(ctx, userID)
}
