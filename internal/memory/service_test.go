package memory_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mgrabner/recall/internal/memory"
	"github.com/mgrabner/recall/internal/models"
)

// testLogger creates a logger for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeTurn is one question (and optional answer) held by the fake store.
type fakeTurn struct {
	id               string
	text             string
	timestamp        time.Time
	summarized       bool
	answerText       *string
	answerTime       *time.Time
	answerSummarized *bool
	embedding        []float32
}

// fakeStore is an in-memory Store. Sessions keep their turns in append
// order, which doubles as the successor chain.
type fakeStore struct {
	mu       sync.Mutex
	owners   map[string][]string   // user -> session ids
	sessions map[string][]*fakeTurn
	summary  map[string]string
	hasSum   map[string]bool

	// Overrides for fault injection.
	tailErr     error
	attachErr   error
	similar     []models.RelatedTurn
	similarErr  error
	turnRecords []models.TurnRecord // when set, SessionTurns returns these verbatim

	attachCalls int
	markCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:   map[string][]string{},
		sessions: map[string][]*fakeTurn{},
		summary:  map[string]string{},
		hasSum:   map[string]bool{},
	}
}

func (f *fakeStore) EnsureUserAndSession(_ context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.owners[userID] {
		if s == sessionID {
			return nil
		}
	}
	f.owners[userID] = append(f.owners[userID], sessionID)
	return nil
}

func (f *fakeStore) AppendQuestion(_ context.Context, sessionID, questionID, text string, timestamp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionID] = append(f.sessions[sessionID], &fakeTurn{
		id: questionID, text: text, timestamp: timestamp,
	})
	return nil
}

func (f *fakeStore) TailQuestion(_ context.Context, sessionID string) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tailErr != nil {
		return nil, f.tailErr
	}
	turns := f.sessions[sessionID]
	if len(turns) == 0 {
		return nil, nil
	}
	tail := turns[len(turns)-1]
	return &models.Question{
		ID:        surrealmodels.RecordID{Table: "question", ID: tail.id},
		Text:      tail.text,
		Timestamp: tail.timestamp,
	}, nil
}

func (f *fakeStore) AttachAnswer(_ context.Context, questionID, _, text string, timestamp time.Time, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachCalls++
	if f.attachErr != nil {
		return f.attachErr
	}
	for _, turns := range f.sessions {
		for _, t := range turns {
			if t.id == questionID {
				answered := false
				t.answerText = &text
				t.answerTime = &timestamp
				t.answerSummarized = &answered
				t.embedding = embedding
				return nil
			}
		}
	}
	return fmt.Errorf("question %s not found", questionID)
}

func (f *fakeStore) SessionTurns(_ context.Context, sessionID string) ([]models.TurnRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.turnRecords != nil {
		return f.turnRecords, nil
	}
	turns := f.sessions[sessionID]
	records := make([]models.TurnRecord, 0, len(turns))
	for i, t := range turns {
		rec := models.TurnRecord{
			ID:           surrealmodels.RecordID{Table: "question", ID: t.id},
			Text:         t.text,
			Timestamp:    t.timestamp,
			IsSummarized: t.summarized,
			AnswerText:   t.answerText,
			AnswerTime:   t.answerTime,
			AnswerDone:   t.answerSummarized,
		}
		if i+1 < len(turns) {
			next := surrealmodels.RecordID{Table: "question", ID: turns[i+1].id}
			rec.NextID = &next
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeStore) ListSessions(_ context.Context, userID string) ([]models.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := []models.SessionInfo{}
	for _, sid := range f.owners[userID] {
		last := ""
		if turns := f.sessions[sid]; len(turns) > 0 {
			last = turns[len(turns)-1].text
		}
		infos = append(infos, models.SessionInfo{SessionID: sid, Title: models.SessionTitle(last)})
	}
	return infos, nil
}

func (f *fakeStore) EnsureSummary(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasSum[userID] {
		f.hasSum[userID] = true
		f.summary[userID] = ""
	}
	return nil
}

func (f *fakeStore) Summary(_ context.Context, userID string) (*models.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasSum[userID] {
		return nil, nil
	}
	return &models.Summary{Content: f.summary[userID]}, nil
}

func (f *fakeStore) SetSummary(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary[userID] = content
	return nil
}

func (f *fakeStore) userTurns(userID string) []*fakeTurn {
	all := []*fakeTurn{}
	for _, sid := range f.owners[userID] {
		all = append(all, f.sessions[sid]...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].timestamp.Before(all[j].timestamp) })
	return all
}

func (f *fakeStore) UnsummarizedTurns(_ context.Context, userID string) ([]models.TurnRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := []models.TurnRecord{}
	for _, t := range f.userTurns(userID) {
		pendingAnswer := t.answerSummarized != nil && !*t.answerSummarized
		if !t.summarized || pendingAnswer {
			records = append(records, models.TurnRecord{
				ID:           surrealmodels.RecordID{Table: "question", ID: t.id},
				Text:         t.text,
				Timestamp:    t.timestamp,
				IsSummarized: t.summarized,
				AnswerText:   t.answerText,
				AnswerTime:   t.answerTime,
				AnswerDone:   t.answerSummarized,
			})
		}
	}
	return records, nil
}

func (f *fakeStore) MarkSummarized(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	for _, t := range f.userTurns(userID) {
		t.summarized = true
		if t.answerSummarized != nil {
			done := true
			t.answerSummarized = &done
		}
	}
	return nil
}

func (f *fakeStore) SimilarTurns(_ context.Context, _ string, _ []float32, limit int) ([]models.RelatedTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	out := f.similar
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]models.RelatedTurn{}, out...), nil
}

// fakeEmbedder returns a fixed vector and counts invocations.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
	vec   []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fixedGenerate returns a canned response and counts calls through the
// provided counter.
func fixedGenerate(response string, calls *int) memory.GenerateFunc {
	return func(_ context.Context, _ string) (string, error) {
		*calls++
		return response, nil
	}
}

func newService(store *fakeStore, embedder *fakeEmbedder, opts memory.Options) *memory.Service {
	if opts.Now == nil {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		n := 0
		opts.Now = func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Second)
		}
	}
	return memory.New(store, embedder, testLogger(), opts)
}

func TestLogQuestionAppendsToChain(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEmbedder{}, memory.Options{})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "first"))
	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "second"))

	tail, err := store.TailQuestion(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, "second", tail.Text)

	sessions, err := svc.Sessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, "second", sessions[0].Title)
}

func TestLogAnswerPairsWithTail(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	svc := newService(store, embedder, memory.Options{})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "what is Go?"))
	require.NoError(t, svc.LogAnswer(ctx, "s1", "a language"))

	require.Equal(t, 1, embedder.calls)
	assert.Equal(t, "Q: what is Go?\nA: a language", embedder.texts[0])

	turn := store.sessions["s1"][0]
	require.NotNil(t, turn.answerText)
	assert.Equal(t, "a language", *turn.answerText)
	assert.NotEmpty(t, turn.embedding, "embedding stored on the question")
}

func TestLogAnswerEmptySessionIsNoop(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	svc := newService(store, embedder, memory.Options{})

	require.NoError(t, svc.LogAnswer(context.Background(), "ghost", "orphan answer"))
	assert.Zero(t, embedder.calls, "no embedding without a tail question")
	assert.Zero(t, store.attachCalls)
}

func TestLogAnswerEmbedFailurePropagates(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	svc := newService(store, embedder, memory.Options{SwallowAnswerWriteErrors: true})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "q"))
	err := svc.LogAnswer(ctx, "s1", "a")
	require.Error(t, err, "provider failures are never swallowed")
	assert.Zero(t, store.attachCalls)
}

func TestLogAnswerStoreFailurePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("swallowed by default policy", func(t *testing.T) {
		store := newFakeStore()
		store.attachErr = errors.New("write refused")
		svc := newService(store, &fakeEmbedder{}, memory.Options{SwallowAnswerWriteErrors: true})

		require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "q"))
		assert.NoError(t, svc.LogAnswer(ctx, "s1", "a"))
	})

	t.Run("raised in strict mode", func(t *testing.T) {
		store := newFakeStore()
		store.tailErr = errors.New("read refused")
		svc := newService(store, &fakeEmbedder{}, memory.Options{SwallowAnswerWriteErrors: false})

		assert.Error(t, svc.LogAnswer(ctx, "s1", "a"))
	})
}

func TestSummarizeFoldsPendingTurns(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	svc := newService(store, embedder, memory.Options{})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "I like hiking"))
	require.NoError(t, svc.LogAnswer(ctx, "s1", "noted"))

	var prompts []string
	generate := func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "likes hiking", nil
	}

	summary, err := svc.Summarize(ctx, "alice", generate)
	require.NoError(t, err)
	assert.Equal(t, "likes hiking", summary)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "User: I like hiking")
	assert.Contains(t, prompts[0], "Assistant: noted")
	assert.Equal(t, "likes hiking", store.summary["alice"])
	assert.Equal(t, 1, store.markCalls)
}

func TestSummarizeTwiceGeneratesOnce(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEmbedder{}, memory.Options{})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "hello"))

	calls := 0
	generate := fixedGenerate("greets people", &calls)

	first, err := svc.Summarize(ctx, "alice", generate)
	require.NoError(t, err)
	second, err := svc.Summarize(ctx, "alice", generate)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "no new turns means no second model call")
}

func TestSummarizeColdStartReturnsEmpty(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEmbedder{}, memory.Options{})

	calls := 0
	summary, err := svc.Summarize(context.Background(), "nobody", fixedGenerate("x", &calls))
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Zero(t, calls)
}

func TestSummarizeGenerateFailurePropagates(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEmbedder{}, memory.Options{})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "alice", "s1", "hello"))

	_, err := svc.Summarize(ctx, "alice", func(context.Context, string) (string, error) {
		return "", errors.New("model down")
	})
	require.Error(t, err)
	assert.Empty(t, store.summary["alice"], "failed generation leaves the summary untouched")
	assert.Zero(t, store.markCalls, "turns stay pending for the next run")
}

func TestRelevantContextRankingAndCap(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 7; i++ {
		store.similar = append(store.similar, models.RelatedTurn{
			Question: fmt.Sprintf("q%d", i),
			Answer:   fmt.Sprintf("a%d", i),
			Score:    0.9 - float64(i)*0.1,
		})
	}
	svc := newService(store, &fakeEmbedder{}, memory.Options{})

	turns, err := svc.RelevantContext(context.Background(), "alice", "query")
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for i := 1; i < len(turns); i++ {
		assert.GreaterOrEqual(t, turns[i-1].Score, turns[i].Score, "scores must be non-increasing")
	}
}

func TestRelevantContextColdStart(t *testing.T) {
	store := newFakeStore()
	store.similarErr = errors.New("Incorrect vector dimension (0). Expected a vector of 1536 dimension(s) for HNSW index")
	svc := newService(store, &fakeEmbedder{}, memory.Options{})

	turns, err := svc.RelevantContext(context.Background(), "alice", "query")
	require.NoError(t, err, "cold start degrades to an empty result")
	assert.Empty(t, turns)
}

func TestRelevantContextEmbedFailurePropagates(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEmbedder{err: errors.New("provider down")}, memory.Options{})

	_, err := svc.RelevantContext(context.Background(), "alice", "query")
	require.Error(t, err)
}

func TestEndToEndMemoryFlow(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEmbedder{}, memory.Options{})
	ctx := context.Background()

	require.NoError(t, svc.LogQuestion(ctx, "1", "1", "hi"))
	require.NoError(t, svc.LogAnswer(ctx, "1", "hello"))

	history, err := svc.History(ctx, "1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.EntryQuestion, history[0].Type)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, models.EntryAnswer, history[1].Type)
	assert.Equal(t, "hello", history[1].Text)

	calls := 0
	stub := fixedGenerate("profile: greeted", &calls)

	summary, err := svc.Summarize(ctx, "1", stub)
	require.NoError(t, err)
	assert.Equal(t, "profile: greeted", summary)
	assert.Equal(t, "profile: greeted", store.summary["1"])

	again, err := svc.Summarize(ctx, "1", stub)
	require.NoError(t, err)
	assert.Equal(t, "profile: greeted", again)
	assert.Equal(t, 1, calls, "second call folds nothing and skips the model")
}

func TestRespondEndToEnd(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	svc := newService(store, embedder, memory.Options{SwallowAnswerWriteErrors: true})
	ctx := context.Background()

	var lastPrompt string
	generate := func(_ context.Context, prompt string) (string, error) {
		lastPrompt = prompt
		if strings.Contains(prompt, "Current summary:") {
			return "profile: greeted", nil
		}
		return "hello back", nil
	}

	answer, err := svc.Respond(ctx, "alice", "s1", "hi there", generate)
	require.NoError(t, err)
	assert.Equal(t, "hello back", answer)

	// The final model prompt carries the question, the transcript, and the
	// freshly extended summary.
	assert.Contains(t, lastPrompt, "This is the question:\nhi there")
	assert.Contains(t, lastPrompt, "User: hi there")
	assert.Contains(t, lastPrompt, "profile: greeted")

	// The answer landed back in the chain with its embedding.
	turn := store.sessions["s1"][0]
	require.NotNil(t, turn.answerText)
	assert.Equal(t, "hello back", *turn.answerText)
	assert.NotEmpty(t, turn.embedding)

	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.EntryQuestion, history[0].Type)
	assert.Equal(t, models.EntryAnswer, history[1].Type)
}
