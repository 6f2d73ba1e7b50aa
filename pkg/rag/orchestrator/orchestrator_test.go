package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-study-portal-be/internal/repository/memory"
	"ai-study-portal-be/pkg/llm"
	"ai-study-portal-be/pkg/rag/prompt"
	"ai-study-portal-be/pkg/rag/response"
	"ai-study-portal-be/pkg/rag/session"
	"ai-study-portal-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocuments struct {
	docs  map[string]store.Document
	err   error
	calls atomic.Int32
}

func (f *fakeDocuments) FetchText(_ context.Context, ids []string) (*store.FetchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	res := &store.FetchResult{Documents: map[string]store.Document{}}
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			res.Documents[id] = d
		} else {
			res.Missing = append(res.Missing, id)
		}
	}
	return res, nil
}

// stubProvider answers every call through fn
type stubProvider struct {
	calls atomic.Int32
	fn    func(ctx context.Context, prompt string) (string, error)
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.Generate(ctx, history[len(history)-1].Content, options...)
}

func (p *stubProvider) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	p.calls.Add(1)
	return p.fn(ctx, prompt)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []store.TurnEvent
}

func (p *recordingPublisher) PublishTurn(_ context.Context, evt store.TurnEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	orch      *Orchestrator
	sessions  *session.Manager
	docs      *fakeDocuments
	provider  *stubProvider
	publisher *recordingPublisher
}

func newFixture(t *testing.T, fn func(ctx context.Context, prompt string) (string, error)) *fixture {
	return newFixtureWithAttemptTimeout(t, 2*time.Second, fn)
}

func newFixtureWithAttemptTimeout(t *testing.T, attemptTimeout time.Duration, fn func(ctx context.Context, prompt string) (string, error)) *fixture {
	t.Helper()
	sessions := session.NewManager(memory.NewSessionRepository(time.Hour, time.Hour), nil, nil, nil)
	docs := &fakeDocuments{docs: map[string]store.Document{
		"d1": {ID: "d1", Title: "Biology Ch.3", Text: "Photosynthesis converts light energy into chemical energy in chloroplasts."},
		"d2": {ID: "d2", Title: "Empty scan", Text: "  "},
	}}
	provider := &stubProvider{fn: fn}
	client := llm.NewClient(provider, llm.ClientConfig{AttemptTimeout: attemptTimeout}, nil, nil)
	publisher := &recordingPublisher{}

	orch := NewOrchestrator(
		sessions,
		docs,
		prompt.NewComposer(prompt.Config{}),
		client,
		response.NewInterpreter(nil),
		publisher,
		nil,
		nil,
		Config{Timeout: 5 * time.Second},
	)
	return &fixture{orch: orch, sessions: sessions, docs: docs, provider: provider, publisher: publisher}
}

func (f *fixture) newSession(t *testing.T, scope ...string) *store.Session {
	t.Helper()
	s, err := f.orch.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	if len(scope) > 0 {
		require.NoError(t, f.sessions.SetDocumentScope(context.Background(), s.ID, scope))
	}
	return s
}

func answer(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return text, nil }
}

func TestChatHappyPath(t *testing.T) {
	var seenPrompt string
	f := newFixture(t, func(_ context.Context, p string) (string, error) {
		seenPrompt = p
		return "Photosynthesis happens in the chloroplasts.", nil
	})
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "Where does photosynthesis happen?"})
	require.NoError(t, err)
	require.Equal(t, store.ResultChatReply, res.Kind)
	assert.Contains(t, res.Reply.Text, "chloroplasts")
	assert.Equal(t, []string{"d1"}, res.Reply.SourceDocumentIDs)
	assert.Contains(t, seenPrompt, "chloroplasts")

	got, _ := f.sessions.GetSession(context.Background(), s.ID)
	require.Len(t, got.History, 2)
	assert.Equal(t, store.RoleUser, got.History[0].Role)
	assert.Equal(t, "Where does photosynthesis happen?", got.History[0].Text)
	assert.Equal(t, store.RoleAssistant, got.History[1].Role)
	assert.Equal(t, res.Reply.Text, got.History[1].Text)

	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, s.ID, f.publisher.events[0].SessionID)
	assert.Equal(t, got.History[1].ID, f.publisher.events[0].Turn.ID)
}

func TestQuizDropsInvalidItems(t *testing.T) {
	f := newFixture(t, answer(`Here is the quiz: {"title": "Photosynthesis", "questions": [
  {"question": "Q1", "options": ["a","b","c","d"], "correct_index": 0},
  {"question": "Q2", "options": ["a","b","c"], "correct_index": 0},
  {"question": "Q3", "options": ["a","b","c","d"], "correct_index": 1},
  {"question": "Q4", "options": ["a","b","c","d"], "correct_index": 2},
  {"question": "Q5", "options": ["a","b","c","d"], "correct_index": 3}
]}`))
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{
		SessionID: s.ID,
		Owner:     "u1",
		Text:      "quiz me",
		Mode:      store.ModeQuiz,
		Quiz:      prompt.QuizOptions{NumQuestions: 5},
	})
	require.NoError(t, err)
	require.Equal(t, store.ResultQuiz, res.Kind)
	assert.Len(t, res.Quiz.Items, 4)

	got, _ := f.sessions.GetSession(context.Background(), s.ID)
	assert.Equal(t, store.ModeChat, got.Mode)
	last := got.History[len(got.History)-1]
	assert.Equal(t, store.KindQuiz, last.Kind)
	require.NotNil(t, last.Quiz)
	assert.Len(t, last.Quiz.Items, 4)
}

func TestStudyPlanRenumbersDays(t *testing.T) {
	f := newFixture(t, answer(`{"title": "Week", "days": [
  {"day": 1, "sessions": [{"time": "09:00", "topic": "Light reactions"}]},
  {"day": 1, "sessions": [{"time": "09:00", "topic": "Calvin cycle"}]},
  {"day": 3, "sessions": [{"time": "09:00", "topic": "Review"}]}
]}`))
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{
		SessionID: s.ID,
		Owner:     "u1",
		Text:      "plan my week",
		Mode:      store.ModeStudyPlan,
		Plan:      prompt.PlanOptions{Days: 3},
	})
	require.NoError(t, err)
	require.Equal(t, store.ResultStudyPlan, res.Kind)
	require.Len(t, res.Plan.Days, 3)
	for i, d := range res.Plan.Days {
		assert.Equal(t, i+1, d.Day)
	}
	assert.Equal(t, "Calvin cycle", res.Plan.Days[1].Sessions[0].Topic)
}

func TestProviderTimeoutBecomesUpstreamUnavailable(t *testing.T) {
	f := newFixtureWithAttemptTimeout(t, 50*time.Millisecond, func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "hello?"})
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.Equal(t, store.FailureUpstreamUnavailable, res.Failure.Kind)
	assert.Equal(t, int32(2), f.provider.calls.Load(), "one retry after the first timeout")

	got, _ := f.sessions.GetSession(context.Background(), s.ID)
	require.Len(t, got.History, 2)
	assert.Equal(t, "hello?", got.History[0].Text)
	assert.Equal(t, store.KindFailure, got.History[1].Kind)
	assert.Equal(t, response.MsgUpstreamFailed, got.History[1].Text)
	assert.Zero(t, f.publisher.count())
}

func TestNoContextSkipsProvider(t *testing.T) {
	tests := []struct {
		name  string
		scope []string
	}{
		{"empty scope", nil},
		{"only blank documents", []string{"d2"}},
		{"only unknown documents", []string{"nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, answer("should not be called"))
			s := f.newSession(t, tt.scope...)

			res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "explain"})
			require.NoError(t, err)
			require.True(t, res.IsFailure())
			assert.Equal(t, store.FailureNoContext, res.Failure.Kind)
			assert.Zero(t, f.provider.calls.Load())

			got, _ := f.sessions.GetSession(context.Background(), s.ID)
			require.Len(t, got.History, 2)
			assert.Equal(t, store.FailureNoContext, got.History[1].FailureKind)
		})
	}
}

func TestMalformedQuizFails(t *testing.T) {
	f := newFixture(t, answer("I'd rather not."))
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "quiz", Mode: store.ModeQuiz})
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.Equal(t, store.FailureMalformedOutput, res.Failure.Kind)

	got, _ := f.sessions.GetSession(context.Background(), s.ID)
	assert.Equal(t, store.ModeChat, got.Mode)
}

func TestBlankChatReplyIsNoAnswer(t *testing.T) {
	for _, blank := range []string{"", " \n\t"} {
		f := newFixture(t, answer(blank))
		s := f.newSession(t, "d1")

		res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "explain osmosis"})
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.Equal(t, store.FailureMalformedOutput, res.Failure.Kind)
		assert.Equal(t, response.MsgNoAnswer, res.Failure.Message)
		assert.Equal(t, int32(1), f.provider.calls.Load())
		assert.Zero(t, f.publisher.count())
	}
}

func TestDocumentIDsReplaceScope(t *testing.T) {
	f := newFixture(t, answer("ok"))
	s := f.newSession(t)

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "hi", DocumentIDs: []string{"d1"}})
	require.NoError(t, err)
	assert.Equal(t, store.ResultChatReply, res.Kind)

	got, _ := f.sessions.GetSession(context.Background(), s.ID)
	assert.Equal(t, []string{"d1"}, got.DocumentScope)
}

func TestCallerErrors(t *testing.T) {
	f := newFixture(t, answer("ok"))
	s := f.newSession(t, "d1")
	ctx := context.Background()

	_, err := f.orch.PostMessage(ctx, PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "   "})
	assert.ErrorIs(t, err, store.ErrEmptyMessage)

	_, err = f.orch.PostMessage(ctx, PostMessageInput{SessionID: "missing", Owner: "u1", Text: "hi"})
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	_, err = f.orch.PostMessage(ctx, PostMessageInput{SessionID: s.ID, Owner: "intruder", Text: "hi"})
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	_, err = f.orch.PostMessage(ctx, PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "hi", Mode: store.Mode("essay")})
	assert.ErrorIs(t, err, store.ErrInvalidMode)

	got, _ := f.sessions.GetSession(ctx, s.ID)
	assert.Empty(t, got.History)
}

func TestConcurrentPostOnSameSession(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	f := newFixture(t, func(context.Context, string) (string, error) {
		once.Do(func() { close(started) })
		<-unblock
		return "done", nil
	})
	s := f.newSession(t, "d1")
	other := f.newSession(t, "d1")

	type outcome struct {
		res *store.GenerationResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "first"})
		first <- outcome{res, err}
	}()

	<-started
	_, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "second"})
	assert.ErrorIs(t, err, store.ErrSessionBusy)

	// another session is not blocked by the busy one
	otherDone := make(chan error, 1)
	go func() {
		_, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: other.ID, Owner: "u1", Text: "other"})
		otherDone <- err
	}()

	close(unblock)
	out := <-first
	require.NoError(t, out.err)
	assert.Equal(t, store.ResultChatReply, out.res.Kind)
	require.NoError(t, <-otherDone)

	got, _ := f.sessions.GetSession(context.Background(), s.ID)
	require.Len(t, got.History, 2)
	assert.Equal(t, "first", got.History[0].Text)

	_, err = f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "third"})
	assert.NoError(t, err, "released after completion")
}

func TestCallerCancellationDoesNotAbortTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, func(genCtx context.Context, _ string) (string, error) {
		cancel()
		time.Sleep(5 * time.Millisecond)
		if genCtx.Err() != nil {
			return "", genCtx.Err()
		}
		return "finished anyway", nil
	})
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(ctx, PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, store.ResultChatReply, res.Kind)
	assert.Equal(t, "finished anyway", res.Reply.Text)
}

func TestPanicBecomesUnknownFailure(t *testing.T) {
	f := newFixture(t, answer("ok"))
	s := f.newSession(t, "d1")
	f.orch.documents = panickingDocuments{}

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "hi"})
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.Equal(t, store.FailureUnknown, res.Failure.Kind)
	assert.Equal(t, response.FallbackMessage, res.Failure.Message)

	_, err = f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "again"})
	assert.NoError(t, err, "session released after panic")
}

func TestDocumentStoreErrorIsUnknownFailure(t *testing.T) {
	f := newFixture(t, answer("ok"))
	f.docs.err = errors.New("connection refused")
	s := f.newSession(t, "d1")

	res, err := f.orch.PostMessage(context.Background(), PostMessageInput{SessionID: s.ID, Owner: "u1", Text: "hi"})
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.Equal(t, store.FailureUnknown, res.Failure.Kind)
	assert.NotContains(t, res.Failure.Message, "connection refused")
}

type panickingDocuments struct{}

func (panickingDocuments) FetchText(context.Context, []string) (*store.FetchResult, error) {
	panic("boom")
}
