package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/pkg/metrics"
	"ai-study-portal-be/pkg/llm"
	"ai-study-portal-be/pkg/rag/prompt"
	"ai-study-portal-be/pkg/rag/response"
	"ai-study-portal-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTimeout = 2 * time.Minute

var tracer = otel.Tracer("ai-study-portal-be/orchestrator")

// SessionStore is the subset of the session manager the orchestrator drives
type SessionStore interface {
	CreateSession(ctx context.Context, owner string) (*store.Session, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	SetMode(ctx context.Context, id string, mode store.Mode) error
	SetDocumentScope(ctx context.Context, id string, ids []string) error
	AppendTurn(ctx context.Context, id string, turn store.Turn) (store.Turn, error)
	Acquire(ctx context.Context, id string) (func(), error)
}

// DocumentStore resolves document text. It is only ever read.
type DocumentStore interface {
	FetchText(ctx context.Context, ids []string) (*store.FetchResult, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error)
}

// Publisher receives completed turns for real-time delivery
type Publisher interface {
	PublishTurn(ctx context.Context, evt store.TurnEvent) error
}

type Config struct {
	Timeout time.Duration
}

// PostMessageInput is one user turn. Empty Mode keeps the session's mode
// and nil DocumentIDs keeps its scope.
type PostMessageInput struct {
	SessionID   string
	Owner       string
	Text        string
	DocumentIDs []string
	Mode        store.Mode
	Quiz        prompt.QuizOptions
	Plan        prompt.PlanOptions
}

type Orchestrator struct {
	sessions    SessionStore
	documents   DocumentStore
	composer    *prompt.Composer
	generator   Generator
	interpreter *response.Interpreter
	publisher   Publisher
	logger      logger.ILogger
	metrics     *metrics.Metrics
	cfg         Config
	now         func() time.Time
}

// NewOrchestrator wires the pipeline. publisher, log and m may be nil.
func NewOrchestrator(
	sessions SessionStore,
	documents DocumentStore,
	composer *prompt.Composer,
	generator Generator,
	interpreter *response.Interpreter,
	publisher Publisher,
	log logger.ILogger,
	m *metrics.Metrics,
	cfg Config,
) *Orchestrator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if interpreter == nil {
		interpreter = response.NewInterpreter(log)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Orchestrator{
		sessions:    sessions,
		documents:   documents,
		composer:    composer,
		generator:   generator,
		interpreter: interpreter,
		publisher:   publisher,
		logger:      log,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (o *Orchestrator) CreateSession(ctx context.Context, owner string) (*store.Session, error) {
	return o.sessions.CreateSession(ctx, owner)
}

// PostMessage runs one turn to completion. Returned errors are caller
// errors and leave history untouched; every other outcome, failures
// included, is a result with a matching assistant turn in history.
func (o *Orchestrator) PostMessage(ctx context.Context, in PostMessageInput) (*store.GenerationResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, store.ErrEmptyMessage
	}
	if in.Mode != "" && !in.Mode.Valid() {
		return nil, store.ErrInvalidMode
	}

	release, err := o.sessions.Acquire(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot, err := o.sessions.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if !snapshot.OwnedBy(in.Owner) {
		return nil, store.ErrSessionNotFound
	}

	// the turn finishes even if the caller goes away
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.Timeout)
	defer cancel()

	if in.Mode != "" {
		if err := o.sessions.SetMode(runCtx, in.SessionID, in.Mode); err != nil {
			return nil, err
		}
	}
	if in.DocumentIDs != nil {
		if err := o.sessions.SetDocumentScope(runCtx, in.SessionID, in.DocumentIDs); err != nil {
			return nil, err
		}
	}
	if snapshot, err = o.sessions.GetSession(runCtx, in.SessionID); err != nil {
		return nil, err
	}

	if _, err := o.sessions.AppendTurn(runCtx, in.SessionID, store.Turn{Role: store.RoleUser, Text: text}); err != nil {
		return nil, err
	}

	return o.run(runCtx, snapshot, text, in), nil
}

// run drives scope resolution through interpretation. snapshot is the
// session as it was before the user turn was appended.
func (o *Orchestrator) run(ctx context.Context, snapshot *store.Session, text string, in PostMessageInput) (result *store.GenerationResult) {
	start := o.now()
	mode := snapshot.Mode

	ctx, span := tracer.Start(ctx, "orchestrator.PostMessage")
	span.SetAttributes(
		attribute.String("session.id", snapshot.ID),
		attribute.String("session.mode", string(mode)),
	)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Orchestrator", "Recovered from panic", map[string]interface{}{
				"session_id": snapshot.ID,
				"panic":      fmt.Sprint(r),
				"stack":      string(debug.Stack()),
			})
			result = o.fail(ctx, snapshot.ID, mode, store.FailureUnknown, response.FallbackMessage)
		}

		span.SetAttributes(attribute.String("result.kind", string(result.Kind)))
		if result.IsFailure() {
			span.SetStatus(codes.Error, string(result.Failure.Kind))
		}
		span.End()
		o.metrics.ObserveTurn(string(mode), string(result.Kind), o.now().Sub(start))
	}()

	docs, err := o.resolveScope(ctx, snapshot)
	if err != nil {
		o.logger.Error("Orchestrator", "Document store unavailable", map[string]interface{}{
			"session_id": snapshot.ID,
			"error":      err.Error(),
		})
		return o.fail(ctx, snapshot.ID, mode, store.FailureUnknown, response.FallbackMessage)
	}

	quizOpts := in.Quiz.Normalize()
	planOpts := in.Plan.Normalize()
	if planOpts.StartDate.IsZero() {
		planOpts.StartDate = o.now()
	}

	req := o.composer.Compose(prompt.Input{
		Mode:      mode,
		Message:   text,
		History:   snapshot.History,
		Documents: docs,
		Quiz:      quizOpts,
		Plan:      planOpts,
	})
	if req.NoContext {
		o.logger.Info("Orchestrator", "No document text in scope", map[string]interface{}{
			"session_id": snapshot.ID,
			"scope":      snapshot.DocumentScope,
		})
		return o.fail(ctx, snapshot.ID, mode, store.FailureNoContext, response.MsgNoContext)
	}

	raw, err := o.generate(ctx, req)
	if err != nil {
		details := map[string]interface{}{"session_id": snapshot.ID, "error": err.Error()}
		var upstream *llm.UpstreamError
		if errors.As(err, &upstream) {
			details["provider"] = upstream.Provider
			details["status"] = upstream.StatusCode
			details["retryable"] = upstream.Retryable
		}
		o.logger.Warn("Orchestrator", "Generation failed", details)
		return o.fail(ctx, snapshot.ID, mode, store.FailureUpstreamUnavailable, response.MsgUpstreamFailed)
	}

	result = o.interpreter.Interpret(mode, raw, response.Expectation{
		SourceDocumentIDs: req.SourceIDs(),
		QuizItems:         quizOpts.NumQuestions,
		Difficulty:        quizOpts.Difficulty,
		PlanDays:          planOpts.Days,
	})
	if result.IsFailure() {
		return o.fail(ctx, snapshot.ID, mode, result.Failure.Kind, result.Failure.Message)
	}

	turn, err := o.sessions.AppendTurn(ctx, snapshot.ID, assistantTurn(result))
	if err != nil {
		o.logger.Warn("Orchestrator", "Failed to record assistant turn", map[string]interface{}{
			"session_id": snapshot.ID,
			"error":      err.Error(),
		})
		return result
	}

	o.publish(ctx, store.TurnEvent{SessionID: snapshot.ID, Owner: snapshot.Owner, Turn: turn, Result: result})
	o.logger.Info("Orchestrator", "Turn completed", map[string]interface{}{
		"session_id":  snapshot.ID,
		"mode":        mode,
		"result":      result.Kind,
		"duration_ms": o.now().Sub(start).Milliseconds(),
	})
	return result
}

func (o *Orchestrator) resolveScope(ctx context.Context, s *store.Session) ([]store.Document, error) {
	if len(s.DocumentScope) == 0 {
		return nil, nil
	}
	res, err := o.documents.FetchText(ctx, s.DocumentScope)
	if err != nil {
		return nil, err
	}
	if len(res.Missing) > 0 {
		o.logger.Warn("Orchestrator", "Some scoped documents could not be resolved", map[string]interface{}{
			"session_id": s.ID,
			"missing":    res.Missing,
		})
	}
	return res.Ordered(s.DocumentScope), nil
}

func (o *Orchestrator) generate(ctx context.Context, req *store.GenerationRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.generate")
	defer span.End()

	opts := []llm.Option{llm.WithTemperature(0.3)}
	if req.Mode == store.ModeQuiz || req.Mode == store.ModeStudyPlan {
		opts = []llm.Option{llm.WithTemperature(0.2), llm.WithJSON()}
	}

	raw, err := o.generator.Generate(ctx, req.Prompt, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
	}
	return raw, err
}

// fail records the apology turn and returns the failure result. Failed
// turns are not published.
func (o *Orchestrator) fail(ctx context.Context, sessionID string, mode store.Mode, kind store.FailureKind, message string) *store.GenerationResult {
	turn := store.Turn{
		Role:        store.RoleAssistant,
		Kind:        store.KindFailure,
		Text:        response.ApologyText(kind, mode),
		FailureKind: kind,
	}
	if _, err := o.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
		o.logger.Warn("Orchestrator", "Failed to record apology turn", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	return store.NewFailureResult(kind, message)
}

func (o *Orchestrator) publish(ctx context.Context, evt store.TurnEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishTurn(ctx, evt); err != nil {
		o.logger.Warn("Orchestrator", "Failed to publish turn", map[string]interface{}{
			"session_id": evt.SessionID,
			"error":      err.Error(),
		})
	}
}

func assistantTurn(result *store.GenerationResult) store.Turn {
	turn := store.Turn{Role: store.RoleAssistant}
	switch result.Kind {
	case store.ResultQuiz:
		turn.Kind = store.KindQuiz
		turn.Quiz = result.Quiz
		turn.Text = fmt.Sprintf("Here is your quiz \"%s\" with %d questions.", result.Quiz.Title, len(result.Quiz.Items))
	case store.ResultStudyPlan:
		turn.Kind = store.KindStudyPlan
		turn.StudyPlan = result.Plan
		turn.Text = fmt.Sprintf("Here is your study plan \"%s\" covering %d days.", result.Plan.Title, result.Plan.TotalDays)
	default:
		turn.Text = result.Reply.Text
	}
	return turn
}
