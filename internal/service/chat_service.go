package service

import (
	"context"
	"errors"

	"ai-study-portal-be/internal/dto"
	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/pkg/rag/orchestrator"
	"ai-study-portal-be/pkg/rag/prompt"
	"ai-study-portal-be/pkg/store"
)

const recentSessionsLimit = 20

// IChatService is the HTTP-facing surface of the study chat
type IChatService interface {
	CreateSession(ctx context.Context, owner string, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, owner, sessionId string) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context, owner string) ([]*dto.SessionSummaryResponse, error)
	UpdateDocuments(ctx context.Context, owner, sessionId string, request *dto.UpdateDocumentsRequest) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, owner, sessionId string) error
	SendMessage(ctx context.Context, owner string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	CanWatch(ctx context.Context, owner, sessionId string) bool
}

// ChatOrchestrator runs turns
type ChatOrchestrator interface {
	CreateSession(ctx context.Context, owner string) (*store.Session, error)
	PostMessage(ctx context.Context, in orchestrator.PostMessageInput) (*store.GenerationResult, error)
}

// ChatSessions is the read and housekeeping side of the session manager
type ChatSessions interface {
	GetSession(ctx context.Context, id string) (*store.Session, error)
	SetDocumentScope(ctx context.Context, id string, ids []string) error
	DeleteSession(ctx context.Context, id string) error
}

type chatService struct {
	orchestrator ChatOrchestrator
	sessions     ChatSessions
	activity     IActivityService
	logger       logger.ILogger
}

// NewChatService wires the chat use cases. activity may be nil, in which
// case ListSessions always returns an empty list.
func NewChatService(orch ChatOrchestrator, sessions ChatSessions, activity IActivityService, log logger.ILogger) IChatService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &chatService{
		orchestrator: orch,
		sessions:     sessions,
		activity:     activity,
		logger:       log,
	}
}

func (s *chatService) CreateSession(ctx context.Context, owner string, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	session, err := s.orchestrator.CreateSession(ctx, owner)
	if err != nil {
		return nil, err
	}

	if request != nil && len(request.DocumentIds) > 0 {
		if err := s.sessions.SetDocumentScope(ctx, session.ID, request.DocumentIds); err != nil {
			return nil, err
		}
	}

	s.recordActivity(ctx, session)

	return &dto.CreateSessionResponse{SessionId: session.ID}, nil
}

func (s *chatService) GetSession(ctx context.Context, owner, sessionId string) (*dto.SessionResponse, error) {
	session, err := s.ownedSession(ctx, owner, sessionId)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

// ListSessions returns the caller's recently active sessions. Anonymous
// callers have no list since anonymous sessions are not theirs alone.
func (s *chatService) ListSessions(ctx context.Context, owner string) ([]*dto.SessionSummaryResponse, error) {
	res := make([]*dto.SessionSummaryResponse, 0)
	if s.activity == nil || owner == "" || owner == store.AnonymousOwner {
		return res, nil
	}

	ids, err := s.activity.RecentSessions(ctx, owner, recentSessionsLimit)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		session, err := s.ownedSession(ctx, owner, id)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				// expired or deleted elsewhere
				if err := s.activity.Forget(ctx, owner, id); err != nil {
					s.logger.Warn("ChatService", "Failed to drop vanished session from activity", map[string]interface{}{
						"session_id": id,
						"error":      err.Error(),
					})
				}
				continue
			}
			return nil, err
		}
		res = append(res, toSessionSummary(session))
	}

	return res, nil
}

func (s *chatService) UpdateDocuments(ctx context.Context, owner, sessionId string, request *dto.UpdateDocumentsRequest) (*dto.SessionResponse, error) {
	if _, err := s.ownedSession(ctx, owner, sessionId); err != nil {
		return nil, err
	}

	ids := request.DocumentIds
	if ids == nil {
		ids = []string{}
	}
	if err := s.sessions.SetDocumentScope(ctx, sessionId, ids); err != nil {
		return nil, err
	}

	return s.GetSession(ctx, owner, sessionId)
}

func (s *chatService) DeleteSession(ctx context.Context, owner, sessionId string) error {
	session, err := s.ownedSession(ctx, owner, sessionId)
	if err != nil {
		return err
	}

	if err := s.sessions.DeleteSession(ctx, sessionId); err != nil {
		return err
	}

	if s.activity != nil {
		if err := s.activity.Forget(ctx, session.Owner, sessionId); err != nil {
			s.logger.Warn("ChatService", "Failed to drop session from activity", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (s *chatService) SendMessage(ctx context.Context, owner string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	result, err := s.orchestrator.PostMessage(ctx, orchestrator.PostMessageInput{
		SessionID:   request.SessionId,
		Owner:       owner,
		Text:        request.Message,
		DocumentIDs: request.DocumentIds,
		Mode:        store.Mode(request.Mode),
		Quiz:        prompt.QuizOptions{NumQuestions: request.NumQuestions, Difficulty: request.Difficulty},
		Plan:        prompt.PlanOptions{Days: request.Days},
	})
	if err != nil {
		return nil, err
	}

	return &dto.SendMessageResponse{
		SessionId: request.SessionId,
		Result:    result,
	}, nil
}

// CanWatch reports whether owner may subscribe to the session's turns
func (s *chatService) CanWatch(ctx context.Context, owner, sessionId string) bool {
	_, err := s.ownedSession(ctx, owner, sessionId)
	return err == nil
}

func (s *chatService) ownedSession(ctx context.Context, owner, sessionId string) (*store.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !session.OwnedBy(owner) {
		return nil, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *chatService) recordActivity(ctx context.Context, session *store.Session) {
	if s.activity == nil || session.Owner == store.AnonymousOwner {
		return
	}
	if err := s.activity.Record(ctx, session.Owner, session.ID, session.CreatedAt); err != nil {
		s.logger.Warn("ChatService", "Failed to record session activity", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
}

func toSessionResponse(session *store.Session) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:          session.ID,
		Mode:        string(session.Mode),
		DocumentIds: session.DocumentScope,
		History:     session.History,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

func toSessionSummary(session *store.Session) *dto.SessionSummaryResponse {
	summary := &dto.SessionSummaryResponse{
		Id:          session.ID,
		Mode:        string(session.Mode),
		DocumentIds: session.DocumentScope,
		TurnCount:   len(session.History),
		UpdatedAt:   session.UpdatedAt,
	}
	if n := len(session.History); n > 0 {
		summary.LastMessage = session.History[n-1].Text
	}
	return summary
}
