package history

import (
	"context"
	"fmt"

	"ai-study-portal-be/internal/repository/specification"
	"ai-study-portal-be/internal/repository/unitofwork"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
)

// Archive keeps sessions and their turns in postgres so they outlive the
// in-memory window and process restarts.
type Archive struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewArchive(uowFactory unitofwork.RepositoryFactory) *Archive {
	return &Archive{uowFactory: uowFactory}
}

func (a *Archive) SaveSession(ctx context.Context, s *store.Session) error {
	uow := a.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ChatSessionRepository().Save(ctx, s); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (a *Archive) AppendTurn(ctx context.Context, sessionID string, seq int, turn store.Turn) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	uow := a.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ChatTurnRepository().Create(ctx, id, seq, turn); err != nil {
		return fmt.Errorf("append turn %d to %s: %w", seq, sessionID, err)
	}
	return nil
}

// LoadSession returns nil, nil for unknown or malformed ids
func (a *Archive) LoadSession(ctx context.Context, sessionID string) (*store.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, nil
	}
	uow := a.uowFactory.NewUnitOfWork(ctx)

	s, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if s == nil {
		return nil, nil
	}

	turns, err := uow.ChatTurnRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: id},
		specification.OrderBy{Field: "seq"},
	)
	if err != nil {
		return nil, fmt.Errorf("load turns of %s: %w", sessionID, err)
	}
	s.History = turns
	return s, nil
}

func (a *Archive) DeleteSession(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}

	uow := a.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.ChatTurnRepository().DeleteBySessionID(ctx, id); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, id); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
