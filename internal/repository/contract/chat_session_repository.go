package contract

import (
	"context"

	"ai-study-portal-be/internal/repository/specification"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	// Save inserts the session or updates owner, scope and mode
	Save(ctx context.Context, session *store.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*store.Session, error)
}
