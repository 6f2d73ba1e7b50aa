package contract

import (
	"context"

	"ai-study-portal-be/internal/repository/specification"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
)

type ChatTurnRepository interface {
	// Create is idempotent on (session, seq)
	Create(ctx context.Context, sessionID uuid.UUID, seq int, turn store.Turn) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]store.Turn, error)
	DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error
}
