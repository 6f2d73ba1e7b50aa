package contract

import (
	"context"

	"ai-study-portal-be/internal/repository/specification"
	"ai-study-portal-be/pkg/store"
)

type DocumentRepository interface {
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*store.Document, error)
}
