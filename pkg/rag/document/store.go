package document

import (
	"context"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/repository/specification"
	"ai-study-portal-be/internal/repository/unitofwork"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
)

// Store resolves extracted document text by id. Documents without text
// are reported as missing.
type Store struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *TextCache
	logger     logger.ILogger
}

// NewStore creates the document store. cache may be nil.
func NewStore(uowFactory unitofwork.RepositoryFactory, cache *TextCache, log logger.ILogger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{uowFactory: uowFactory, cache: cache, logger: log}
}

func (s *Store) FetchText(ctx context.Context, ids []string) (*store.FetchResult, error) {
	ids = store.NormalizeScope(ids)
	result := &store.FetchResult{Documents: make(map[string]store.Document, len(ids))}
	if len(ids) == 0 {
		return result, nil
	}

	if s.cache != nil {
		cached, err := s.cache.GetMany(ctx, ids)
		if err != nil {
			s.logger.Warn("DocumentStore", "Text cache read failed", map[string]interface{}{"error": err.Error()})
		}
		for id, doc := range cached {
			result.Documents[id] = doc
		}
	}

	var lookup []uuid.UUID
	for _, id := range ids {
		if _, ok := result.Documents[id]; ok {
			continue
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			result.Missing = append(result.Missing, id)
			continue
		}
		lookup = append(lookup, uid)
	}
	if len(lookup) == 0 {
		return result, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx,
		specification.ByIDs{IDs: lookup},
		specification.HasExtractedText{},
	)
	if err != nil {
		return nil, err
	}

	loaded := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		result.Documents[d.ID] = *d
		loaded = append(loaded, *d)
	}
	for _, uid := range lookup {
		if _, ok := result.Documents[uid.String()]; !ok {
			result.Missing = append(result.Missing, uid.String())
		}
	}

	if s.cache != nil && len(loaded) > 0 {
		if err := s.cache.SetMany(ctx, loaded); err != nil {
			s.logger.Warn("DocumentStore", "Text cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return result, nil
}
