package mapper

import (
	"ai-study-portal-be/internal/model"
	"ai-study-portal-be/pkg/store"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToStore(d *model.Document) *store.Document {
	if d == nil {
		return nil
	}
	return &store.Document{
		ID:    d.Id.String(),
		Title: d.Title,
		Text:  d.ExtractedText,
	}
}

func (m *DocumentMapper) ToStores(docs []*model.Document) []*store.Document {
	out := make([]*store.Document, len(docs))
	for i, d := range docs {
		out[i] = m.ToStore(d)
	}
	return out
}
