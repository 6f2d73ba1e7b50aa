package implementation

import (
	"context"

	"ai-study-portal-be/internal/mapper"
	"ai-study-portal-be/internal/model"
	"ai-study-portal-be/internal/repository/contract"
	"ai-study-portal-be/internal/repository/specification"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatTurnRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatTurnRepository(db *gorm.DB) contract.ChatTurnRepository {
	return &ChatTurnRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatTurnRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatTurnRepositoryImpl) Create(ctx context.Context, sessionID uuid.UUID, seq int, turn store.Turn) error {
	m, err := r.mapper.ChatTurnToModel(sessionID, seq, turn)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_session_id"}, {Name: "seq"}},
		DoNothing: true,
	}).Create(m).Error
}

func (r *ChatTurnRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]store.Turn, error) {
	var models []*model.ChatTurn
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatTurnsToStore(models)
}

func (r *ChatTurnRepositoryImpl) DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", sessionID).Delete(&model.ChatTurn{}).Error
}
