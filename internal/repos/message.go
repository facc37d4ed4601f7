package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error)
	ListByConversation(ctx context.Context, tx *gorm.DB, convID uuid.UUID, limit int) ([]*types.Message, error)
	CountByConversation(ctx context.Context, tx *gorm.DB, convID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	repoLog := baseLog.With("repo", "MessageRepo")
	return &messageRepo{db: db, log: repoLog}
}

func (mr *messageRepo) Create(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(msgs) == 0 {
		return []*types.Message{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&msgs).Error; err != nil {
		return nil, err
	}

	return msgs, nil
}

// ListByConversation returns messages oldest-first. A limit of 0 means all.
func (mr *messageRepo) ListByConversation(ctx context.Context, tx *gorm.DB, convID uuid.UUID, limit int) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Message

	query := transaction.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *messageRepo) CountByConversation(ctx context.Context, tx *gorm.DB, convID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var count int64

	if err := transaction.WithContext(ctx).
		Model(&types.Message{}).
		Where("conversation_id = ?", convID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
