package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

type ConversationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, convs []*types.Conversation) ([]*types.Conversation, error)
	GetByID(ctx context.Context, tx *gorm.DB, convID uuid.UUID) (*types.Conversation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error)
	UpdateTitle(ctx context.Context, tx *gorm.DB, convID uuid.UUID, title string) error
	Touch(ctx context.Context, tx *gorm.DB, convID uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, convID uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	repoLog := baseLog.With("repo", "ConversationRepo")
	return &conversationRepo{db: db, log: repoLog}
}

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, convs []*types.Conversation) ([]*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	if len(convs) == 0 {
		return []*types.Conversation{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&convs).Error; err != nil {
		return nil, err
	}

	return convs, nil
}

func (cr *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, convID uuid.UUID) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Conversation

	if err := transaction.WithContext(ctx).
		Where("id = ?", convID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *conversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Conversation

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *conversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, convID uuid.UUID, title string) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", convID).
		Update("title", title).Error
}

// Touch bumps updated_at so the conversation list sorts by recent activity.
func (cr *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, convID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", convID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (cr *conversationRepo) Delete(ctx context.Context, tx *gorm.DB, convID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", convID).
		Delete(&types.Conversation{}).Error
}
