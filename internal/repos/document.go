package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, docID uuid.UUID) (*types.Document, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, docIDs []uuid.UUID) ([]*types.Document, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, docID uuid.UUID, status string) error
	UpdateEngineInfo(ctx context.Context, tx *gorm.DB, docID uuid.UUID, engineDocID string, pageCount int) error
	Delete(ctx context.Context, tx *gorm.DB, docID uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	repoLog := baseLog.With("repo", "DocumentRepo")
	return &documentRepo{db: db, log: repoLog}
}

func (dr *documentRepo) Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	if len(docs) == 0 {
		return []*types.Document{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&docs).Error; err != nil {
		return nil, err
	}

	return docs, nil
}

func (dr *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, docID uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.Document

	if err := transaction.WithContext(ctx).
		Where("id = ?", docID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *documentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, docIDs []uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var results []*types.Document
	if len(docIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", docIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var results []*types.Document

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("upload_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, docID uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Update("processing_status", status).Error
}

func (dr *documentRepo) UpdateEngineInfo(ctx context.Context, tx *gorm.DB, docID uuid.UUID, engineDocID string, pageCount int) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Updates(map[string]interface{}{
			"engine_document_id": engineDocID,
			"page_count":         pageCount,
		}).Error
}

func (dr *documentRepo) Delete(ctx context.Context, tx *gorm.DB, docID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", docID).
		Delete(&types.Document{}).Error
}
