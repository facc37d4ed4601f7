package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Filename         string         `gorm:"column:filename;not null" json:"filename"`
	OriginalFilename string         `gorm:"column:original_filename;not null" json:"original_filename"`
	FileSize         int64          `gorm:"column:file_size;not null" json:"file_size"`
	ProcessingStatus string         `gorm:"column:processing_status;not null;default:'pending';index" json:"processing_status"`
	EngineDocumentID string         `gorm:"column:engine_document_id;index" json:"engine_document_id"`
	PageCount        int            `gorm:"column:page_count" json:"page_count"`
	DocMetadata      datatypes.JSON `gorm:"column:doc_metadata;type:jsonb" json:"doc_metadata,omitempty"`
	UploadDate       time.Time      `gorm:"not null" json:"upload_date"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
