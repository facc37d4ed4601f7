package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/clients/ragflow"
	"github.com/yungbote/pdfchat-backend/internal/clients/redis"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/sse"
	"github.com/yungbote/pdfchat-backend/internal/types"
	"github.com/yungbote/pdfchat-backend/internal/utils"
)

const (
	statusPollAttempts = 60
	statusPollInterval = 10 * time.Second
)

// ErrDocumentInUse blocks deletion while a conversation still references the
// document.
var ErrDocumentInUse = fmt.Errorf("document is referenced by a conversation")

type DocumentService interface {
	Upload(ctx context.Context, userID uuid.UUID, originalFilename string, data []byte) (*types.Document, error)
	Get(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (*types.Document, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Document, error)
	GetStatus(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (string, error)
	RefreshStatus(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (string, error)
	FilePath(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (string, error)
	Delete(ctx context.Context, userID uuid.UUID, docID uuid.UUID) error
	StorageDir() string
	Wait() error
}

type documentService struct {
	db          *gorm.DB
	log         *logger.Logger
	docRepo     repos.DocumentRepo
	convRepo    repos.ConversationRepo
	engine      ragflow.Client
	statusCache redis.StatusCache
	hub         *sse.SSEHub
	storageDir  string
	maxFileSize int64

	// pollers tracks background status polling so shutdown can wait for it.
	pollers *errgroup.Group
}

func NewDocumentService(db *gorm.DB, log *logger.Logger, docRepo repos.DocumentRepo, convRepo repos.ConversationRepo, engine ragflow.Client, statusCache redis.StatusCache, hub *sse.SSEHub) (DocumentService, error) {
	serviceLog := log.With("service", "DocumentService")

	storageDir := utils.GetEnv("UPLOAD_DIR", "./uploads", log)
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating upload dir: %w", err)
	}
	maxFileSize := utils.GetEnvAsInt64("MAX_FILE_SIZE", 50*1024*1024, log)

	pollers := &errgroup.Group{}
	pollers.SetLimit(8)
	return &documentService{
		db:          db,
		log:         serviceLog,
		docRepo:     docRepo,
		convRepo:    convRepo,
		engine:      engine,
		statusCache: statusCache,
		hub:         hub,
		storageDir:  storageDir,
		maxFileSize: maxFileSize,
		pollers:     pollers,
	}, nil
}

func (ds *documentService) StorageDir() string { return ds.storageDir }

func (ds *documentService) Upload(ctx context.Context, userID uuid.UUID, originalFilename string, data []byte) (*types.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if int64(len(data)) > ds.maxFileSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", ds.maxFileSize)
	}

	doc := &types.Document{
		UserID:           userID,
		Filename:         originalFilename,
		OriginalFilename: originalFilename,
		FileSize:         int64(len(data)),
		ProcessingStatus: types.DocumentStatusPending,
		UploadDate:       time.Now().UTC(),
	}
	if _, err := ds.docRepo.Create(ctx, nil, []*types.Document{doc}); err != nil {
		return nil, fmt.Errorf("error creating document record: %w", err)
	}

	if err := os.WriteFile(ds.localPath(doc.ID), data, 0o644); err != nil {
		return nil, fmt.Errorf("error storing file: %w", err)
	}

	engineDocID, err := ds.engine.UploadDocument(ctx, originalFilename, data)
	if err != nil {
		ds.log.Error("Engine upload failed", "document_id", doc.ID, "error", err)
		ds.setStatus(ctx, doc, types.DocumentStatusFailed)
		return nil, fmt.Errorf("error uploading document to engine: %w", err)
	}

	if err := ds.docRepo.UpdateEngineInfo(ctx, nil, doc.ID, engineDocID, 0); err != nil {
		return nil, fmt.Errorf("error saving engine document id: %w", err)
	}
	doc.EngineDocumentID = engineDocID
	ds.setStatus(ctx, doc, types.DocumentStatusProcessing)

	docID := doc.ID
	ds.pollers.Go(func() error {
		ds.pollStatus(docID, engineDocID, userID)
		return nil
	})

	return doc, nil
}

func (ds *documentService) localPath(docID uuid.UUID) string {
	return filepath.Join(ds.storageDir, docID.String()+".pdf")
}

// pollStatus watches engine-side processing until it settles or the attempt
// budget runs out. Runs detached from the upload request's context.
func (ds *documentService) pollStatus(docID uuid.UUID, engineDocID string, userID uuid.UUID) {
	ctx := context.Background()

	for attempt := 0; attempt < statusPollAttempts; attempt++ {
		time.Sleep(statusPollInterval)

		status, err := ds.engine.GetDocumentStatus(ctx, engineDocID)
		if err != nil {
			ds.log.Warn("Document status poll failed", "document_id", docID, "attempt", attempt+1, "error", err)
			continue
		}

		switch status.Status {
		case types.DocumentStatusCompleted:
			if err := ds.docRepo.UpdateEngineInfo(ctx, nil, docID, engineDocID, status.PageCount); err != nil {
				ds.log.Error("Failed to save page count", "document_id", docID, "error", err)
			}
			ds.finishStatus(ctx, docID, userID, types.DocumentStatusCompleted)
			return
		case types.DocumentStatusFailed:
			ds.log.Warn("Engine processing failed", "document_id", docID, "engine_error", status.Error)
			ds.finishStatus(ctx, docID, userID, types.DocumentStatusFailed)
			return
		}
	}

	ds.log.Warn("Document status polling timed out", "document_id", docID)
	ds.finishStatus(ctx, docID, userID, types.DocumentStatusFailed)
}

func (ds *documentService) finishStatus(ctx context.Context, docID uuid.UUID, userID uuid.UUID, status string) {
	if err := ds.docRepo.UpdateStatus(ctx, nil, docID, status); err != nil {
		ds.log.Error("Failed to update document status", "document_id", docID, "error", err)
		return
	}
	if err := ds.statusCache.SetStatus(ctx, docID.String(), status); err != nil {
		ds.log.Warn("Failed to cache document status", "document_id", docID, "error", err)
	}
	ds.hub.Broadcast(sse.SSEMessage{
		Channel: sse.UserDocumentsChannel(userID),
		Event:   sse.SSEEventDocumentStatusChanged,
		Data: map[string]any{
			"document_id": docID,
			"status":      status,
		},
	})
}

func (ds *documentService) setStatus(ctx context.Context, doc *types.Document, status string) {
	doc.ProcessingStatus = status
	if err := ds.docRepo.UpdateStatus(ctx, nil, doc.ID, status); err != nil {
		ds.log.Error("Failed to update document status", "document_id", doc.ID, "error", err)
	}
	if err := ds.statusCache.SetStatus(ctx, doc.ID.String(), status); err != nil {
		ds.log.Warn("Failed to cache document status", "document_id", doc.ID, "error", err)
	}
}

func (ds *documentService) Get(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (*types.Document, error) {
	doc, err := ds.docRepo.GetByID(ctx, nil, docID)
	if err != nil {
		return nil, fmt.Errorf("error fetching document: %w", err)
	}
	if doc.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return doc, nil
}

func (ds *documentService) List(ctx context.Context, userID uuid.UUID) ([]*types.Document, error) {
	docs, err := ds.docRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	return docs, nil
}

func (ds *documentService) GetStatus(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (string, error) {
	if cached, ok, err := ds.statusCache.GetStatus(ctx, docID.String()); err == nil && ok {
		return cached, nil
	}
	doc, err := ds.Get(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	return doc.ProcessingStatus, nil
}

// RefreshStatus asks the engine directly, bypassing cache and poller. Used by
// clients that want an immediate answer for a document stuck in processing.
func (ds *documentService) RefreshStatus(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (string, error) {
	doc, err := ds.Get(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	if doc.EngineDocumentID == "" || doc.ProcessingStatus == types.DocumentStatusCompleted {
		return doc.ProcessingStatus, nil
	}

	status, err := ds.engine.GetDocumentStatus(ctx, doc.EngineDocumentID)
	if err != nil {
		return "", fmt.Errorf("error querying engine status: %w", err)
	}
	switch status.Status {
	case types.DocumentStatusCompleted:
		if err := ds.docRepo.UpdateEngineInfo(ctx, nil, docID, doc.EngineDocumentID, status.PageCount); err != nil {
			ds.log.Error("Failed to save page count", "document_id", docID, "error", err)
		}
		ds.finishStatus(ctx, docID, userID, types.DocumentStatusCompleted)
		return types.DocumentStatusCompleted, nil
	case types.DocumentStatusFailed:
		ds.finishStatus(ctx, docID, userID, types.DocumentStatusFailed)
		return types.DocumentStatusFailed, nil
	}
	return doc.ProcessingStatus, nil
}

func (ds *documentService) FilePath(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (string, error) {
	doc, err := ds.Get(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	path := ds.localPath(doc.ID)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stored file missing: %w", err)
	}
	return path, nil
}

func (ds *documentService) Delete(ctx context.Context, userID uuid.UUID, docID uuid.UUID) error {
	doc, err := ds.Get(ctx, userID, docID)
	if err != nil {
		return err
	}

	referenced, err := ds.isReferenced(ctx, userID, docID)
	if err != nil {
		return err
	}
	if referenced {
		return ErrDocumentInUse
	}

	if doc.EngineDocumentID != "" {
		if err := ds.engine.DeleteDocument(ctx, doc.EngineDocumentID); err != nil {
			// Engine cleanup is best effort; the local record still goes away.
			ds.log.Warn("Engine document delete failed", "document_id", docID, "error", err)
		}
	}
	if err := os.Remove(ds.localPath(docID)); err != nil && !os.IsNotExist(err) {
		ds.log.Warn("Failed to remove stored file", "document_id", docID, "error", err)
	}
	if err := ds.docRepo.Delete(ctx, nil, docID); err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	return nil
}

func (ds *documentService) isReferenced(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (bool, error) {
	convs, err := ds.convRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return false, fmt.Errorf("error checking conversations: %w", err)
	}
	for _, conv := range convs {
		var ids []uuid.UUID
		if err := json.Unmarshal(conv.DocumentIDs, &ids); err != nil {
			continue
		}
		for _, id := range ids {
			if id == docID {
				return true, nil
			}
		}
	}
	return false, nil
}

// Wait blocks until all background pollers finish. Used on shutdown.
func (ds *documentService) Wait() error {
	return ds.pollers.Wait()
}
