package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/citations"
	"github.com/yungbote/pdfchat-backend/internal/highlight"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/sse"
	"github.com/yungbote/pdfchat-backend/internal/textlayer"
)

// ViewerSession is one open PDF viewer. The highlight controller inside it is
// the single writer of highlight state for that viewer.
type ViewerSession struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DocumentID uuid.UUID
	Controller *highlight.Controller
}

type ViewerService interface {
	Open(ctx context.Context, userID uuid.UUID, documentID uuid.UUID) (*ViewerSession, error)
	ClickCitation(viewerID uuid.UUID, userID uuid.UUID, cit citations.Citation) error
	PageReady(viewerID uuid.UUID, userID uuid.UUID, page int, fragments []textlayer.Fragment) error
	PageChange(viewerID uuid.UUID, userID uuid.UUID, page int) error
	Close(viewerID uuid.UUID, userID uuid.UUID) error
}

type viewerService struct {
	log     *logger.Logger
	docRepo repos.DocumentRepo
	hub     *sse.SSEHub
	cfg     highlight.Config

	mu      sync.RWMutex
	viewers map[uuid.UUID]*ViewerSession
}

func NewViewerService(log *logger.Logger, docRepo repos.DocumentRepo, hub *sse.SSEHub, cfg highlight.Config) ViewerService {
	serviceLog := log.With("service", "ViewerService")
	return &viewerService{
		log:     serviceLog,
		docRepo: docRepo,
		hub:     hub,
		cfg:     cfg,
		viewers: make(map[uuid.UUID]*ViewerSession),
	}
}

func (vs *viewerService) Open(ctx context.Context, userID uuid.UUID, documentID uuid.UUID) (*ViewerSession, error) {
	doc, err := vs.docRepo.GetByID(ctx, nil, documentID)
	if err != nil {
		return nil, fmt.Errorf("error fetching document: %w", err)
	}
	if doc.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}

	viewerID := uuid.New()
	session := &ViewerSession{
		ID:         viewerID,
		UserID:     userID,
		DocumentID: documentID,
	}
	channel := sse.ViewerChannel(viewerID)
	session.Controller = highlight.NewController(vs.log, vs.cfg, func(e highlight.Event) {
		vs.hub.Broadcast(sse.SSEMessage{
			Channel: channel,
			Event:   sse.SSEEventHighlight,
			Data:    e,
		})
	})

	vs.mu.Lock()
	vs.viewers[viewerID] = session
	vs.mu.Unlock()

	vs.log.Info("Viewer opened", "viewer_id", viewerID, "document_id", documentID)
	return session, nil
}

func (vs *viewerService) get(viewerID uuid.UUID, userID uuid.UUID) (*ViewerSession, error) {
	vs.mu.RLock()
	session, ok := vs.viewers[viewerID]
	vs.mu.RUnlock()
	if !ok || session.UserID != userID {
		return nil, fmt.Errorf("viewer not found")
	}
	return session, nil
}

func (vs *viewerService) ClickCitation(viewerID uuid.UUID, userID uuid.UUID, cit citations.Citation) error {
	session, err := vs.get(viewerID, userID)
	if err != nil {
		return err
	}
	session.Controller.ClickCitation(cit)
	return nil
}

func (vs *viewerService) PageReady(viewerID uuid.UUID, userID uuid.UUID, page int, fragments []textlayer.Fragment) error {
	session, err := vs.get(viewerID, userID)
	if err != nil {
		return err
	}
	session.Controller.PageReady(page, fragments)
	return nil
}

func (vs *viewerService) PageChange(viewerID uuid.UUID, userID uuid.UUID, page int) error {
	session, err := vs.get(viewerID, userID)
	if err != nil {
		return err
	}
	session.Controller.PageChange(page)
	return nil
}

func (vs *viewerService) Close(viewerID uuid.UUID, userID uuid.UUID) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	session, ok := vs.viewers[viewerID]
	if !ok || session.UserID != userID {
		return fmt.Errorf("viewer not found")
	}
	delete(vs.viewers, viewerID)
	vs.log.Info("Viewer closed", "viewer_id", viewerID)
	return nil
}
