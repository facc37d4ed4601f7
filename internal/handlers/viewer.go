package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/citations"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/services"
	"github.com/yungbote/pdfchat-backend/internal/textlayer"
)

type ViewerHandler struct {
	log           *logger.Logger
	viewerService services.ViewerService
}

func NewViewerHandler(log *logger.Logger, viewerService services.ViewerService) *ViewerHandler {
	return &ViewerHandler{
		log:           log.With("handler", "ViewerHandler"),
		viewerService: viewerService,
	}
}

type openViewerRequest struct {
	DocumentID uuid.UUID `json:"document_id" binding:"required"`
}

func (h *ViewerHandler) Open(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req openViewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.viewerService.Open(c.Request.Context(), userID, req.DocumentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("Open viewer failed", "error", err, "document_id", req.DocumentID)
		RespondError(c, http.StatusInternalServerError, "open_viewer_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"viewer_id":   session.ID,
		"document_id": session.DocumentID,
	})
}

func (h *ViewerHandler) viewerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_viewer_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ViewerHandler) CitationClick(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	viewerID, ok := h.viewerID(c)
	if !ok {
		return
	}
	var cit citations.Citation
	if err := c.ShouldBindJSON(&cit); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_citation", err)
		return
	}
	if err := h.viewerService.ClickCitation(viewerID, userID, cit); err != nil {
		RespondError(c, http.StatusNotFound, "viewer_not_found", err)
		return
	}
	RespondOK(c, gin.H{"accepted": true})
}

type pageReadyRequest struct {
	Page      int                  `json:"page" binding:"required,min=1"`
	Fragments []textlayer.Fragment `json:"fragments"`
}

func (h *ViewerHandler) PageReady(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	viewerID, ok := h.viewerID(c)
	if !ok {
		return
	}
	var req pageReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.viewerService.PageReady(viewerID, userID, req.Page, req.Fragments); err != nil {
		RespondError(c, http.StatusNotFound, "viewer_not_found", err)
		return
	}
	RespondOK(c, gin.H{"accepted": true})
}

type pageChangeRequest struct {
	Page int `json:"page" binding:"required,min=1"`
}

func (h *ViewerHandler) PageChange(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	viewerID, ok := h.viewerID(c)
	if !ok {
		return
	}
	var req pageChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.viewerService.PageChange(viewerID, userID, req.Page); err != nil {
		RespondError(c, http.StatusNotFound, "viewer_not_found", err)
		return
	}
	RespondOK(c, gin.H{"accepted": true})
}

func (h *ViewerHandler) Close(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	viewerID, ok := h.viewerID(c)
	if !ok {
		return
	}
	if err := h.viewerService.Close(viewerID, userID); err != nil {
		RespondError(c, http.StatusNotFound, "viewer_not_found", err)
		return
	}
	RespondOK(c, gin.H{"closed": true})
}
