package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/requestdata"
	"github.com/yungbote/pdfchat-backend/internal/services"
)

type DocumentHandler struct {
	log        *logger.Logger
	docService services.DocumentService
}

func NewDocumentHandler(log *logger.Logger, docService services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		log:        log.With("handler", "DocumentHandler"),
		docService: docService,
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		RespondError(c, http.StatusBadRequest, "unsupported_file_type", errors.New("only PDF files are supported"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	doc, err := h.docService.Upload(c.Request.Context(), userID, fileHeader.Filename, data)
	if err != nil {
		h.log.Error("Upload failed", "error", err, "user_id", userID)
		RespondError(c, http.StatusBadGateway, "upload_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	docs, err := h.docService.List(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("List documents failed", "error", err, "user_id", userID)
		RespondError(c, http.StatusInternalServerError, "list_documents_failed", err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	doc, err := h.docService.Get(c.Request.Context(), userID, docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("Get document failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "get_document_failed", err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (h *DocumentHandler) GetStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	status, err := h.docService.GetStatus(c.Request.Context(), userID, docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("Get document status failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "get_status_failed", err)
		return
	}
	RespondOK(c, gin.H{"document_id": docID, "status": status})
}

func (h *DocumentHandler) ServeFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	path, err := h.docService.FilePath(c.Request.Context(), userID, docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("Serve file failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusNotFound, "file_not_found", err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.File(path)
}

type pollStatusRequest struct {
	DocumentID uuid.UUID `json:"document_id" binding:"required"`
}

// PollStatus forces a synchronous status check against the engine.
func (h *DocumentHandler) PollStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req pollStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	status, err := h.docService.RefreshStatus(c.Request.Context(), userID, req.DocumentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("Poll status failed", "error", err, "document_id", req.DocumentID)
		RespondError(c, http.StatusBadGateway, "poll_status_failed", err)
		return
	}
	RespondOK(c, gin.H{"document_id": req.DocumentID, "status": status})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	if err := h.docService.Delete(c.Request.Context(), userID, docID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		if errors.Is(err, services.ErrDocumentInUse) {
			RespondError(c, http.StatusConflict, "document_in_use", err)
			return
		}
		h.log.Error("Delete document failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "delete_document_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
