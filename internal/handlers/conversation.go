package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/services"
)

type ConversationHandler struct {
	log         *logger.Logger
	convService services.ConversationService
}

func NewConversationHandler(log *logger.Logger, convService services.ConversationService) *ConversationHandler {
	return &ConversationHandler{
		log:         log.With("handler", "ConversationHandler"),
		convService: convService,
	}
}

type createConversationRequest struct {
	DocumentIDs []uuid.UUID `json:"document_ids" binding:"required,min=1"`
	Title       string      `json:"title"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	conv, err := h.convService.Create(c.Request.Context(), userID, req.DocumentIDs, req.Title)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("Create conversation failed", "error", err, "user_id", userID)
		RespondError(c, http.StatusBadRequest, "create_conversation_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	convs, err := h.convService.List(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("List conversations failed", "error", err, "user_id", userID)
		RespondError(c, http.StatusInternalServerError, "list_conversations_failed", err)
		return
	}
	RespondOK(c, gin.H{"conversations": convs})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	conv, msgs, err := h.convService.Get(c.Request.Context(), userID, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "conversation_not_found", err)
			return
		}
		h.log.Error("Get conversation failed", "error", err, "conversation_id", convID)
		RespondError(c, http.StatusInternalServerError, "get_conversation_failed", err)
		return
	}
	RespondOK(c, gin.H{"conversation": conv, "messages": msgs})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	if err := h.convService.Delete(c.Request.Context(), userID, convID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "conversation_not_found", err)
			return
		}
		h.log.Error("Delete conversation failed", "error", err, "conversation_id", convID)
		RespondError(c, http.StatusInternalServerError, "delete_conversation_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
