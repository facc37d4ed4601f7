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

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
	convService services.ConversationService
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService, convService services.ConversationService) *ChatHandler {
	return &ChatHandler{
		log:         log.With("handler", "ChatHandler"),
		chatService: chatService,
		convService: convService,
	}
}

type sendMessageRequest struct {
	Question string `json:"question" binding:"required"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
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
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), userID, convID, req.Question)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "conversation_not_found", err)
			return
		}
		h.log.Error("SendMessage failed", "error", err, "conversation_id", convID)
		RespondError(c, http.StatusBadGateway, "send_message_failed", err)
		return
	}
	RespondOK(c, gin.H{"message": msg})
}

type quickChatRequest struct {
	Question    string      `json:"question" binding:"required"`
	DocumentIDs []uuid.UUID `json:"document_ids" binding:"required,min=1"`
}

// QuickChat creates a conversation over the given documents and sends the
// first message in one call.
func (h *ChatHandler) QuickChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req quickChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	conv, err := h.convService.Create(c.Request.Context(), userID, req.DocumentIDs, "")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "document_not_found", err)
			return
		}
		h.log.Error("QuickChat create conversation failed", "error", err, "user_id", userID)
		RespondError(c, http.StatusBadRequest, "create_conversation_failed", err)
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), userID, conv.ID, req.Question)
	if err != nil {
		h.log.Error("QuickChat send failed", "error", err, "conversation_id", conv.ID)
		RespondError(c, http.StatusBadGateway, "send_message_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv, "message": msg})
}
