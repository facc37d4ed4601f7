package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

type ConversationService interface {
	Create(ctx context.Context, userID uuid.UUID, documentIDs []uuid.UUID, title string) (*types.Conversation, error)
	Get(ctx context.Context, userID uuid.UUID, convID uuid.UUID) (*types.Conversation, []*types.Message, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Conversation, error)
	Delete(ctx context.Context, userID uuid.UUID, convID uuid.UUID) error
	DocumentIDs(conv *types.Conversation) ([]uuid.UUID, error)
}

type conversationService struct {
	db       *gorm.DB
	log      *logger.Logger
	convRepo repos.ConversationRepo
	msgRepo  repos.MessageRepo
	docRepo  repos.DocumentRepo
}

func NewConversationService(db *gorm.DB, log *logger.Logger, convRepo repos.ConversationRepo, msgRepo repos.MessageRepo, docRepo repos.DocumentRepo) ConversationService {
	serviceLog := log.With("service", "ConversationService")
	return &conversationService{
		db:       db,
		log:      serviceLog,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		docRepo:  docRepo,
	}
}

func (cs *conversationService) Create(ctx context.Context, userID uuid.UUID, documentIDs []uuid.UUID, title string) (*types.Conversation, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("conversation needs at least one document")
	}

	docs, err := cs.docRepo.GetByIDs(ctx, nil, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("error fetching documents: %w", err)
	}
	if len(docs) != len(documentIDs) {
		return nil, fmt.Errorf("one or more documents not found")
	}
	for _, d := range docs {
		if d.UserID != userID {
			return nil, gorm.ErrRecordNotFound
		}
		if d.ProcessingStatus != types.DocumentStatusCompleted {
			return nil, fmt.Errorf("document %s has not finished processing", d.ID)
		}
	}

	rawIDs, err := json.Marshal(documentIDs)
	if err != nil {
		return nil, err
	}

	conv := &types.Conversation{
		UserID:      userID,
		Title:       title,
		DocumentIDs: datatypes.JSON(rawIDs),
	}
	if _, err := cs.convRepo.Create(ctx, nil, []*types.Conversation{conv}); err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return conv, nil
}

func (cs *conversationService) Get(ctx context.Context, userID uuid.UUID, convID uuid.UUID) (*types.Conversation, []*types.Message, error) {
	conv, err := cs.convRepo.GetByID(ctx, nil, convID)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, nil, gorm.ErrRecordNotFound
	}

	msgs, err := cs.msgRepo.ListByConversation(ctx, nil, convID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching messages: %w", err)
	}
	return conv, msgs, nil
}

func (cs *conversationService) List(ctx context.Context, userID uuid.UUID) ([]*types.Conversation, error) {
	convs, err := cs.convRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	return convs, nil
}

func (cs *conversationService) Delete(ctx context.Context, userID uuid.UUID, convID uuid.UUID) error {
	conv, err := cs.convRepo.GetByID(ctx, nil, convID)
	if err != nil {
		return fmt.Errorf("error fetching conversation: %w", err)
	}
	if conv.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	if err := cs.convRepo.Delete(ctx, nil, convID); err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	return nil
}

// DocumentIDs decodes the conversation's document id list from its JSON column.
func (cs *conversationService) DocumentIDs(conv *types.Conversation) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := json.Unmarshal(conv.DocumentIDs, &ids); err != nil {
		return nil, fmt.Errorf("error decoding conversation document ids: %w", err)
	}
	return ids, nil
}
