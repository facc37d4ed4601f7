package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/citations"
	"github.com/yungbote/pdfchat-backend/internal/clients/ragflow"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

// historyTurns caps how much prior conversation is forwarded to the engine.
const historyTurns = 10

type ChatService interface {
	SendMessage(ctx context.Context, userID uuid.UUID, convID uuid.UUID, question string) (*types.Message, error)
}

type chatService struct {
	db       *gorm.DB
	log      *logger.Logger
	convRepo repos.ConversationRepo
	msgRepo  repos.MessageRepo
	docRepo  repos.DocumentRepo
	engine   ragflow.Client
	policy   citations.Policy

	// Fallback ordinals ("Document 1", ...) must stay stable for the lifetime
	// of a conversation, so each conversation keeps its own mapper.
	mu      sync.Mutex
	mappers map[uuid.UUID]*citations.DocumentMapper
}

func NewChatService(db *gorm.DB, log *logger.Logger, convRepo repos.ConversationRepo, msgRepo repos.MessageRepo, docRepo repos.DocumentRepo, engine ragflow.Client) ChatService {
	serviceLog := log.With("service", "ChatService")
	return &chatService{
		db:       db,
		log:      serviceLog,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		docRepo:  docRepo,
		engine:   engine,
		policy:   citations.DefaultPolicy(),
		mappers:  make(map[uuid.UUID]*citations.DocumentMapper),
	}
}

func (cs *chatService) SendMessage(ctx context.Context, userID uuid.UUID, convID uuid.UUID, question string) (*types.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	conv, err := cs.convRepo.GetByID(ctx, nil, convID)
	if err != nil {
		return nil, fmt.Errorf("error fetching conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}

	var docIDs []uuid.UUID
	if err := json.Unmarshal(conv.DocumentIDs, &docIDs); err != nil {
		return nil, fmt.Errorf("error decoding conversation document ids: %w", err)
	}
	docs, err := cs.docRepo.GetByIDs(ctx, nil, docIDs)
	if err != nil {
		return nil, fmt.Errorf("error fetching documents: %w", err)
	}

	engineDocIDs := make([]string, 0, len(docs))
	refs := make(map[string]citations.DocumentRef, len(docs))
	for _, d := range docs {
		if d.ProcessingStatus != types.DocumentStatusCompleted || d.EngineDocumentID == "" {
			continue
		}
		engineDocIDs = append(engineDocIDs, d.EngineDocumentID)
		refs[d.EngineDocumentID] = citations.DocumentRef{ID: d.ID.String(), Filename: d.OriginalFilename}
	}
	if len(engineDocIDs) == 0 {
		return nil, fmt.Errorf("no processed documents in conversation")
	}

	mapper := cs.mapperFor(convID)
	mapper.Rebuild(refs)

	history, err := cs.loadHistory(ctx, convID)
	if err != nil {
		return nil, err
	}

	userMsg := &types.Message{
		ConversationID: convID,
		Role:           types.MessageRoleUser,
		Content:        question,
	}
	if _, err := cs.msgRepo.Create(ctx, nil, []*types.Message{userMsg}); err != nil {
		return nil, fmt.Errorf("error saving user message: %w", err)
	}

	result, err := cs.engine.Query(ctx, question, engineDocIDs, history)
	if err != nil {
		return nil, fmt.Errorf("error querying engine: %w", err)
	}

	cits := citations.Normalize(result.Raw, cs.policy)
	cits = mapper.Apply(cits)
	cits = citations.DedupeAndRank(cits, cs.policy)

	rawCits, err := json.Marshal(cits)
	if err != nil {
		return nil, fmt.Errorf("error encoding citations: %w", err)
	}

	assistantMsg := &types.Message{
		ConversationID:  convID,
		Role:            types.MessageRoleAssistant,
		Content:         result.Answer,
		Citations:       datatypes.JSON(rawCits),
		ConfidenceScore: result.Confidence,
	}
	if _, err := cs.msgRepo.Create(ctx, nil, []*types.Message{assistantMsg}); err != nil {
		return nil, fmt.Errorf("error saving assistant message: %w", err)
	}

	if err := cs.convRepo.Touch(ctx, nil, convID); err != nil {
		cs.log.Warn("Failed to touch conversation", "conversation_id", convID, "error", err)
	}
	if conv.Title == "" {
		if err := cs.convRepo.UpdateTitle(ctx, nil, convID, deriveTitle(question)); err != nil {
			cs.log.Warn("Failed to set conversation title", "conversation_id", convID, "error", err)
		}
	}

	return assistantMsg, nil
}

func (cs *chatService) mapperFor(convID uuid.UUID) *citations.DocumentMapper {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	m, ok := cs.mappers[convID]
	if !ok {
		m = citations.NewDocumentMapper()
		cs.mappers[convID] = m
	}
	return m
}

func (cs *chatService) loadHistory(ctx context.Context, convID uuid.UUID) ([]ragflow.ChatTurn, error) {
	msgs, err := cs.msgRepo.ListByConversation(ctx, nil, convID, 0)
	if err != nil {
		return nil, fmt.Errorf("error fetching history: %w", err)
	}
	if len(msgs) > historyTurns*2 {
		msgs = msgs[len(msgs)-historyTurns*2:]
	}
	turns := make([]ragflow.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, ragflow.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

func deriveTitle(question string) string {
	const maxTitle = 60
	runes := []rune(question)
	if len(runes) <= maxTitle {
		return question
	}
	return string(runes[:maxTitle]) + "..."
}
