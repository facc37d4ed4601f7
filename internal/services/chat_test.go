package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/citations"
	"github.com/yungbote/pdfchat-backend/internal/clients/ragflow"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

type fakeEngine struct {
	result ragflow.QueryResult
	err    error

	lastQuestion string
	lastDocIDs   []string
	lastHistory  []ragflow.ChatTurn
}

func (f *fakeEngine) TestConnection(ctx context.Context) error { return nil }

func (f *fakeEngine) UploadDocument(ctx context.Context, filename string, data []byte) (string, error) {
	return "eng-upload", nil
}

func (f *fakeEngine) GetDocumentStatus(ctx context.Context, engineDocID string) (ragflow.DocumentStatus, error) {
	return ragflow.DocumentStatus{Status: types.DocumentStatusCompleted}, nil
}

func (f *fakeEngine) DeleteDocument(ctx context.Context, engineDocID string) error { return nil }

func (f *fakeEngine) Query(ctx context.Context, question string, engineDocIDs []string, history []ragflow.ChatTurn) (ragflow.QueryResult, error) {
	f.lastQuestion = question
	f.lastDocIDs = engineDocIDs
	f.lastHistory = history
	return f.result, f.err
}

func setupChatTest(t *testing.T, engine ragflow.Client) (ChatService, *gorm.DB, *logger.Logger) {
	t.Helper()

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat_test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Document{}, &types.Conversation{}, &types.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	convRepo := repos.NewConversationRepo(db, log)
	msgRepo := repos.NewMessageRepo(db, log)
	docRepo := repos.NewDocumentRepo(db, log)
	svc := NewChatService(db, log, convRepo, msgRepo, docRepo, engine)
	return svc, db, log
}

func seedConversation(t *testing.T, db *gorm.DB, log *logger.Logger, userID uuid.UUID) (*types.Conversation, *types.Document) {
	t.Helper()
	ctx := context.Background()

	docRepo := repos.NewDocumentRepo(db, log)
	doc := &types.Document{
		UserID:           userID,
		Filename:         "report.pdf",
		OriginalFilename: "report.pdf",
		FileSize:         1024,
		ProcessingStatus: types.DocumentStatusCompleted,
		EngineDocumentID: "eng-1",
	}
	if _, err := docRepo.Create(ctx, nil, []*types.Document{doc}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	convService := NewConversationService(db, log, repos.NewConversationRepo(db, log), repos.NewMessageRepo(db, log), docRepo)
	conv, err := convService.Create(ctx, userID, []uuid.UUID{doc.ID}, "")
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return conv, doc
}

func TestSendMessageCitationPipeline(t *testing.T) {
	engine := &fakeEngine{
		result: ragflow.QueryResult{
			Answer:     "Revenue grew 20% in Q4.",
			Confidence: 0.82,
			Raw: map[string]any{
				"answer":     "Revenue grew 20% in Q4.",
				"confidence": 0.82,
				"sources": []any{
					map[string]any{"content": "Revenue grew 20%", "page": float64(4), "score": 0.91, "doc_id": "eng-1"},
					map[string]any{"content": "Revenue grew 20%", "page": float64(4), "score": 0.75, "doc_id": "eng-1"},
					map[string]any{"content": "Margins improved", "page": float64(6), "score": 0.60, "doc_id": "eng-other"},
				},
			},
		},
	}
	svc, db, log := setupChatTest(t, engine)
	userID := uuid.New()
	conv, doc := seedConversation(t, db, log, userID)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, userID, conv.ID, "How did revenue do?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if msg.Role != types.MessageRoleAssistant {
		t.Errorf("role = %q, want assistant", msg.Role)
	}
	if msg.Content != "Revenue grew 20% in Q4." {
		t.Errorf("content = %q", msg.Content)
	}
	if len(engine.lastDocIDs) != 1 || engine.lastDocIDs[0] != "eng-1" {
		t.Errorf("engine queried with doc ids %v, want [eng-1]", engine.lastDocIDs)
	}

	var cits []citations.Citation
	if err := json.Unmarshal(msg.Citations, &cits); err != nil {
		t.Fatalf("decode stored citations: %v", err)
	}
	if len(cits) != 2 {
		t.Fatalf("got %d citations, want 2 (duplicates merged): %+v", len(cits), cits)
	}
	if cits[0].DocumentID != doc.ID.String() || cits[0].DocumentFilename != "report.pdf" {
		t.Errorf("first citation not remapped to local document: %+v", cits[0])
	}
	if cits[0].Confidence != 0.91 {
		t.Errorf("duplicate merge kept confidence %v, want 0.91", cits[0].Confidence)
	}
	if cits[1].DocumentFilename != "Document 1" {
		t.Errorf("unknown engine doc should get fallback label, got %+v", cits[1])
	}

	// Both the question and the answer are persisted.
	msgs, err := repos.NewMessageRepo(db, log).ListByConversation(ctx, nil, conv.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != types.MessageRoleUser || msgs[1].Role != types.MessageRoleAssistant {
		t.Fatalf("stored messages = %d, want user then assistant", len(msgs))
	}
}

func TestSendMessageForwardsHistory(t *testing.T) {
	engine := &fakeEngine{
		result: ragflow.QueryResult{
			Answer: "It improved further.",
			Raw:    map[string]any{"answer": "It improved further."},
		},
	}
	svc, db, log := setupChatTest(t, engine)
	userID := uuid.New()
	conv, _ := seedConversation(t, db, log, userID)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, userID, conv.ID, "How did revenue do?"); err != nil {
		t.Fatalf("first SendMessage: %v", err)
	}
	if _, err := svc.SendMessage(ctx, userID, conv.ID, "And margins?"); err != nil {
		t.Fatalf("second SendMessage: %v", err)
	}

	if len(engine.lastHistory) != 2 {
		t.Fatalf("second query got %d history turns, want 2", len(engine.lastHistory))
	}
	if engine.lastHistory[0].Role != types.MessageRoleUser || engine.lastHistory[1].Role != types.MessageRoleAssistant {
		t.Errorf("history roles = %+v", engine.lastHistory)
	}
}

func TestSendMessageRejectsOtherUsersConversation(t *testing.T) {
	engine := &fakeEngine{result: ragflow.QueryResult{Raw: map[string]any{}}}
	svc, db, log := setupChatTest(t, engine)
	owner := uuid.New()
	conv, _ := seedConversation(t, db, log, owner)

	if _, err := svc.SendMessage(context.Background(), uuid.New(), conv.ID, "question"); err == nil {
		t.Fatal("expected error for foreign conversation")
	}
}

func TestSendMessageNoProcessedDocuments(t *testing.T) {
	engine := &fakeEngine{result: ragflow.QueryResult{Raw: map[string]any{}}}
	svc, db, log := setupChatTest(t, engine)
	userID := uuid.New()
	ctx := context.Background()

	conv, doc := seedConversation(t, db, log, userID)

	// The document regresses to processing after the conversation exists,
	// e.g. after a re-ingestion.
	docRepo := repos.NewDocumentRepo(db, log)
	if err := docRepo.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusProcessing); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if _, err := svc.SendMessage(ctx, userID, conv.ID, "question"); err == nil {
		t.Fatal("expected error when no document has finished processing")
	}
}
