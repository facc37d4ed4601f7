package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/clients/redis"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/sse"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

func setupDocumentTest(t *testing.T, engine *fakeEngine) (DocumentService, *gorm.DB, *logger.Logger) {
	t.Helper()

	t.Setenv("REDIS_ADDR", "")
	t.Setenv("UPLOAD_DIR", t.TempDir())

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "doc_test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Document{}, &types.Conversation{}, &types.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	statusCache, err := redis.NewStatusCache(log)
	if err != nil {
		t.Fatalf("init status cache: %v", err)
	}
	hub := sse.NewSSEHub(log)

	svc, err := NewDocumentService(db, log, repos.NewDocumentRepo(db, log), repos.NewConversationRepo(db, log), engine, statusCache, hub)
	if err != nil {
		t.Fatalf("init document service: %v", err)
	}
	return svc, db, log
}

func TestUploadStoresFileAndStartsProcessing(t *testing.T) {
	engine := &fakeEngine{}
	svc, _, _ := setupDocumentTest(t, engine)
	userID := uuid.New()

	doc, err := svc.Upload(context.Background(), userID, "report.pdf", []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if doc.ProcessingStatus != types.DocumentStatusProcessing {
		t.Errorf("status = %q, want processing", doc.ProcessingStatus)
	}
	if doc.EngineDocumentID != "eng-upload" {
		t.Errorf("engine document id = %q", doc.EngineDocumentID)
	}

	path, err := svc.FilePath(context.Background(), userID, doc.ID)
	if err != nil {
		t.Fatalf("FilePath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.4 test" {
		t.Errorf("stored file mismatch: %q err=%v", data, err)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "8")
	engine := &fakeEngine{}
	svc, _, _ := setupDocumentTest(t, engine)

	if _, err := svc.Upload(context.Background(), uuid.New(), "big.pdf", []byte("way more than eight")); err == nil {
		t.Fatal("expected size-cap error")
	}
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	engine := &fakeEngine{}
	svc, db, log := setupDocumentTest(t, engine)
	userID := uuid.New()
	ctx := context.Background()

	_, doc := seedConversation(t, db, log, userID)

	err := svc.Delete(ctx, userID, doc.ID)
	if err != ErrDocumentInUse {
		t.Fatalf("Delete = %v, want ErrDocumentInUse", err)
	}

	// Once the conversation is gone, deletion succeeds.
	convs, err := repos.NewConversationRepo(db, log).ListByUser(ctx, nil, userID)
	if err != nil || len(convs) != 1 {
		t.Fatalf("list conversations: %v", err)
	}
	if err := repos.NewConversationRepo(db, log).Delete(ctx, nil, convs[0].ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if err := svc.Delete(ctx, userID, doc.ID); err != nil {
		t.Fatalf("Delete after unreference: %v", err)
	}
	if _, err := svc.Get(ctx, userID, doc.ID); err == nil {
		t.Error("document still readable after delete")
	}
}

func TestGetRejectsForeignDocument(t *testing.T) {
	engine := &fakeEngine{}
	svc, _, _ := setupDocumentTest(t, engine)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, uuid.New(), "mine.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := svc.Get(ctx, uuid.New(), doc.ID); err == nil {
		t.Fatal("expected error for foreign document")
	}
}
