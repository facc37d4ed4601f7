package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/pdfchat-backend/internal/clients/ragflow"
	"github.com/yungbote/pdfchat-backend/internal/clients/redis"
	"github.com/yungbote/pdfchat-backend/internal/db"
	"github.com/yungbote/pdfchat-backend/internal/handlers"
	"github.com/yungbote/pdfchat-backend/internal/highlight"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/observability"
	"github.com/yungbote/pdfchat-backend/internal/repos"
	"github.com/yungbote/pdfchat-backend/internal/server"
	"github.com/yungbote/pdfchat-backend/internal/services"
	"github.com/yungbote/pdfchat-backend/internal/sse"
	"github.com/yungbote/pdfchat-backend/internal/utils"
)

func main() {
	// Env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "pdfchat-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOtel != nil {
		defer func() { _ = shutdownOtel(context.Background()) }()
	}

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Fatal("Database auto migration failed", "error", err)
	}
	theDB := dbService.DB()

	// Clients
	engine, err := ragflow.NewClient(log)
	if err != nil {
		log.Fatal("RAGFlow client init failed", "error", err)
	}
	statusCache, err := redis.NewStatusCache(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}
	defer statusCache.Close()

	// SSE
	hub := sse.NewSSEHub(log)

	// Repos
	log.Info("Setting up Repos from main...")
	docRepo := repos.NewDocumentRepo(theDB, log)
	convRepo := repos.NewConversationRepo(theDB, log)
	msgRepo := repos.NewMessageRepo(theDB, log)

	// Services
	log.Info("Setting up Services from main...")
	docService, err := services.NewDocumentService(theDB, log, docRepo, convRepo, engine, statusCache, hub)
	if err != nil {
		log.Fatal("Document service init failed", "error", err)
	}
	convService := services.NewConversationService(theDB, log, convRepo, msgRepo, docRepo)
	chatService := services.NewChatService(theDB, log, convRepo, msgRepo, docRepo, engine)
	viewerService := services.NewViewerService(log, docRepo, hub, highlight.DefaultConfig())
	systemService := services.NewSystemService(theDB, log, engine, statusCache, docService.StorageDir())

	// Handlers
	log.Info("Setting up Handlers from main...")
	metricsEnabled := utils.GetEnvAsBool("ENABLE_METRICS", true, log)
	routerCfg := server.RouterConfig{
		SystemHandler:       handlers.NewSystemHandler(log, systemService, metricsEnabled),
		DocumentHandler:     handlers.NewDocumentHandler(log, docService),
		ConversationHandler: handlers.NewConversationHandler(log, convService),
		ChatHandler:         handlers.NewChatHandler(log, chatService, convService),
		ViewerHandler:       handlers.NewViewerHandler(log, viewerService),
		SSEHandler:          handlers.NewSSEHandler(log, hub),
	}

	router := server.NewRouter(routerCfg)

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
	}

	// Let in-flight document status pollers finish before exiting.
	if err := docService.Wait(); err != nil {
		log.Error("Background pollers exited with error", "error", err)
	}
}
