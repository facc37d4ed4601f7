package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/pdfchat-backend/internal/handlers"
	"github.com/yungbote/pdfchat-backend/internal/middleware"
)

type RouterConfig struct {
	SystemHandler       *handlers.SystemHandler
	DocumentHandler     *handlers.DocumentHandler
	ConversationHandler *handlers.ConversationHandler
	ChatHandler         *handlers.ChatHandler
	ViewerHandler       *handlers.ViewerHandler
	SSEHandler          *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware("pdfchat-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-ID"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/health/detailed", cfg.SystemHandler.DetailedHealth)
	router.GET("/live", handlers.Live)
	router.GET("/ready", cfg.SystemHandler.Ready)
	router.GET("/metrics", cfg.SystemHandler.Metrics)

	// ===============
	// || API       ||
	// ===============
	api := router.Group("/api")
	api.Use(middleware.Identity())
	{
		// Documents
		api.POST("/documents/upload", cfg.DocumentHandler.Upload)
		api.GET("/documents", cfg.DocumentHandler.List)
		api.GET("/documents/:id", cfg.DocumentHandler.Get)
		api.GET("/documents/:id/file", cfg.DocumentHandler.ServeFile)
		api.GET("/documents/:id/status", cfg.DocumentHandler.GetStatus)
		api.POST("/documents/poll-status", cfg.DocumentHandler.PollStatus)
		api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)

		// Conversations + chat
		api.POST("/conversations", cfg.ConversationHandler.Create)
		api.GET("/conversations", cfg.ConversationHandler.List)
		api.GET("/conversations/:id", cfg.ConversationHandler.Get)
		api.DELETE("/conversations/:id", cfg.ConversationHandler.Delete)
		api.POST("/conversations/:id/messages", cfg.ChatHandler.SendMessage)
		api.POST("/chat", cfg.ChatHandler.QuickChat)

		// Viewers
		api.POST("/viewers", cfg.ViewerHandler.Open)
		api.POST("/viewers/:id/citation-click", cfg.ViewerHandler.CitationClick)
		api.POST("/viewers/:id/page-ready", cfg.ViewerHandler.PageReady)
		api.POST("/viewers/:id/page-change", cfg.ViewerHandler.PageChange)
		api.GET("/viewers/:id/events", cfg.SSEHandler.ViewerEvents)
		api.DELETE("/viewers/:id", cfg.ViewerHandler.Close)
	}

	return router
}
