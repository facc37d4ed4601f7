package services

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pdfchat-backend/internal/clients/ragflow"
	"github.com/yungbote/pdfchat-backend/internal/clients/redis"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/types"
)

type HealthReport struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	Engine     string `json:"engine"`
	Redis      string `json:"redis"`
	Filesystem string `json:"filesystem"`
}

type MetricsReport struct {
	Documents     int64 `json:"documents"`
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
	StorageBytes  int64 `json:"storage_bytes"`
}

type SystemService interface {
	Health(ctx context.Context) HealthReport
	Ready(ctx context.Context) bool
	Metrics(ctx context.Context) (MetricsReport, error)
}

type systemService struct {
	db          *gorm.DB
	log         *logger.Logger
	engine      ragflow.Client
	statusCache redis.StatusCache
	storageDir  string
}

func NewSystemService(db *gorm.DB, log *logger.Logger, engine ragflow.Client, statusCache redis.StatusCache, storageDir string) SystemService {
	serviceLog := log.With("service", "SystemService")
	return &systemService{
		db:          db,
		log:         serviceLog,
		engine:      engine,
		statusCache: statusCache,
		storageDir:  storageDir,
	}
}

func (ss *systemService) Health(ctx context.Context) HealthReport {
	report := HealthReport{Status: "ok", Database: "ok", Engine: "ok", Redis: "disabled", Filesystem: "ok"}

	if !ss.dbHealthy(ctx) {
		report.Database = "error"
	}

	if err := ss.engine.TestConnection(ctx); err != nil {
		ss.log.Warn("Engine health check failed", "error", err)
		report.Engine = "error"
	}

	if ss.statusCache.Enabled() {
		report.Redis = "ok"
		if err := ss.statusCache.Ping(ctx); err != nil {
			report.Redis = "error"
		}
	}

	// Storage must exist and accept writes.
	probe := filepath.Join(ss.storageDir, ".health-"+uuid.NewString())
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		report.Filesystem = "error"
	} else {
		_ = os.Remove(probe)
	}

	if report.Database == "error" || report.Engine == "error" || report.Filesystem == "error" {
		report.Status = "degraded"
	}
	return report
}

// Ready gates traffic on the database only; a flapping engine should not take
// the whole service out of rotation.
func (ss *systemService) Ready(ctx context.Context) bool {
	return ss.dbHealthy(ctx)
}

func (ss *systemService) dbHealthy(ctx context.Context) bool {
	sqlDB, err := ss.db.WithContext(ctx).DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (ss *systemService) Metrics(ctx context.Context) (MetricsReport, error) {
	var report MetricsReport
	db := ss.db.WithContext(ctx)

	if err := db.Model(&types.Document{}).Count(&report.Documents).Error; err != nil {
		return report, err
	}
	if err := db.Model(&types.Conversation{}).Count(&report.Conversations).Error; err != nil {
		return report, err
	}
	if err := db.Model(&types.Message{}).Count(&report.Messages).Error; err != nil {
		return report, err
	}
	if err := db.Model(&types.Document{}).Select("COALESCE(SUM(file_size), 0)").Scan(&report.StorageBytes).Error; err != nil {
		return report, err
	}
	return report, nil
}
