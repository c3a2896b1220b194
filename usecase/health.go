package usecase

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/messaging/registry"
	"gorm.io/gorm"
)

// HealthStatus aggregates the liveness of the process dependencies.
type HealthStatus struct {
	Database  string         `json:"database"`
	Adapters  registry.Stats `json:"adapters"`
	CheckedAt time.Time      `json:"checked_at"`
}

type IHealthUsecase interface {
	GetStatus(ctx context.Context) HealthStatus
}

type serviceHealth struct {
	db       *gorm.DB
	registry *registry.Registry
}

func NewHealthService(db *gorm.DB, reg *registry.Registry) IHealthUsecase {
	return &serviceHealth{db: db, registry: reg}
}

func (service serviceHealth) GetStatus(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Database:  "ok",
		Adapters:  service.registry.GetStats(),
		CheckedAt: time.Now(),
	}

	sqlDB, err := service.db.DB()
	if err != nil {
		status.Database = err.Error()
		return status
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		status.Database = err.Error()
	}
	return status
}
