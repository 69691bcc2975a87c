package usecase

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rcvieira/fluxo/core/config"
	"github.com/rcvieira/fluxo/domains/health"
	"gorm.io/gorm"
)

type HealthUsecase struct {
	db        *gorm.DB
	connCount func() int
	startedAt time.Time
}

// NewHealthUsecase wires the health check. connCount reports the number of
// live websocket sessions (the hub provides it).
func NewHealthUsecase(db *gorm.DB, connCount func() int) *HealthUsecase {
	if connCount == nil {
		connCount = func() int { return 0 }
	}
	return &HealthUsecase{db: db, connCount: connCount, startedAt: time.Now()}
}

func (uc *HealthUsecase) Check(ctx context.Context) (health.HealthStatus, error) {
	status := health.HealthStatus{
		Status:      "ok",
		Connections: uc.connCount(),
		UptimeHuman: humanize.Time(uc.startedAt),
	}
	if config.Global != nil {
		status.Version = config.Global.App.Version
	}

	status.Database = "ok"
	if uc.db != nil {
		sqlDB, err := uc.db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			status.Database = "unreachable"
			status.Status = "degraded"
		}
	}
	return status, nil
}
