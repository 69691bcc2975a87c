package health

import "context"

type HealthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Database    string `json:"database"`
	Connections int    `json:"ws_connections"`
	UptimeHuman string `json:"uptime"`
}

type IHealthUsecase interface {
	Check(ctx context.Context) (HealthStatus, error)
}
