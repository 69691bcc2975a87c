package nps

import (
	"context"
	"time"
)

// Response is a client satisfaction score collected through the portal after
// a project reaches its final status.
type Response struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Score      int       `json:"score"` // 0..10
	Feedback   string    `json:"feedback,omitempty"`
	Respondent string    `json:"respondent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateResponseRequest struct {
	ProjectID  string `json:"project_id"`
	Score      int    `json:"score"`
	Feedback   string `json:"feedback"`
	Respondent string `json:"respondent"`
}

type INpsUsecase interface {
	Create(ctx context.Context, req CreateResponseRequest) (Response, error)
	ListByProject(ctx context.Context, projectID string) ([]Response, error)
}
