package comment

import (
	"context"
	"time"
)

type Comment struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	// FromPortal marks comments left by the client through the review link.
	FromPortal bool      `json:"from_portal"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	ProjectID  string `json:"project_id"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	FromPortal bool   `json:"from_portal"`
}

type ICommentUsecase interface {
	Create(ctx context.Context, req CreateCommentRequest) (Comment, error)
	ListByProject(ctx context.Context, projectID string) ([]Comment, error)
	Delete(ctx context.Context, id string) error
}
