package note

import (
	"context"
	"time"
)

// Note is an internal staff annotation on a project; never visible through
// the client portal.
type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateNoteRequest struct {
	ProjectID string `json:"project_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
}

type UpdateNoteRequest struct {
	Body   *string `json:"body"`
	Pinned *bool   `json:"pinned"`
}

type INoteUsecase interface {
	Create(ctx context.Context, req CreateNoteRequest) (Note, error)
	ListByProject(ctx context.Context, projectID string) ([]Note, error)
	Update(ctx context.Context, id string, req UpdateNoteRequest) (Note, error)
	Delete(ctx context.Context, id string) error
}
