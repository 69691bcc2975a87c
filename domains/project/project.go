package project

import (
	"context"
	"time"
)

// Status is a stage of the production pipeline. The kanban board renders one
// column per status, in this order.
type Status string

const (
	StatusBriefing  Status = "briefing"
	StatusRoteiro   Status = "roteiro"
	StatusCaptacao  Status = "captacao"
	StatusEdicao    Status = "edicao"
	StatusAprovacao Status = "aprovacao"
	StatusAprovado  Status = "aprovado"
)

// Pipeline lists every status in board order.
var Pipeline = []Status{
	StatusBriefing,
	StatusRoteiro,
	StatusCaptacao,
	StatusEdicao,
	StatusAprovacao,
	StatusAprovado,
}

func (s Status) IsValid() bool {
	for _, v := range Pipeline {
		if s == v {
			return true
		}
	}
	return false
}

type Project struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ClientName  string     `json:"client_name"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	// PortalToken is the opaque token embedded in the client review link.
	PortalToken string    `json:"portal_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateProjectRequest struct {
	Title       string     `json:"title"`
	ClientName  string     `json:"client_name"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateProjectRequest struct {
	Title       *string    `json:"title"`
	ClientName  *string    `json:"client_name"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

type IProjectUsecase interface {
	Create(ctx context.Context, req CreateProjectRequest) (Project, error)
	List(ctx context.Context) ([]Project, error)
	GetByID(ctx context.Context, id string) (Project, error)
	GetByPortalToken(ctx context.Context, token string) (Project, error)
	Update(ctx context.Context, id string, req UpdateProjectRequest) (Project, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Project, error)
	Delete(ctx context.Context, id string) error
}
