package repository

import (
	"context"

	"github.com/rcvieira/fluxo/domains/comment"
	"github.com/rcvieira/fluxo/domains/note"
	"github.com/rcvieira/fluxo/domains/nps"
	"github.com/rcvieira/fluxo/domains/project"
	"gorm.io/gorm"
)

type IProjectRepository interface {
	Create(ctx context.Context, p *project.Project) error
	List(ctx context.Context) ([]project.Project, error)
	GetByID(ctx context.Context, id string) (project.Project, error)
	GetByPortalToken(ctx context.Context, token string) (project.Project, error)
	Update(ctx context.Context, p *project.Project) error
	Delete(ctx context.Context, id string) error
}

type ICommentRepository interface {
	Create(ctx context.Context, c *comment.Comment) error
	GetByID(ctx context.Context, id string) (comment.Comment, error)
	ListByProject(ctx context.Context, projectID string) ([]comment.Comment, error)
	Delete(ctx context.Context, id string) error
}

type INoteRepository interface {
	Create(ctx context.Context, n *note.Note) error
	GetByID(ctx context.Context, id string) (note.Note, error)
	ListByProject(ctx context.Context, projectID string) ([]note.Note, error)
	Update(ctx context.Context, n *note.Note) error
	Delete(ctx context.Context, id string) error
}

type INpsRepository interface {
	Create(ctx context.Context, r *nps.Response) error
	ListByProject(ctx context.Context, projectID string) ([]nps.Response, error)
}

// AutoMigrate creates or updates every persistence table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&projectModel{},
		&commentModel{},
		&noteModel{},
		&npsResponseModel{},
	)
}
