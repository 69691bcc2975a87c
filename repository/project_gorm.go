package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rcvieira/fluxo/domains/project"
	pkgError "github.com/rcvieira/fluxo/pkg/error"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type projectModel struct {
	ID          string         `gorm:"primaryKey;column:id"`
	Title       string         `gorm:"column:title;not null"`
	ClientName  string         `gorm:"column:client_name;not null"`
	Description sql.NullString `gorm:"column:description"`
	Status      string         `gorm:"column:status;not null;index;default:'briefing'"`
	DueDate     *time.Time     `gorm:"column:due_date"`
	PortalToken string         `gorm:"column:portal_token;uniqueIndex"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (projectModel) TableName() string { return "projects" }

func (m projectModel) toDomain() project.Project {
	return project.Project{
		ID:          m.ID,
		Title:       m.Title,
		ClientName:  m.ClientName,
		Description: m.Description.String,
		Status:      project.Status(m.Status),
		DueDate:     m.DueDate,
		PortalToken: m.PortalToken,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toProjectModel(p *project.Project) projectModel {
	return projectModel{
		ID:          p.ID,
		Title:       p.Title,
		ClientName:  p.ClientName,
		Description: sql.NullString{String: p.Description, Valid: p.Description != ""},
		Status:      string(p.Status),
		DueDate:     p.DueDate,
		PortalToken: p.PortalToken,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// --- Repository Implementation ---

type ProjectGormRepository struct {
	db *gorm.DB
}

func NewProjectGormRepository(db *gorm.DB) *ProjectGormRepository {
	return &ProjectGormRepository{db: db}
}

func (r *ProjectGormRepository) Create(ctx context.Context, p *project.Project) error {
	model := toProjectModel(p)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ProjectGormRepository) List(ctx context.Context) ([]project.Project, error) {
	var models []projectModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	projects := make([]project.Project, 0, len(models))
	for _, m := range models {
		projects = append(projects, m.toDomain())
	}
	return projects, nil
}

func (r *ProjectGormRepository) GetByID(ctx context.Context, id string) (project.Project, error) {
	var model projectModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project.Project{}, pkgError.NotFoundError("project not found")
	}
	if err != nil {
		return project.Project{}, err
	}
	return model.toDomain(), nil
}

func (r *ProjectGormRepository) GetByPortalToken(ctx context.Context, token string) (project.Project, error) {
	var model projectModel
	err := r.db.WithContext(ctx).First(&model, "portal_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project.Project{}, pkgError.NotFoundError("project not found")
	}
	if err != nil {
		return project.Project{}, err
	}
	return model.toDomain(), nil
}

func (r *ProjectGormRepository) Update(ctx context.Context, p *project.Project) error {
	model := toProjectModel(p)
	result := r.db.WithContext(ctx).Model(&projectModel{}).Where("id = ?", p.ID).Updates(map[string]any{
		"title":       model.Title,
		"client_name": model.ClientName,
		"description": model.Description,
		"status":      model.Status,
		"due_date":    model.DueDate,
		"updated_at":  model.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("project not found")
	}
	return nil
}

func (r *ProjectGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&projectModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("project not found")
	}
	return nil
}
