package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rcvieira/fluxo/domains/comment"
	pkgError "github.com/rcvieira/fluxo/pkg/error"
	"gorm.io/gorm"
)

type commentModel struct {
	ID         string    `gorm:"primaryKey;column:id"`
	ProjectID  string    `gorm:"column:project_id;not null;index"`
	Author     string    `gorm:"column:author;not null"`
	Body       string    `gorm:"column:body;not null"`
	FromPortal bool      `gorm:"column:from_portal;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (commentModel) TableName() string { return "comments" }

func (m commentModel) toDomain() comment.Comment {
	return comment.Comment{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Author:     m.Author,
		Body:       m.Body,
		FromPortal: m.FromPortal,
		CreatedAt:  m.CreatedAt,
	}
}

type CommentGormRepository struct {
	db *gorm.DB
}

func NewCommentGormRepository(db *gorm.DB) *CommentGormRepository {
	return &CommentGormRepository{db: db}
}

func (r *CommentGormRepository) Create(ctx context.Context, c *comment.Comment) error {
	model := commentModel{
		ID:         c.ID,
		ProjectID:  c.ProjectID,
		Author:     c.Author,
		Body:       c.Body,
		FromPortal: c.FromPortal,
		CreatedAt:  c.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CommentGormRepository) GetByID(ctx context.Context, id string) (comment.Comment, error) {
	var model commentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return comment.Comment{}, pkgError.NotFoundError("comment not found")
	}
	if err != nil {
		return comment.Comment{}, err
	}
	return model.toDomain(), nil
}

func (r *CommentGormRepository) ListByProject(ctx context.Context, projectID string) ([]comment.Comment, error) {
	var models []commentModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	comments := make([]comment.Comment, 0, len(models))
	for _, m := range models {
		comments = append(comments, m.toDomain())
	}
	return comments, nil
}

func (r *CommentGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&commentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("comment not found")
	}
	return nil
}
