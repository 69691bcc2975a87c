package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rcvieira/fluxo/domains/note"
	pkgError "github.com/rcvieira/fluxo/pkg/error"
	"gorm.io/gorm"
)

type noteModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ProjectID string    `gorm:"column:project_id;not null;index"`
	Author    string    `gorm:"column:author;not null"`
	Body      string    `gorm:"column:body;not null"`
	Pinned    bool      `gorm:"column:pinned;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (noteModel) TableName() string { return "notes" }

func (m noteModel) toDomain() note.Note {
	return note.Note{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Author:    m.Author,
		Body:      m.Body,
		Pinned:    m.Pinned,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type NoteGormRepository struct {
	db *gorm.DB
}

func NewNoteGormRepository(db *gorm.DB) *NoteGormRepository {
	return &NoteGormRepository{db: db}
}

func (r *NoteGormRepository) Create(ctx context.Context, n *note.Note) error {
	model := noteModel{
		ID:        n.ID,
		ProjectID: n.ProjectID,
		Author:    n.Author,
		Body:      n.Body,
		Pinned:    n.Pinned,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *NoteGormRepository) GetByID(ctx context.Context, id string) (note.Note, error) {
	var model noteModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return note.Note{}, pkgError.NotFoundError("note not found")
	}
	if err != nil {
		return note.Note{}, err
	}
	return model.toDomain(), nil
}

func (r *NoteGormRepository) ListByProject(ctx context.Context, projectID string) ([]note.Note, error) {
	var models []noteModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("pinned DESC, created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	notes := make([]note.Note, 0, len(models))
	for _, m := range models {
		notes = append(notes, m.toDomain())
	}
	return notes, nil
}

func (r *NoteGormRepository) Update(ctx context.Context, n *note.Note) error {
	result := r.db.WithContext(ctx).Model(&noteModel{}).Where("id = ?", n.ID).Updates(map[string]any{
		"body":       n.Body,
		"pinned":     n.Pinned,
		"updated_at": n.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("note not found")
	}
	return nil
}

func (r *NoteGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&noteModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("note not found")
	}
	return nil
}
