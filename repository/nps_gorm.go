package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rcvieira/fluxo/domains/nps"
	"gorm.io/gorm"
)

type npsResponseModel struct {
	ID         string         `gorm:"primaryKey;column:id"`
	ProjectID  string         `gorm:"column:project_id;not null;index"`
	Score      int            `gorm:"column:score;not null"`
	Feedback   sql.NullString `gorm:"column:feedback"`
	Respondent sql.NullString `gorm:"column:respondent"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null"`
}

func (npsResponseModel) TableName() string { return "nps_responses" }

type NpsGormRepository struct {
	db *gorm.DB
}

func NewNpsGormRepository(db *gorm.DB) *NpsGormRepository {
	return &NpsGormRepository{db: db}
}

func (r *NpsGormRepository) Create(ctx context.Context, resp *nps.Response) error {
	model := npsResponseModel{
		ID:         resp.ID,
		ProjectID:  resp.ProjectID,
		Score:      resp.Score,
		Feedback:   sql.NullString{String: resp.Feedback, Valid: resp.Feedback != ""},
		Respondent: sql.NullString{String: resp.Respondent, Valid: resp.Respondent != ""},
		CreatedAt:  resp.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *NpsGormRepository) ListByProject(ctx context.Context, projectID string) ([]nps.Response, error) {
	var models []npsResponseModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	responses := make([]nps.Response, 0, len(models))
	for _, m := range models {
		responses = append(responses, nps.Response{
			ID:         m.ID,
			ProjectID:  m.ProjectID,
			Score:      m.Score,
			Feedback:   m.Feedback.String,
			Respondent: m.Respondent.String,
			CreatedAt:  m.CreatedAt,
		})
	}
	return responses, nil
}
