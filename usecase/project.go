package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rcvieira/fluxo/domains/project"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
	pkgError "github.com/rcvieira/fluxo/pkg/error"
	"github.com/rcvieira/fluxo/repository"
	"github.com/sirupsen/logrus"
)

type ProjectUsecase struct {
	repo    repository.IProjectRepository
	emitter syncDomain.Emitter
}

func NewProjectUsecase(repo repository.IProjectRepository, emitter syncDomain.Emitter) *ProjectUsecase {
	if emitter == nil {
		emitter = syncDomain.NopEmitter{}
	}
	return &ProjectUsecase{repo: repo, emitter: emitter}
}

func (uc *ProjectUsecase) Create(ctx context.Context, req project.CreateProjectRequest) (project.Project, error) {
	now := time.Now().UTC()
	p := project.Project{
		ID:          uuid.NewString(),
		Title:       req.Title,
		ClientName:  req.ClientName,
		Description: req.Description,
		Status:      project.StatusBriefing,
		DueDate:     req.DueDate,
		PortalToken: uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, &p); err != nil {
		return project.Project{}, err
	}

	logrus.Debugf("[Project] Created %s (%s)", p.ID, p.Title)
	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindProjectCreated,
		Payload: syncDomain.Payload{ID: p.ID, Data: p},
	})
	return p, nil
}

func (uc *ProjectUsecase) List(ctx context.Context) ([]project.Project, error) {
	return uc.repo.List(ctx)
}

func (uc *ProjectUsecase) GetByID(ctx context.Context, id string) (project.Project, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *ProjectUsecase) GetByPortalToken(ctx context.Context, token string) (project.Project, error) {
	return uc.repo.GetByPortalToken(ctx, token)
}

func (uc *ProjectUsecase) Update(ctx context.Context, id string, req project.UpdateProjectRequest) (project.Project, error) {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return project.Project{}, err
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.ClientName != nil {
		p.ClientName = *req.ClientName
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.DueDate != nil {
		p.DueDate = req.DueDate
	}
	p.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, &p); err != nil {
		return project.Project{}, err
	}

	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindProjectUpdated,
		Payload: syncDomain.Payload{ID: p.ID, Data: p},
	})
	return p, nil
}

func (uc *ProjectUsecase) UpdateStatus(ctx context.Context, id string, status project.Status) (project.Project, error) {
	if !status.IsValid() {
		return project.Project{}, pkgError.ValidationError("invalid pipeline status: " + string(status))
	}

	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return project.Project{}, err
	}

	p.Status = status
	p.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, &p); err != nil {
		return project.Project{}, err
	}

	logrus.Debugf("[Project] %s moved to %s", p.ID, status)
	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindProjectUpdated,
		Payload: syncDomain.Payload{ID: p.ID, Data: p},
	})
	return p, nil
}

func (uc *ProjectUsecase) Delete(ctx context.Context, id string) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindProjectDeleted,
		Payload: syncDomain.Payload{ID: id},
	})
	return nil
}
