package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rcvieira/fluxo/domains/nps"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
	"github.com/rcvieira/fluxo/repository"
)

type NpsUsecase struct {
	repo        repository.INpsRepository
	projectRepo repository.IProjectRepository
	emitter     syncDomain.Emitter
}

func NewNpsUsecase(repo repository.INpsRepository, projectRepo repository.IProjectRepository, emitter syncDomain.Emitter) *NpsUsecase {
	if emitter == nil {
		emitter = syncDomain.NopEmitter{}
	}
	return &NpsUsecase{repo: repo, projectRepo: projectRepo, emitter: emitter}
}

func (uc *NpsUsecase) Create(ctx context.Context, req nps.CreateResponseRequest) (nps.Response, error) {
	if _, err := uc.projectRepo.GetByID(ctx, req.ProjectID); err != nil {
		return nps.Response{}, err
	}

	resp := nps.Response{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		Score:      req.Score,
		Feedback:   req.Feedback,
		Respondent: req.Respondent,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, &resp); err != nil {
		return nps.Response{}, err
	}

	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindNpsCreated,
		Payload: syncDomain.Payload{ID: resp.ID, ProjectID: resp.ProjectID, Data: resp},
	})
	return resp, nil
}

func (uc *NpsUsecase) ListByProject(ctx context.Context, projectID string) ([]nps.Response, error) {
	return uc.repo.ListByProject(ctx, projectID)
}
