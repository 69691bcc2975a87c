package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rcvieira/fluxo/domains/comment"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
	"github.com/rcvieira/fluxo/repository"
)

type CommentUsecase struct {
	repo        repository.ICommentRepository
	projectRepo repository.IProjectRepository
	emitter     syncDomain.Emitter
}

func NewCommentUsecase(repo repository.ICommentRepository, projectRepo repository.IProjectRepository, emitter syncDomain.Emitter) *CommentUsecase {
	if emitter == nil {
		emitter = syncDomain.NopEmitter{}
	}
	return &CommentUsecase{repo: repo, projectRepo: projectRepo, emitter: emitter}
}

func (uc *CommentUsecase) Create(ctx context.Context, req comment.CreateCommentRequest) (comment.Comment, error) {
	// The parent must exist; a comment event without a resolvable project id
	// would be dropped by every router.
	if _, err := uc.projectRepo.GetByID(ctx, req.ProjectID); err != nil {
		return comment.Comment{}, err
	}

	c := comment.Comment{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		Author:     req.Author,
		Body:       req.Body,
		FromPortal: req.FromPortal,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, &c); err != nil {
		return comment.Comment{}, err
	}

	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindCommentCreated,
		Payload: syncDomain.Payload{ID: c.ID, ProjectID: c.ProjectID, Data: c},
	})
	return c, nil
}

func (uc *CommentUsecase) ListByProject(ctx context.Context, projectID string) ([]comment.Comment, error) {
	return uc.repo.ListByProject(ctx, projectID)
}

func (uc *CommentUsecase) Delete(ctx context.Context, id string) error {
	c, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindCommentDeleted,
		Payload: syncDomain.Payload{ID: id, ProjectID: c.ProjectID},
	})
	return nil
}
