package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rcvieira/fluxo/domains/note"
	syncDomain "github.com/rcvieira/fluxo/domains/sync"
	"github.com/rcvieira/fluxo/repository"
)

type NoteUsecase struct {
	repo        repository.INoteRepository
	projectRepo repository.IProjectRepository
	emitter     syncDomain.Emitter
}

func NewNoteUsecase(repo repository.INoteRepository, projectRepo repository.IProjectRepository, emitter syncDomain.Emitter) *NoteUsecase {
	if emitter == nil {
		emitter = syncDomain.NopEmitter{}
	}
	return &NoteUsecase{repo: repo, projectRepo: projectRepo, emitter: emitter}
}

func (uc *NoteUsecase) Create(ctx context.Context, req note.CreateNoteRequest) (note.Note, error) {
	if _, err := uc.projectRepo.GetByID(ctx, req.ProjectID); err != nil {
		return note.Note{}, err
	}

	now := time.Now().UTC()
	n := note.Note{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		Author:    req.Author,
		Body:      req.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, &n); err != nil {
		return note.Note{}, err
	}

	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindNoteCreated,
		Payload: syncDomain.Payload{ID: n.ID, ProjectID: n.ProjectID, Data: n},
	})
	return n, nil
}

func (uc *NoteUsecase) ListByProject(ctx context.Context, projectID string) ([]note.Note, error) {
	return uc.repo.ListByProject(ctx, projectID)
}

func (uc *NoteUsecase) Update(ctx context.Context, id string, req note.UpdateNoteRequest) (note.Note, error) {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return note.Note{}, err
	}

	if req.Body != nil {
		n.Body = *req.Body
	}
	if req.Pinned != nil {
		n.Pinned = *req.Pinned
	}
	n.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, &n); err != nil {
		return note.Note{}, err
	}

	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindNoteUpdated,
		Payload: syncDomain.Payload{ID: n.ID, ProjectID: n.ProjectID, Data: n},
	})
	return n, nil
}

func (uc *NoteUsecase) Delete(ctx context.Context, id string) error {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.emitter.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindNoteDeleted,
		Payload: syncDomain.Payload{ID: id, ProjectID: n.ProjectID},
	})
	return nil
}
