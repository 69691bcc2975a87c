package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rcvieira/fluxo/domains/comment"
	"github.com/rcvieira/fluxo/domains/note"
	"github.com/rcvieira/fluxo/domains/nps"
	pkgError "github.com/rcvieira/fluxo/pkg/error"
)

func ValidateCreateComment(ctx context.Context, request comment.CreateCommentRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ProjectID, validation.Required),
		validation.Field(&request.Author, validation.Required),
		validation.Field(&request.Body, validation.Required, validation.Length(1, 5000)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateCreateNote(ctx context.Context, request note.CreateNoteRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ProjectID, validation.Required),
		validation.Field(&request.Author, validation.Required),
		validation.Field(&request.Body, validation.Required, validation.Length(1, 10000)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateCreateNpsResponse(ctx context.Context, request nps.CreateResponseRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ProjectID, validation.Required),
		validation.Field(&request.Score, validation.Min(0), validation.Max(10)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
