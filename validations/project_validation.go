package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rcvieira/fluxo/domains/project"
	pkgError "github.com/rcvieira/fluxo/pkg/error"
)

func ValidateCreateProject(ctx context.Context, request project.CreateProjectRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&request.ClientName, validation.Required, validation.Length(1, 120)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateUpdateStatus(ctx context.Context, request project.UpdateStatusRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Status, validation.Required, validation.By(func(value any) error {
			s, _ := value.(project.Status)
			if !s.IsValid() {
				return validation.NewError("validation_status", "must be a valid pipeline status")
			}
			return nil
		})),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
