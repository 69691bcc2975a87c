package rest

import (
	"github.com/gofiber/fiber/v2"
	domainComment "github.com/rcvieira/fluxo/domains/comment"
	domainNote "github.com/rcvieira/fluxo/domains/note"
	domainNps "github.com/rcvieira/fluxo/domains/nps"
	"github.com/rcvieira/fluxo/pkg/utils"
	"github.com/rcvieira/fluxo/validations"
)

// Engagement groups the project-scoped child resources: comments, internal
// notes and NPS responses.
type Engagement struct {
	Comments domainComment.ICommentUsecase
	Notes    domainNote.INoteUsecase
	Nps      domainNps.INpsUsecase
}

func InitRestEngagement(app fiber.Router, comments domainComment.ICommentUsecase, notes domainNote.INoteUsecase, npsSvc domainNps.INpsUsecase) Engagement {
	rest := Engagement{Comments: comments, Notes: notes, Nps: npsSvc}

	app.Get("/projects/:id/comments", rest.ListComments)
	app.Post("/projects/:id/comments", rest.CreateComment)
	app.Delete("/comments/:id", rest.DeleteComment)

	app.Get("/projects/:id/notes", rest.ListNotes)
	app.Post("/projects/:id/notes", rest.CreateNote)
	app.Put("/notes/:id", rest.UpdateNote)
	app.Delete("/notes/:id", rest.DeleteNote)

	app.Get("/projects/:id/nps", rest.ListNpsResponses)
	app.Post("/projects/:id/nps", rest.CreateNpsResponse)

	return rest
}

func (handler *Engagement) ListComments(c *fiber.Ctx) error {
	comments, err := handler.Comments.ListByProject(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Fetch comments success",
		Results: comments,
	})
}

func (handler *Engagement) CreateComment(c *fiber.Ctx) error {
	var request domainComment.CreateCommentRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)
	request.ProjectID = c.Params("id")

	utils.PanicIfNeeded(validations.ValidateCreateComment(c.UserContext(), request))

	created, err := handler.Comments.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Comment created",
		Results: created,
	})
}

func (handler *Engagement) DeleteComment(c *fiber.Ctx) error {
	err := handler.Comments.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Comment deleted",
		Results: nil,
	})
}

func (handler *Engagement) ListNotes(c *fiber.Ctx) error {
	notes, err := handler.Notes.ListByProject(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Fetch notes success",
		Results: notes,
	})
}

func (handler *Engagement) CreateNote(c *fiber.Ctx) error {
	var request domainNote.CreateNoteRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)
	request.ProjectID = c.Params("id")

	utils.PanicIfNeeded(validations.ValidateCreateNote(c.UserContext(), request))

	created, err := handler.Notes.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Note created",
		Results: created,
	})
}

func (handler *Engagement) UpdateNote(c *fiber.Ctx) error {
	var request domainNote.UpdateNoteRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	updated, err := handler.Notes.Update(c.UserContext(), c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Note updated",
		Results: updated,
	})
}

func (handler *Engagement) DeleteNote(c *fiber.Ctx) error {
	err := handler.Notes.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Note deleted",
		Results: nil,
	})
}

func (handler *Engagement) ListNpsResponses(c *fiber.Ctx) error {
	responses, err := handler.Nps.ListByProject(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Fetch NPS responses success",
		Results: responses,
	})
}

func (handler *Engagement) CreateNpsResponse(c *fiber.Ctx) error {
	var request domainNps.CreateResponseRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)
	request.ProjectID = c.Params("id")

	utils.PanicIfNeeded(validations.ValidateCreateNpsResponse(c.UserContext(), request))

	created, err := handler.Nps.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "NPS response recorded",
		Results: created,
	})
}
