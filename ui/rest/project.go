package rest

import (
	"github.com/gofiber/fiber/v2"
	domainProject "github.com/rcvieira/fluxo/domains/project"
	"github.com/rcvieira/fluxo/pkg/utils"
	"github.com/rcvieira/fluxo/validations"
)

type Project struct {
	Service domainProject.IProjectUsecase
}

func InitRestProject(app fiber.Router, service domainProject.IProjectUsecase) Project {
	rest := Project{Service: service}
	app.Get("/projects", rest.List)
	app.Post("/projects", rest.Create)
	app.Get("/projects/:id", rest.Get)
	app.Put("/projects/:id", rest.Update)
	app.Put("/projects/:id/status", rest.UpdateStatus)
	app.Delete("/projects/:id", rest.Delete)
	app.Get("/portal/:token", rest.PortalView)
	return rest
}

func (handler *Project) List(c *fiber.Ctx) error {
	projects, err := handler.Service.List(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Fetch projects success",
		Results: projects,
	})
}

func (handler *Project) Create(c *fiber.Ctx) error {
	var request domainProject.CreateProjectRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateCreateProject(c.UserContext(), request))

	created, err := handler.Service.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Project created",
		Results: created,
	})
}

func (handler *Project) Get(c *fiber.Ctx) error {
	found, err := handler.Service.GetByID(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Fetch project success",
		Results: found,
	})
}

func (handler *Project) Update(c *fiber.Ctx) error {
	var request domainProject.UpdateProjectRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	updated, err := handler.Service.Update(c.UserContext(), c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Project updated",
		Results: updated,
	})
}

func (handler *Project) UpdateStatus(c *fiber.Ctx) error {
	var request domainProject.UpdateStatusRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateUpdateStatus(c.UserContext(), request))

	updated, err := handler.Service.UpdateStatus(c.UserContext(), c.Params("id"), request.Status)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Project status updated",
		Results: updated,
	})
}

func (handler *Project) Delete(c *fiber.Ctx) error {
	err := handler.Service.Delete(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Project deleted",
		Results: nil,
	})
}

// PortalView resolves a tokenized client review link to its project.
func (handler *Project) PortalView(c *fiber.Ctx) error {
	found, err := handler.Service.GetByPortalToken(c.UserContext(), c.Params("token"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Fetch portal project success",
		Results: found,
	})
}
