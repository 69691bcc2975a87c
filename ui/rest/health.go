package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rcvieira/fluxo/core/config"
	domainHealth "github.com/rcvieira/fluxo/domains/health"
	"github.com/rcvieira/fluxo/pkg/utils"
)

type Health struct {
	Service domainHealth.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service domainHealth.IHealthUsecase) Health {
	rest := Health{Service: service}
	app.Get("/health", rest.Check)
	app.Get("/settings", rest.Settings)
	return rest
}

func (handler *Health) Check(c *fiber.Ctx) error {
	status, err := handler.Service.Check(c.UserContext())
	utils.PanicIfNeeded(err)

	httpStatus := 200
	if status.Status != "ok" {
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(utils.ResponseData{
		Status:  httpStatus,
		Code:    "SUCCESS",
		Message: "Health check",
		Results: status,
	})
}

func (handler *Health) Settings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Current settings",
		Results: config.GetAllSettings(),
	})
}
