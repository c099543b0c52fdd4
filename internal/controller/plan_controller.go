// FILE: internal/controller/plan_controller.go
package controller

import (
	"subscription-billing-be/internal/pkg/serverutils"
	"subscription-billing-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPlanController interface {
	RegisterRoutes(r fiber.Router)
	GetPlans(ctx *fiber.Ctx) error
	GetPlan(ctx *fiber.Ctx) error
}

type planController struct {
	service service.IPlanService
}

func NewPlanController(service service.IPlanService) IPlanController {
	return &planController{service: service}
}

func (c *planController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/plans")
	h.Get("/", c.GetPlans)
	h.Get("/:planId", c.GetPlan)
}

func (c *planController) GetPlans(ctx *fiber.Ctx) error {
	res, err := c.service.GetPlans(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Plans retrieved", res))
}

func (c *planController) GetPlan(ctx *fiber.Ctx) error {
	res, err := c.service.GetPlan(ctx.Context(), ctx.Params("planId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Plan retrieved", res))
}
