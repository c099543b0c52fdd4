// FILE: internal/controller/subscription_controller.go
package controller

import (
	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/pkg/serverutils"
	"subscription-billing-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISubscriptionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Get(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Pause(ctx *fiber.Ctx) error
	Resume(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	UpdatePaymentMethod(ctx *fiber.Ctx) error
	BillingHistory(ctx *fiber.Ctx) error
}

type subscriptionController struct {
	service service.ISubscriptionService
}

func NewSubscriptionController(service service.ISubscriptionService) ISubscriptionController {
	return &subscriptionController{service: service}
}

func (c *subscriptionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/subscriptions", serverutils.JwtMiddleware)
	h.Post("/", c.Create)
	h.Get("/", c.List)
	h.Get("/:id", c.Get)
	h.Post("/:id/pause", c.Pause)
	h.Post("/:id/resume", c.Resume)
	h.Post("/:id/cancel", c.Cancel)
	h.Put("/:id/payment-method", c.UpdatePaymentMethod)
	h.Get("/:id/billing-history", c.BillingHistory)
}

func (c *subscriptionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSubscriptionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	customerId, email, err := callerIdentity(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.CreateSubscription(ctx.Context(), customerId, email, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Subscription created", res))
}

func (c *subscriptionController) Get(ctx *fiber.Ctx) error {
	customerId, subscriptionId, err := callerAndSubscription(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSubscription(ctx.Context(), customerId, subscriptionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription retrieved", res))
}

func (c *subscriptionController) List(ctx *fiber.Ctx) error {
	customerId, _, err := callerIdentity(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ListSubscriptions(ctx.Context(), customerId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscriptions retrieved", res))
}

func (c *subscriptionController) Pause(ctx *fiber.Ctx) error {
	customerId, subscriptionId, err := callerAndSubscription(ctx)
	if err != nil {
		return err
	}

	if err := c.service.PauseSubscription(ctx.Context(), customerId, subscriptionId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription paused", nil))
}

func (c *subscriptionController) Resume(ctx *fiber.Ctx) error {
	customerId, subscriptionId, err := callerAndSubscription(ctx)
	if err != nil {
		return err
	}

	if err := c.service.ResumeSubscription(ctx.Context(), customerId, subscriptionId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription resumed", nil))
}

func (c *subscriptionController) Cancel(ctx *fiber.Ctx) error {
	customerId, subscriptionId, err := callerAndSubscription(ctx)
	if err != nil {
		return err
	}

	if err := c.service.CancelSubscription(ctx.Context(), customerId, subscriptionId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription cancelled", nil))
}

func (c *subscriptionController) UpdatePaymentMethod(ctx *fiber.Ctx) error {
	var req dto.UpdatePaymentMethodRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	customerId, subscriptionId, err := callerAndSubscription(ctx)
	if err != nil {
		return err
	}

	if err := c.service.UpdatePaymentMethod(ctx.Context(), customerId, subscriptionId, &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Payment method updated", nil))
}

func (c *subscriptionController) BillingHistory(ctx *fiber.Ctx) error {
	customerId, subscriptionId, err := callerAndSubscription(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetBillingHistory(ctx.Context(), customerId, subscriptionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Billing history retrieved", res))
}

func callerIdentity(ctx *fiber.Ctx) (uuid.UUID, string, error) {
	idStr, _ := ctx.Locals("customer_id").(string)
	customerId, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, "", fiber.NewError(fiber.StatusUnauthorized, "invalid customer identity")
	}
	email, _ := ctx.Locals("email").(string)
	return customerId, email, nil
}

func callerAndSubscription(ctx *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	customerId, _, err := callerIdentity(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	subscriptionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid subscription id")
	}
	return customerId, subscriptionId, nil
}
