package controller

import (
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
)

type CreateOrderRequest struct {
	Plan string `json:"plan" validate:"required"`
}

type PaymentController struct {
	Payments *services.PaymentService
}

func (pc *PaymentController) ListPlans(c *fiber.Ctx) error {
	plans, err := pc.Payments.ListPlans(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(plans))
}

func (pc *PaymentController) CreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	order, err := pc.Payments.CreateOrder(c.UserContext(), middleware.CurrentUserID(c), req.Plan)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(order))
}

// HandleWebhook receives gateway events. It is not behind Protected; the
// signature header is the only authentication.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	order, err := pc.Payments.HandleCallback(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	if order == nil {
		return c.JSON(utils.SuccessResponse(fiber.Map{"received": true}))
	}

	utils.LogEvent("payment_webhook_processed", map[string]interface{}{
		"order_id": order.OrderID,
		"status":   order.Status,
	})
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"received": true,
		"order_id": order.OrderID,
		"status":   order.Status,
	}))
}
