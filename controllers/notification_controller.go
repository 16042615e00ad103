package controller

import (
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
)

type NotificationActionRequest struct {
	Action services.Action `json:"action" validate:"required,oneof=mark_read accept_connection reject_connection approve_join decline_join"`
}

type NotificationController struct {
	Notifications *services.NotificationService
}

// ListNotifications supports ?unread=true and ?limit=N
func (nc *NotificationController) ListNotifications(c *fiber.Ctx) error {
	opts := services.ListOptions{
		UnreadOnly: c.QueryBool("unread", false),
		Limit:      c.QueryInt("limit", services.DefaultNotificationLimit),
	}

	notifications, err := nc.Notifications.List(c.UserContext(), middleware.CurrentUserID(c), opts)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(notifications))
}

func (nc *NotificationController) UnreadCount(c *fiber.Ctx) error {
	count, err := nc.Notifications.UnreadCount(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"unread": count}))
}

func (nc *NotificationController) MarkAllRead(c *fiber.Ctx) error {
	updated, err := nc.Notifications.MarkAllRead(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"updated": updated}))
}

func (nc *NotificationController) ApplyAction(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	var req NotificationActionRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	result, err := nc.Notifications.ApplyAction(c.UserContext(), id, middleware.CurrentUserID(c), req.Action)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(result))
}
