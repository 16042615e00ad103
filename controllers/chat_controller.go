package controller

import (
	"foundermatch/middleware"
	"foundermatch/models"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
)

type PostMessageRequest struct {
	Content     string             `json:"content" validate:"required,max=10000"`
	MessageType models.MessageType `json:"message_type"`
}

type ChatController struct {
	Chats *services.ChatService
}

// ListChats supports ?type=direct|team and ?include_inactive=true
func (cc *ChatController) ListChats(c *fiber.Ctx) error {
	filter := services.ChatFilter{
		ChatType:        models.ChatType(c.Query("type")),
		IncludeInactive: c.QueryBool("include_inactive", false),
	}
	if filter.ChatType != "" && !filter.ChatType.Valid() {
		return utils.ErrorResponse(c, fiber.NewError(fiber.StatusBadRequest, "type must be direct or team"))
	}

	chats, err := cc.Chats.ListChats(c.UserContext(), middleware.CurrentUserID(c), filter)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(chats))
}

// CreateChat resolves the chat for the requested participants, creating it
// on first use
func (cc *ChatController) CreateChat(c *fiber.Ctx) error {
	var req services.ChatRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	chat, created, err := cc.Chats.ResolveOrCreateChat(c.UserContext(), middleware.CurrentUserID(c), req)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(utils.SuccessResponse(fiber.Map{
		"chat":    chat,
		"created": created,
	}))
}

func (cc *ChatController) ListMessages(c *fiber.Ctx) error {
	chatID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	messages, err := cc.Chats.ListMessages(c.UserContext(), chatID, middleware.CurrentUserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(messages))
}

func (cc *ChatController) PostMessage(c *fiber.Ctx) error {
	chatID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	var req PostMessageRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	message, err := cc.Chats.PostMessage(c.UserContext(), chatID, middleware.CurrentUserID(c), req.Content, req.MessageType)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(message))
}
