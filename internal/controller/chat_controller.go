package controller

import (
	"ai-chat-core/internal/dto"
	"ai-chat-core/internal/pkg/serverutils"
	"ai-chat-core/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Send(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	StreamingStatus(ctx *fiber.Ctx) error
	CacheExtraction(ctx *fiber.Ctx) error
	CacheHealth(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	RenameSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("send", c.Send)
	h.Post("cancel/:sessionId", c.Cancel)
	h.Get("streaming/:sessionId", c.StreamingStatus)
	h.Post("extraction", c.CacheExtraction)
	h.Get("cache/health", c.CacheHealth)
	h.Post("session", c.CreateSession)
	h.Put("session/:sessionId/title", c.RenameSession)
	h.Delete("session/:sessionId", c.DeleteSession)
}

func currentUserId(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	return userId
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendMessage(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) Cancel(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")
	c.chatService.CancelStream(sessionId)
	return ctx.JSON(serverutils.SuccessResponse[any]("Success cancel stream", nil))
}

func (c *chatController) StreamingStatus(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")
	return ctx.JSON(serverutils.SuccessResponse("Success get streaming status", dto.StreamingStatusResponse{
		SessionId: sessionId,
		Streaming: c.chatService.IsStreaming(sessionId),
	}))
}

func (c *chatController) CacheExtraction(ctx *fiber.Ctx) error {
	var req dto.CacheExtractionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.CacheExtraction(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cache extraction", res))
}

func (c *chatController) CacheHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get cache health", c.chatService.CacheHealth(ctx.Context())))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.CreateSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) RenameSession(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId := ctx.Params("sessionId")

	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.chatService.RenameSession(ctx.Context(), userId, sessionId, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success rename session", nil))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userId := currentUserId(ctx)
	sessionId := ctx.Params("sessionId")

	if err := c.chatService.DeleteSession(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}
