package controller

import (
	"ai-study-portal-be/internal/dto"
	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/pkg/serverutils"
	"ai-study-portal-be/internal/service"
	internalWS "ai-study-portal-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	UpdateDocuments(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	Watch(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	hub         *internalWS.Hub
	identity    fiber.Handler
	logger      logger.ILogger
}

// NewChatController builds the chat routes. hub may be nil, which disables
// the websocket endpoint.
func NewChatController(chatService service.IChatService, hub *internalWS.Hub, identity fiber.Handler, log logger.ILogger) IChatController {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &chatController{
		chatService: chatService,
		hub:         hub,
		identity:    identity,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(c.identity)
	h.Post("/session", c.CreateSession)
	h.Get("/sessions", c.ListSessions)
	h.Get("/session/:id", c.GetSession)
	h.Put("/session/:id/documents", c.UpdateDocuments)
	h.Delete("/session/:id", c.DeleteSession)
	h.Post("/message", c.SendMessage)
	h.Get("/ws/chat/:id", c.Watch)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.CreateSession(ctx.UserContext(), serverutils.Owner(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	res, err := c.chatService.ListSessions(ctx.UserContext(), serverutils.Owner(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.chatService.GetSession(ctx.UserContext(), serverutils.Owner(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) UpdateDocuments(ctx *fiber.Ctx) error {
	var req dto.UpdateDocumentsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.UpdateDocuments(ctx.UserContext(), serverutils.Owner(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update documents", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	if err := c.chatService.DeleteSession(ctx.UserContext(), serverutils.Owner(ctx), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete session", nil))
}

// SendMessage runs one turn. Failures of the turn itself (no context,
// provider down, unusable output) are still a 200 with a failure result.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendMessage(ctx.UserContext(), serverutils.Owner(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

// Watch upgrades to a websocket that receives every completed turn of the session
func (c *chatController) Watch(ctx *fiber.Ctx) error {
	if c.hub == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "real-time updates are disabled")
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	sessionID := ctx.Params("id")
	owner := serverutils.Owner(ctx)
	if !c.chatService.CanWatch(ctx.UserContext(), owner, sessionID) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("ChatController", "Watcher connected", map[string]interface{}{"session_id": sessionID, "owner": owner})
		internalWS.ServeWs(c.hub, conn, sessionID)
		c.logger.Info("ChatController", "Watcher disconnected", map[string]interface{}{"session_id": sessionID})
	})(ctx)
}
