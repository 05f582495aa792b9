package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/middleware"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles HTTP requests related to direct messages
type MessageHandler struct {
	messages *services.MessageService
	pusher   Deliverer
}

func NewMessageHandler(messages *services.MessageService, pusher Deliverer) *MessageHandler {
	return &MessageHandler{messages: messages, pusher: pusher}
}

// RegisterMessageRoutes registers message-related routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/messages", h.SendMessage)
	g.GET("/messages/conversations", h.GetConversations)
	g.GET("/messages/conversations/:userId", h.GetMessages)
	g.PUT("/messages/conversations/:userId/read", h.MarkConversationRead)
	g.PUT("/messages/:id/read", h.MarkMessageRead)
	g.GET("/messages/unread-count", h.GetUnreadCount)
}

func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req models.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := h.messages.Send(c.Request().Context(), middleware.UserID(c), req.ToUserID, req.Content)
	if err != nil {
		return err
	}
	h.pusher.Deliver(c.Request().Context(), out.Effects)
	return c.JSON(http.StatusCreated, out.Result)
}

func (h *MessageHandler) GetConversations(c echo.Context) error {
	convs, err := h.messages.ListConversations(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convs)
}

// GetMessages returns the latest messages with :userId, oldest first. ?limit= caps the count.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	other, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			return apperr.InvalidRequest("invalid limit")
		}
	}
	msgs, err := h.messages.GetConversation(c.Request().Context(), middleware.UserID(c), other, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandler) MarkMessageRead(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msg, err := h.messages.MarkRead(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) MarkConversationRead(c echo.Context) error {
	other, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	updated, err := h.messages.MarkConversationRead(c.Request().Context(), middleware.UserID(c), other)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"otherUserId": other, "updated": updated})
}

func (h *MessageHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.messages.UnreadCount(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}
