package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/rehab-social/backend/internal/middleware"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// Deliverer hands effects to the realtime layer so connected peers see REST mutations.
type Deliverer interface {
	Deliver(ctx context.Context, effects []services.Effect)
}

// FriendshipHandler handles HTTP requests related to friendships
type FriendshipHandler struct {
	friends *services.FriendshipService
	pusher  Deliverer
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(friends *services.FriendshipService, pusher Deliverer) *FriendshipHandler {
	return &FriendshipHandler{friends: friends, pusher: pusher}
}

// RegisterFriendshipRoutes registers friendship-related routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/friends/requests", h.SendFriendRequest)
	g.POST("/friends/requests/:id/accept", h.AcceptFriendRequest)
	g.POST("/friends/requests/:id/reject", h.RejectFriendRequest)
	g.GET("/friends/requests", h.GetFriendRequests)
	g.GET("/friends/requests/pending", h.GetPendingFriendRequests)
	g.GET("/friends/requests/status/:userId", h.GetRequestStatus)
	g.GET("/friends/status/:userId", h.GetFriendStatus)
	g.GET("/friends", h.GetFriends)
	g.DELETE("/friends/:id", h.DeleteFriend) // Unfriend
}

// SendFriendRequest handles sending a friend request
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	var req models.SendFriendRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	out, err := h.friends.SendRequest(c.Request().Context(), middleware.UserID(c), req.ToUserID)
	if err != nil {
		return err
	}
	h.pusher.Deliver(c.Request().Context(), out.Effects)

	status := http.StatusCreated
	if out.Result.Status == models.RequestAccepted {
		status = http.StatusOK
	}
	return c.JSON(status, out.Result)
}

func (h *FriendshipHandler) AcceptFriendRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.friends.AcceptRequest(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	h.pusher.Deliver(c.Request().Context(), out.Effects)
	return c.JSON(http.StatusOK, out.Result)
}

func (h *FriendshipHandler) RejectFriendRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.friends.RejectRequest(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	h.pusher.Deliver(c.Request().Context(), out.Effects)
	return c.JSON(http.StatusOK, map[string]uint{"requestId": out.Result.ID})
}

// GetFriendRequests returns pending requests in both directions
func (h *FriendshipHandler) GetFriendRequests(c echo.Context) error {
	lists, err := h.friends.ListAll(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lists)
}

// GetPendingFriendRequests retrieves pending friend requests for the authenticated user
func (h *FriendshipHandler) GetPendingFriendRequests(c echo.Context) error {
	reqs, err := h.friends.ListPendingIncoming(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reqs)
}

// GetRequestStatus returns the latest request between the caller and :userId
func (h *FriendshipHandler) GetRequestStatus(c echo.Context) error {
	other, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	req, err := h.friends.RequestStatus(c.Request().Context(), middleware.UserID(c), other)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

func (h *FriendshipHandler) GetFriendStatus(c echo.Context) error {
	other, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	status, err := h.friends.GetStatus(c.Request().Context(), middleware.UserID(c), other)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// GetFriends retrieves the list of friends for the authenticated user
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	friends, err := h.friends.ListFriends(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, friends)
}

func (h *FriendshipHandler) DeleteFriend(c echo.Context) error {
	friendID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.friends.Unfriend(c.Request().Context(), middleware.UserID(c), friendID)
	if err != nil {
		return err
	}
	h.pusher.Deliver(c.Request().Context(), out.Effects)
	return c.NoContent(http.StatusNoContent)
}
