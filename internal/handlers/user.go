package handlers

import (
	"net/http"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/middleware"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserHandler exposes read-only directory lookups
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile) // own profile
	g.GET("/users/:id", h.GetUser)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.render(c, id)
}

// GetProfile returns the authenticated user's summary
func (h *UserHandler) GetProfile(c echo.Context) error {
	return h.render(c, middleware.UserID(c))
}

func (h *UserHandler) render(c echo.Context, id uint) error {
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user %d not found", id)
		}
		return apperr.Internal(err, "could not load user")
	}
	return c.JSON(http.StatusOK, user.ToSummary())
}
