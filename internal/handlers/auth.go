package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/auth"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FirebaseLoginRequest represents the request body for Firebase token exchange
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// TokenResponse carries a session token for both the REST and realtime channels
type TokenResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      models.UserSummary `json:"user"`
}

// AuthHandler exchanges a Firebase ID token for a local JWT
type AuthHandler struct {
	firebase  *auth.FirebaseVerifier
	users     repositories.UserRepository
	jwtSecret string
	ttl       time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(firebase *auth.FirebaseVerifier, users repositories.UserRepository, jwtSecret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{
		firebase:  firebase,
		users:     users,
		jwtSecret: jwtSecret,
		ttl:       ttl,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// FirebaseLogin verifies a Firebase ID token for a linked directory user and
// returns a local JWT. Users are never created here.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	principal, err := h.firebase.Verify(c.Request().Context(), req.IDToken)
	if err != nil {
		return err
	}
	user, err := h.users.GetUserByID(c.Request().Context(), principal.UserID)
	if err != nil {
		return apperr.Unauthenticated("no user is linked to this identity")
	}

	expiresAt := time.Now().Add(h.ttl)
	token, err := auth.IssueToken(h.jwtSecret, user, h.ttl)
	if err != nil {
		return apperr.Internal(err, "could not issue token")
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt, User: user.ToSummary()})
}
