// Package auth resolves bearer tokens to a stable user id. Token issuance
// belongs to the identity service; IssueToken exists for tooling and tests.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
)

// Principal is an authenticated caller
type Principal struct {
	UserID uint
	Email  string
}

// Verifier turns a raw token into a Principal. Failures are apperr Unauthenticated errors.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// JWTVerifier validates HS256 tokens signed with a shared secret
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (*Principal, error) {
	if tokenString == "" {
		return nil, apperr.Unauthenticated("missing token")
	}

	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthenticated("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Unauthenticated("invalid token")
	}
	if claims.UserID == 0 {
		return nil, apperr.Unauthenticated("token has no user id")
	}
	return &Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

// IssueToken signs a token for user that expires after ttl
func IssueToken(secret string, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (*Principal, error) {
	var lastErr error = apperr.Unauthenticated("missing token")
	for _, v := range c {
		p, err := v.Verify(ctx, token)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the "token" query parameter used by browser websockets.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
