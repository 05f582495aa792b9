package auth

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
)

// IDTokenVerifier is the part of the Firebase auth client used here
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier accepts Firebase ID tokens and maps the Firebase UID to a directory user
type FirebaseVerifier struct {
	client IDTokenVerifier
	users  repositories.UserRepository
}

func NewFirebaseVerifier(client IDTokenVerifier, users repositories.UserRepository) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, users: users}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	if idToken == "" {
		return nil, apperr.Unauthenticated("missing token")
	}
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid or expired ID token")
	}
	user, err := v.users.GetUserByFirebaseUID(ctx, token.UID)
	if err != nil {
		return nil, apperr.Unauthenticated("no user is linked to this identity")
	}
	return &Principal{UserID: user.ID, Email: user.Email}, nil
}
