package services

import (
	"context"
	"testing"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/anonto42/rehab-social/backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	friends  *FriendshipService
	messages *MessageService
	users    []models.User
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()

	userRepo := repositories.NewPostgresUserRepository(db)
	friends := NewFriendshipService(
		repositories.NewTransactor(db),
		repositories.NewPostgresFriendshipRepository(db),
		userRepo,
		log,
	)
	messages := NewMessageService(repositories.NewPostgresMessageRepository(db), userRepo, friends, 0, log)

	return &fixture{
		db:       db,
		friends:  friends,
		messages: messages,
		users:    testutil.SeedUsers(t, db, names...),
	}
}

func (f *fixture) befriend(t *testing.T, a, b uint) {
	t.Helper()
	ctx := context.Background()
	out, err := f.friends.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = f.friends.AcceptRequest(ctx, out.Result.ID, b)
	require.NoError(t, err)
}

func (f *fixture) countRequests(t *testing.T, status models.RequestStatus) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(&models.FriendRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) countFriendships(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Friendship{}).Count(&n).Error)
	return n
}

func effectKinds(effects []Effect, user uint) []EffectKind {
	var kinds []EffectKind
	for _, e := range effects {
		if e.UserID == user {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}
