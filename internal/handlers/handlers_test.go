package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/auth"
	"github.com/anonto42/rehab-social/backend/internal/middleware"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/anonto42/rehab-social/backend/internal/services"
	"github.com/anonto42/rehab-social/backend/internal/testutil"
	"github.com/anonto42/rehab-social/backend/internal/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type recordingDeliverer struct {
	mu      sync.Mutex
	effects []services.Effect
}

func (r *recordingDeliverer) Deliver(_ context.Context, effects []services.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
}

func (r *recordingDeliverer) kinds(user uint) []services.EffectKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []services.EffectKind
	for _, e := range r.effects {
		if e.UserID == user {
			out = append(out, e.Kind)
		}
	}
	return out
}

type server struct {
	e      *echo.Echo
	users  []models.User
	pushes *recordingDeliverer
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()

	userRepo := repositories.NewPostgresUserRepository(db)
	friends := services.NewFriendshipService(repositories.NewTransactor(db), repositories.NewPostgresFriendshipRepository(db), userRepo, log)
	messages := services.NewMessageService(repositories.NewPostgresMessageRepository(db), userRepo, friends, 0, log)
	pushes := &recordingDeliverer{}

	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = ErrorHandler(log)
	e.GET("/health", HealthCheck(db))
	api := e.Group("/api/v1", middleware.Authenticate(auth.NewJWTVerifier(testSecret)))
	NewFriendshipHandler(friends, pushes).RegisterFriendshipRoutes(api)
	NewMessageHandler(messages, pushes).RegisterMessageRoutes(api)
	NewUserHandler(userRepo).RegisterProfileRoutes(api)

	return &server{e: e, users: testutil.SeedUsers(t, db, "alice", "bob", "carol"), pushes: pushes}
}

func (s *server) do(t *testing.T, as *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = strings.NewReader(string(raw))
	} else {
		payload = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if as != nil {
		token, err := auth.IssueToken(testSecret, as, time.Hour)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestUnauthenticatedRequest(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, nil, http.MethodGet, "/api/v1/friends", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "unauthenticated", body.Error.Code)
}

func TestFriendRequestFlow(t *testing.T) {
	s := newServer(t)
	alice, bob := &s.users[0], &s.users[1]

	rec := s.do(t, alice, http.MethodPost, "/api/v1/friends/requests", map[string]uint{"toUserId": bob.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[models.FriendRequest](t, rec)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Contains(t, s.pushes.kinds(bob.ID), services.EffectRequestReceived)

	rec = s.do(t, alice, http.MethodPost, "/api/v1/friends/requests", map[string]uint{"toUserId": bob.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, bob, http.MethodGet, "/api/v1/friends/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lists := decode[models.RequestLists](t, rec)
	require.Len(t, lists.Incoming, 1)
	assert.Empty(t, lists.Outgoing)
	require.NotNil(t, lists.Incoming[0].FromUser)
	assert.Equal(t, "A", lists.Incoming[0].FromUser.Avatar)

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/api/v1/friends/status/%d", alice.ID), nil)
	status := decode[models.FriendStatus](t, rec)
	assert.Equal(t, models.StatusRequestReceived, status.Status)

	// only the recipient may accept
	path := fmt.Sprintf("/api/v1/friends/requests/%d/accept", req.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, alice, http.MethodPost, path, nil).Code)

	rec = s.do(t, bob, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.RequestAccepted, decode[models.FriendRequest](t, rec).Status)
	assert.Contains(t, s.pushes.kinds(alice.ID), services.EffectRequestAccepted)

	rec = s.do(t, alice, http.MethodGet, "/api/v1/friends", nil)
	friends := decode[[]models.FriendEntry](t, rec)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].Friend.ID)

	rec = s.do(t, alice, http.MethodGet, fmt.Sprintf("/api/v1/friends/requests/status/%d", bob.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, alice, http.MethodDelete, fmt.Sprintf("/api/v1/friends/%d", bob.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, alice, http.MethodDelete, fmt.Sprintf("/api/v1/friends/%d", bob.ID), nil).Code)
}

func TestRejectFriendRequest(t *testing.T) {
	s := newServer(t)
	alice, carol := &s.users[0], &s.users[2]

	rec := s.do(t, alice, http.MethodPost, "/api/v1/friends/requests", map[string]uint{"toUserId": carol.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[models.FriendRequest](t, rec)
	before := len(s.pushes.kinds(alice.ID))

	path := fmt.Sprintf("/api/v1/friends/requests/%d/reject", req.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, alice, http.MethodPost, path, nil).Code)

	rec = s.do(t, carol, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]uint{"requestId": req.ID}, decode[map[string]uint](t, rec))
	carolKinds := s.pushes.kinds(carol.ID)
	assert.Equal(t, services.EffectRequestsChanged, carolKinds[len(carolKinds)-1])
	assert.Len(t, s.pushes.kinds(alice.ID), before)

	assert.Equal(t, http.StatusConflict, s.do(t, carol, http.MethodPost, path, nil).Code)

	rec = s.do(t, alice, http.MethodGet, fmt.Sprintf("/api/v1/friends/requests/status/%d", carol.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RequestRejected, decode[models.FriendRequest](t, rec).Status)
}

func TestSendFriendRequestValidation(t *testing.T) {
	s := newServer(t)
	alice := &s.users[0]

	tests := []struct {
		name string
		body any
		code int
	}{
		{"missing target", map[string]any{}, http.StatusBadRequest},
		{"self", map[string]uint{"toUserId": alice.ID}, http.StatusBadRequest},
		{"unknown user", map[string]uint{"toUserId": 9999}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, alice, http.MethodPost, "/api/v1/friends/requests", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, alice, http.MethodPost, "/api/v1/friends/requests/abc/accept", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessagingFlow(t *testing.T) {
	s := newServer(t)
	alice, bob, carol := &s.users[0], &s.users[1], &s.users[2]

	// alice has a pending request to carol: the hint tells carol to accept it
	s.do(t, alice, http.MethodPost, "/api/v1/friends/requests", map[string]uint{"toUserId": carol.ID})
	rec := s.do(t, carol, http.MethodPost, "/api/v1/messages", map[string]any{"toUserId": alice.ID, "content": "hey"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "forbidden", body.Error.Code)
	assert.Equal(t, services.HintAcceptFriendRequest, body.Error.Hint)

	rec = s.do(t, alice, http.MethodPost, "/api/v1/friends/requests", map[string]uint{"toUserId": bob.ID})
	req := decode[models.FriendRequest](t, rec)
	s.do(t, bob, http.MethodPost, fmt.Sprintf("/api/v1/friends/requests/%d/accept", req.ID), nil)

	for _, content := range []string{"one", "two", "three"} {
		rec = s.do(t, alice, http.MethodPost, "/api/v1/messages", map[string]any{"toUserId": bob.ID, "content": content})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Contains(t, s.pushes.kinds(bob.ID), services.EffectMessageReceived)

	rec = s.do(t, bob, http.MethodGet, "/api/v1/messages/unread-count", nil)
	assert.Equal(t, int64(3), decode[map[string]int64](t, rec)["count"])

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/api/v1/messages/conversations/%d?limit=2", alice.ID), nil)
	msgs := decode[[]models.Message](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/api/v1/messages/conversations/%d?limit=zero", alice.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the sender cannot mark their own message read
	rec = s.do(t, alice, http.MethodPut, fmt.Sprintf("/api/v1/messages/%d/read", msgs[0].ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, bob, http.MethodPut, fmt.Sprintf("/api/v1/messages/%d/read", msgs[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Message](t, rec).Read)

	rec = s.do(t, bob, http.MethodGet, "/api/v1/messages/conversations", nil)
	convs := decode[[]models.ConversationSummary](t, rec)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(2), convs[0].UnreadCount)
	assert.Equal(t, "three", convs[0].LastMessage)

	rec = s.do(t, bob, http.MethodPut, fmt.Sprintf("/api/v1/messages/conversations/%d/read", alice.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["updated"])

	rec = s.do(t, bob, http.MethodGet, "/api/v1/messages/unread-count", nil)
	assert.Equal(t, int64(0), decode[map[string]int64](t, rec)["count"])
}

func TestGetProfile(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, &s.users[1], http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", decode[models.UserSummary](t, rec).Name)

	assert.Equal(t, http.StatusNotFound, s.do(t, &s.users[1], http.MethodGet, "/api/v1/users/4242", nil).Code)
}
