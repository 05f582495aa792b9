package socialclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const scriptedToken = "scripted-token"

// scriptedServer answers each inbound frame with whatever respond writes.
func scriptedServer(t *testing.T, respond func(ws *websocket.Conn, f frame)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+scriptedToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var f frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			respond(ws, f)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialScripted(t *testing.T, url string, timeout time.Duration) *RealtimeChannel {
	t.Helper()
	rc, err := DialRealtime(context.Background(), url, scriptedToken, timeout, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func writeFrame(ws *websocket.Conn, event, ref string, data any) {
	raw, _ := json.Marshal(data)
	_ = ws.WriteJSON(frame{Event: event, Ref: ref, Data: raw})
}

func TestRealtimeCallCorrelatesResponses(t *testing.T) {
	url := scriptedServer(t, func(ws *websocket.Conn, f frame) {
		// a push and an unrelated response arrive before the real answer
		writeFrame(ws, PushMessageReceived, "", map[string]any{"id": 99})
		writeFrame(ws, f.Event+":ok", "someone-else", countResult{Count: 1})
		writeFrame(ws, f.Event+":ok", f.Ref, countResult{Count: 42})
	})
	rc := dialScripted(t, url, time.Second)

	var mu sync.Mutex
	var pushes []json.RawMessage
	unsubscribe := rc.Subscribe(PushMessageReceived, func(data json.RawMessage) {
		mu.Lock()
		pushes = append(pushes, data)
		mu.Unlock()
	})

	n, err := rc.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, 0, rc.pendingCount())

	mu.Lock()
	assert.Len(t, pushes, 1)
	mu.Unlock()

	unsubscribe()
	_, err = rc.UnreadCount(context.Background())
	require.NoError(t, err)
	mu.Lock()
	assert.Len(t, pushes, 1)
	mu.Unlock()
}

func TestRealtimeErrorFrame(t *testing.T) {
	url := scriptedServer(t, func(ws *websocket.Conn, f frame) {
		writeFrame(ws, eventError, f.Ref, errorData{
			Event:   f.Event,
			Message: "you can only send messages to friends",
			Code:    "forbidden",
			Hint:    "send_friend_request",
		})
	})
	rc := dialScripted(t, url, time.Second)

	_, err := rc.SendMessage(context.Background(), 2, "hi")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "forbidden", remote.Code)
	assert.Equal(t, "send_friend_request", remote.Hint)
	assert.Equal(t, eventSendMessage, remote.Event)
	assert.False(t, unavailable(err))
	assert.Equal(t, 0, rc.pendingCount())
}

func TestRealtimeTimeoutReleasesPendingCall(t *testing.T) {
	url := scriptedServer(t, func(*websocket.Conn, frame) {})
	rc := dialScripted(t, url, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := rc.ListConversations(context.Background())
		require.ErrorIs(t, err, ErrTimeout)
		assert.True(t, unavailable(err))
		assert.False(t, notSent(err))
		assert.Equal(t, 0, rc.pendingCount())
	}
	assert.True(t, rc.Alive())
}

func TestRealtimeCloseFailsCalls(t *testing.T) {
	url := scriptedServer(t, func(ws *websocket.Conn, _ frame) {
		_ = ws.Close()
	})
	rc := dialScripted(t, url, 5*time.Second)

	_, err := rc.ListFriends(context.Background())
	require.ErrorIs(t, err, ErrReplyLost)
	assert.True(t, mayHaveApplied(err))
	assert.False(t, notSent(err))
	assert.Equal(t, 0, rc.pendingCount())

	select {
	case <-rc.Closed():
	case <-time.After(time.Second):
		t.Fatal("channel did not report closure")
	}
	_, err = rc.ListFriends(context.Background())
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.True(t, notSent(err))
}

func TestDialRealtimeRejectsBadToken(t *testing.T) {
	url := scriptedServer(t, func(*websocket.Conn, frame) {})
	_, err := DialRealtime(context.Background(), url, "wrong", time.Second, zap.NewNop())

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "unauthenticated", remote.Code)
	assert.Equal(t, http.StatusUnauthorized, remote.Status)
}

func TestRESTChannelDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/messages/unread-count":
			_, _ = w.Write([]byte(`{"count":3}`))
		case "/api/v1/friends/5":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"error":{"message":"friend request already sent","code":"conflict"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	rest := NewRESTChannel(srv.URL+"/", "tok", nil, time.Second)

	n, err := rest.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, rest.RemoveFriend(context.Background(), 5))

	_, err = rest.SendFriendRequest(context.Background(), 2)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "conflict", remote.Code)
	assert.Equal(t, http.StatusConflict, remote.Status)
}
