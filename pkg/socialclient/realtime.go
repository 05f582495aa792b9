package socialclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds every request/response exchange.
const DefaultRequestTimeout = 10 * time.Second

// PushHandler receives the raw payload of a push event.
type PushHandler func(data json.RawMessage)

type subscription struct {
	event string
	fn    PushHandler
}

// RealtimeChannel is a websocket connection to the gateway with
// ref-correlated calls and push subscriptions.
type RealtimeChannel struct {
	ws      *websocket.Conn
	timeout time.Duration
	log     *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame
	subs    map[uint64]subscription
	nextSub uint64

	closed    chan struct{}
	closeOnce sync.Once
}

// DialRealtime connects to wsURL (ws:// or wss://, ending in /ws) with token as bearer credentials.
func DialRealtime(ctx context.Context, wsURL, token string, timeout time.Duration, log *zap.Logger) (*RealtimeChannel, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &RemoteError{Code: "unauthenticated", Message: "realtime handshake rejected", Status: resp.StatusCode}
		}
		return nil, errors.Wrap(err, "dial realtime gateway")
	}

	rc := &RealtimeChannel{
		ws:      ws,
		timeout: timeout,
		log:     log,
		pending: make(map[string]chan frame),
		subs:    make(map[uint64]subscription),
		closed:  make(chan struct{}),
	}
	go rc.readLoop()
	return rc, nil
}

// Subscribe registers fn for pushes of event and returns a function that removes it.
func (rc *RealtimeChannel) Subscribe(event string, fn PushHandler) func() {
	rc.mu.Lock()
	id := rc.nextSub
	rc.nextSub++
	rc.subs[id] = subscription{event: event, fn: fn}
	rc.mu.Unlock()

	return func() {
		rc.mu.Lock()
		delete(rc.subs, id)
		rc.mu.Unlock()
	}
}

// Closed is closed once the connection has ended.
func (rc *RealtimeChannel) Closed() <-chan struct{} {
	return rc.closed
}

// Alive reports whether the connection is still open.
func (rc *RealtimeChannel) Alive() bool {
	select {
	case <-rc.closed:
		return false
	default:
		return true
	}
}

// Close ends the connection. Calls in flight fail with ErrReplyLost.
func (rc *RealtimeChannel) Close() error {
	rc.shutdown()
	rc.writeMu.Lock()
	_ = rc.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	rc.writeMu.Unlock()
	return rc.ws.Close()
}

func (rc *RealtimeChannel) shutdown() {
	rc.closeOnce.Do(func() { close(rc.closed) })
}

// pendingCount is the number of calls awaiting a response.
func (rc *RealtimeChannel) pendingCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.pending)
}

func (rc *RealtimeChannel) readLoop() {
	defer rc.shutdown()
	for {
		var f frame
		if err := rc.ws.ReadJSON(&f); err != nil {
			if rc.Alive() {
				rc.log.Debug("Realtime channel read ended", zap.Error(err))
			}
			return
		}

		if f.Ref != "" {
			rc.mu.Lock()
			ch, ok := rc.pending[f.Ref]
			rc.mu.Unlock()
			if ok {
				// buffered for one response; a duplicate is dropped
				select {
				case ch <- f:
				default:
				}
				continue
			}
		}
		rc.dispatch(f)
	}
}

func (rc *RealtimeChannel) dispatch(f frame) {
	rc.mu.Lock()
	handlers := make([]PushHandler, 0, len(rc.subs))
	for _, s := range rc.subs {
		if s.event == f.Event {
			handlers = append(handlers, s.fn)
		}
	}
	rc.mu.Unlock()

	for _, fn := range handlers {
		fn(f.Data)
	}
}

// call sends event and waits for its correlated response, decoding the
// payload into out when out is non-nil. The pending entry is always removed.
func (rc *RealtimeChannel) call(ctx context.Context, event string, data, out any) error {
	if !rc.Alive() {
		return ErrChannelClosed
	}

	ref := uuid.NewString()
	ch := make(chan frame, 1)
	rc.mu.Lock()
	rc.pending[ref] = ch
	rc.mu.Unlock()
	defer func() {
		rc.mu.Lock()
		delete(rc.pending, ref)
		rc.mu.Unlock()
	}()

	rc.writeMu.Lock()
	_ = rc.ws.SetWriteDeadline(time.Now().Add(rc.timeout))
	err := rc.ws.WriteJSON(outFrame{Event: event, Ref: ref, Data: data})
	rc.writeMu.Unlock()
	if err != nil {
		rc.shutdown()
		return errors.Wrap(ErrChannelClosed, err.Error())
	}

	timer := time.NewTimer(rc.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return decodeResponse(resp, out)
	case <-timer.C:
		return errors.Wrap(ErrTimeout, event)
	case <-rc.closed:
		return errors.Wrap(ErrReplyLost, event)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeResponse(resp frame, out any) error {
	if resp.Event == eventError {
		var e errorData
		if err := json.Unmarshal(resp.Data, &e); err != nil {
			return errors.Wrap(err, "decode error frame")
		}
		return &RemoteError{Event: e.Event, Code: e.Code, Message: e.Message, Hint: e.Hint}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(resp.Data, out), "decode %s", resp.Event)
}

func (rc *RealtimeChannel) SendFriendRequest(ctx context.Context, toUserID uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := rc.call(ctx, eventSendFriendRequest, models.SendFriendRequest{ToUserID: toUserID}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (rc *RealtimeChannel) AcceptFriendRequest(ctx context.Context, requestID uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := rc.call(ctx, eventAcceptFriendRequest, models.FriendRequestAction{RequestID: requestID}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (rc *RealtimeChannel) RejectFriendRequest(ctx context.Context, requestID uint) error {
	return rc.call(ctx, eventRejectFriendRequest, models.FriendRequestAction{RequestID: requestID}, nil)
}

func (rc *RealtimeChannel) RemoveFriend(ctx context.Context, friendID uint) error {
	return rc.call(ctx, eventRemoveFriend, models.RemoveFriendRequest{FriendID: friendID}, nil)
}

func (rc *RealtimeChannel) ListFriends(ctx context.Context) ([]models.FriendEntry, error) {
	var friends []models.FriendEntry
	if err := rc.call(ctx, eventGetFriends, nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (rc *RealtimeChannel) ListFriendRequests(ctx context.Context) (*models.RequestLists, error) {
	var lists models.RequestLists
	if err := rc.call(ctx, eventGetFriendRequests, nil, &lists); err != nil {
		return nil, err
	}
	return &lists, nil
}

func (rc *RealtimeChannel) FriendStatus(ctx context.Context, otherUserID uint) (*models.FriendStatus, error) {
	var status models.FriendStatus
	if err := rc.call(ctx, eventCheckFriendStatus, models.CheckFriendStatusRequest{ToUserID: otherUserID}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (rc *RealtimeChannel) SendMessage(ctx context.Context, toUserID uint, content string) (*models.Message, error) {
	var msg models.Message
	if err := rc.call(ctx, eventSendMessage, models.SendMessageRequest{ToUserID: toUserID, Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (rc *RealtimeChannel) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var convs []models.ConversationSummary
	if err := rc.call(ctx, eventGetConversations, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (rc *RealtimeChannel) GetMessages(ctx context.Context, otherUserID uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	if err := rc.call(ctx, eventGetMessages, models.GetMessagesRequest{OtherUserID: otherUserID, Limit: limit}, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (rc *RealtimeChannel) MarkRead(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	if err := rc.call(ctx, eventMarkMessageRead, models.MarkMessageReadRequest{MessageID: messageID}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (rc *RealtimeChannel) MarkConversationRead(ctx context.Context, otherUserID uint) (int64, error) {
	var res updatedResult
	if err := rc.call(ctx, eventMarkConversationRead, models.MarkConversationReadRequest{OtherUserID: otherUserID}, &res); err != nil {
		return 0, err
	}
	return res.Updated, nil
}

func (rc *RealtimeChannel) UnreadCount(ctx context.Context) (int64, error) {
	var res countResult
	if err := rc.call(ctx, eventUnreadCount, nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}
