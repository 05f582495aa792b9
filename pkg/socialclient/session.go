package socialclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config configures a Session
type Config struct {
	BaseURL        string // http(s)://host of the social server
	Token          string
	UserID         uint
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	Clock          Clock
	Storage        Storage // defaults to a MemoryStorage
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Session is one authenticated user's connection to the social server. It
// prefers the realtime channel and falls back to REST when that is
// unavailable.
type Session struct {
	userID   uint
	realtime *RealtimeChannel
	rest     *RESTChannel
	cache    *ConversationCache
	log      *zap.Logger

	mu     sync.Mutex
	unsubs []func()
	closed bool
}

// NewSession connects to the server. A failed realtime handshake for any
// reason other than bad credentials leaves the session in REST-only mode.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.BaseURL == "" || cfg.Token == "" {
		return nil, errors.New("socialclient: BaseURL and Token are required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.L()
	}
	log := cfg.Logger.With(zap.Uint("user", cfg.UserID))

	s := &Session{
		userID: cfg.UserID,
		rest:   NewRESTChannel(cfg.BaseURL, cfg.Token, cfg.HTTPClient, cfg.RequestTimeout),
		log:    log,
	}

	rc, err := DialRealtime(ctx, realtimeURL(cfg.BaseURL), cfg.Token, cfg.RequestTimeout, log)
	switch {
	case err == nil:
		s.realtime = rc
	case isRemote(err):
		return nil, err
	default:
		log.Warn("Realtime channel unavailable, using REST only", zap.Error(err))
	}

	s.cache = NewConversationCache(CacheConfig{
		Key:          strconv.FormatUint(uint64(cfg.UserID), 10),
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.RequestTimeout,
		Clock:        cfg.Clock,
		Storage:      cfg.Storage,
		Logger:       log,
	}, s.realtimeLoader, s.rest)

	if s.realtime != nil {
		s.unsubs = append(s.unsubs, s.realtime.Subscribe(PushConversationsUpdated, func(data json.RawMessage) {
			var convs []models.ConversationSummary
			if err := json.Unmarshal(data, &convs); err != nil {
				log.Warn("Malformed conversations push", zap.Error(err))
				return
			}
			s.cache.Put(convs)
		}))
	}
	return s, nil
}

func realtimeURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func isRemote(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}

func (s *Session) realtimeLoader() ConversationLoader {
	if s.realtime == nil || !s.realtime.Alive() {
		return nil
	}
	return s.realtime
}

// Realtime reports whether the realtime channel is live.
func (s *Session) Realtime() bool {
	return s.realtimeLoader() != nil
}

// Subscribe registers fn for a push event. It is a no-op in REST-only mode.
func (s *Session) Subscribe(event string, fn PushHandler) func() {
	if s.realtime == nil {
		return func() {}
	}
	unsub := s.realtime.Subscribe(event, fn)
	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
	return unsub
}

// Close logs the session out: subscriptions, the realtime channel and the
// cached conversations are all dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	var err error
	if s.realtime != nil {
		err = s.realtime.Close()
	}
	if cerr := s.cache.Clear(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Conversations returns the cached conversation list; see ConversationCache.Get.
func (s *Session) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return s.cache.Get(ctx)
}

// do runs an idempotent op on the realtime channel and retries on REST when
// the realtime channel could not answer.
func (s *Session) do(name string, op func(Channel) error) error {
	return s.try(name, unavailable, op)
}

// write runs a non-idempotent op. It moves to REST only when the realtime
// request was never sent; a late or lost reply is returned to the caller.
func (s *Session) write(name string, op func(Channel) error) error {
	return s.try(name, notSent, op)
}

func (s *Session) try(name string, retry func(error) bool, op func(Channel) error) error {
	if s.Realtime() {
		err := op(s.realtime)
		if !retry(err) {
			return err
		}
		s.log.Warn("Realtime call failed, retrying over REST", zap.String("op", name), zap.Error(err))
	}
	return op(s.rest)
}

// afterWrite expires the cached conversations when no push will refresh them
// or when the write may have landed without a reply.
func (s *Session) afterWrite(err error) {
	if (err == nil && !s.Realtime()) || mayHaveApplied(err) {
		s.cache.Expire()
	}
}

func (s *Session) SendFriendRequest(ctx context.Context, toUserID uint) (req *models.FriendRequest, err error) {
	err = s.write("send_friend_request", func(ch Channel) error {
		req, err = ch.SendFriendRequest(ctx, toUserID)
		return err
	})
	s.afterWrite(err)
	return req, err
}

func (s *Session) AcceptFriendRequest(ctx context.Context, requestID uint) (req *models.FriendRequest, err error) {
	err = s.write("accept_friend_request", func(ch Channel) error {
		req, err = ch.AcceptFriendRequest(ctx, requestID)
		return err
	})
	s.afterWrite(err)
	return req, err
}

func (s *Session) RejectFriendRequest(ctx context.Context, requestID uint) error {
	return s.write("reject_friend_request", func(ch Channel) error {
		return ch.RejectFriendRequest(ctx, requestID)
	})
}

func (s *Session) RemoveFriend(ctx context.Context, friendID uint) error {
	err := s.write("remove_friend", func(ch Channel) error {
		return ch.RemoveFriend(ctx, friendID)
	})
	s.afterWrite(err)
	return err
}

func (s *Session) ListFriends(ctx context.Context) (friends []models.FriendEntry, err error) {
	err = s.do("list_friends", func(ch Channel) error {
		friends, err = ch.ListFriends(ctx)
		return err
	})
	return friends, err
}

func (s *Session) ListFriendRequests(ctx context.Context) (lists *models.RequestLists, err error) {
	err = s.do("list_friend_requests", func(ch Channel) error {
		lists, err = ch.ListFriendRequests(ctx)
		return err
	})
	return lists, err
}

func (s *Session) FriendStatus(ctx context.Context, otherUserID uint) (status *models.FriendStatus, err error) {
	err = s.do("friend_status", func(ch Channel) error {
		status, err = ch.FriendStatus(ctx, otherUserID)
		return err
	})
	return status, err
}

func (s *Session) SendMessage(ctx context.Context, toUserID uint, content string) (msg *models.Message, err error) {
	err = s.write("send_message", func(ch Channel) error {
		msg, err = ch.SendMessage(ctx, toUserID, content)
		return err
	})
	s.afterWrite(err)
	return msg, err
}

func (s *Session) GetMessages(ctx context.Context, otherUserID uint, limit int) (msgs []models.Message, err error) {
	err = s.do("get_messages", func(ch Channel) error {
		msgs, err = ch.GetMessages(ctx, otherUserID, limit)
		return err
	})
	return msgs, err
}

// MarkRead marks one message read. The server pushes nothing for reads, so
// the cached unread counts are expired.
func (s *Session) MarkRead(ctx context.Context, messageID uint) (msg *models.Message, err error) {
	err = s.do("mark_read", func(ch Channel) error {
		msg, err = ch.MarkRead(ctx, messageID)
		return err
	})
	if err == nil {
		s.cache.Expire()
	}
	return msg, err
}

func (s *Session) MarkConversationRead(ctx context.Context, otherUserID uint) (updated int64, err error) {
	err = s.do("mark_conversation_read", func(ch Channel) error {
		updated, err = ch.MarkConversationRead(ctx, otherUserID)
		return err
	})
	if err == nil {
		s.cache.Expire()
	}
	return updated, err
}

func (s *Session) UnreadCount(ctx context.Context) (count int64, err error) {
	err = s.do("unread_count", func(ch Channel) error {
		count, err = ch.UnreadCount(ctx)
		return err
	})
	return count, err
}
