package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/auth"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/services"
	"github.com/anonto42/rehab-social/backend/internal/validators"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// FriendEngine is the friend lifecycle surface the gateway dispatches to
type FriendEngine interface {
	SendRequest(ctx context.Context, from, to uint) (*services.Outcome[*models.FriendRequest], error)
	AcceptRequest(ctx context.Context, requestID, actingUserID uint) (*services.Outcome[*models.FriendRequest], error)
	RejectRequest(ctx context.Context, requestID, actingUserID uint) (*services.Outcome[*models.FriendRequest], error)
	Unfriend(ctx context.Context, userID, friendID uint) (*services.Outcome[struct{}], error)
	ListFriends(ctx context.Context, userID uint) ([]models.FriendEntry, error)
	ListAll(ctx context.Context, userID uint) (*models.RequestLists, error)
	GetStatus(ctx context.Context, from, to uint) (*models.FriendStatus, error)
}

// MessageEngine is the message delivery surface the gateway dispatches to
type MessageEngine interface {
	Send(ctx context.Context, from, to uint, content string) (*services.Outcome[*models.Message], error)
	GetConversation(ctx context.Context, a, b uint, limit int) ([]models.Message, error)
	ListConversations(ctx context.Context, ownerID uint) ([]models.ConversationSummary, error)
	MarkRead(ctx context.Context, messageID, actingUserID uint) (*models.Message, error)
	MarkConversationRead(ctx context.Context, ownerID, otherID uint) (int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

// Config tunes connection handling
type Config struct {
	AllowedOrigins []string
	SendQueueSize  int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxFrameBytes  int64
}

// DefaultConfig returns production connection settings
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		SendQueueSize:  64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxFrameBytes:  64 * 1024,
	}
}

// Gateway serves the authenticated realtime channel and delivers effects
// produced by either transport.
type Gateway struct {
	verifier auth.Verifier
	friends  FriendEngine
	messages MessageEngine
	registry Registry
	metrics  *Metrics
	conf     Config
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
	validate *validators.CustomValidator
	log      *zap.Logger
}

func New(verifier auth.Verifier, friends FriendEngine, messages MessageEngine, registry Registry, metrics *Metrics, conf Config, log *zap.Logger) *Gateway {
	g := &Gateway{
		verifier: verifier,
		friends:  friends,
		messages: messages,
		registry: registry,
		metrics:  metrics,
		conf:     conf,
		validate: validators.NewValidator(),
		log:      log,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	g.handlers = g.routes()
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.conf.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWS authenticates the handshake and then runs the connection until it
// closes. Unauthenticated handshakes are refused before the upgrade.
func (g *Gateway) ServeWS(c echo.Context) error {
	req := c.Request()
	principal, err := g.verifier.Verify(req.Context(), auth.TokenFromRequest(req))
	if err != nil {
		return err
	}

	ws, err := g.upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		// the upgrader has already written an error response
		g.log.Debug("Websocket upgrade failed", zap.Error(err))
		return nil
	}

	conn := newConn(uuid.NewString(), principal.UserID, ws, g.conf, g.log)
	g.registry.Register(conn)
	go conn.writePump()
	g.log.Info("Websocket connected", zap.Uint("user", conn.UserID), zap.String("conn", conn.ID))

	g.reply(conn, OutFrame{Event: PushConnected, Data: map[string]any{
		"userId":       conn.UserID,
		"connectionId": conn.ID,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		g.registry.Unregister(conn)
		conn.Close()
		g.log.Info("Websocket disconnected", zap.Uint("user", conn.UserID), zap.String("conn", conn.ID),
			zap.Duration("connected_for", time.Since(conn.ConnectedAt)))
	}()

	g.readLoop(ctx, conn, ws)
	return nil
}

func (g *Gateway) readLoop(ctx context.Context, conn *Conn, ws *websocket.Conn) {
	ws.SetReadLimit(g.conf.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(g.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(g.conf.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Warn("Websocket read failed", zap.String("conn", conn.ID), zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(g.conf.PongWait))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			g.replyError(conn, Frame{}, apperr.InvalidRequest("malformed frame"))
			continue
		}
		g.dispatch(ctx, conn, frame)
	}
}

// dispatch handles one request frame. Frames from a connection are handled
// in arrival order, and the response is queued before any push it causes.
func (g *Gateway) dispatch(ctx context.Context, conn *Conn, frame Frame) {
	handle, ok := g.handlers[frame.Event]
	if !ok {
		g.metrics.events.WithLabelValues("unknown", "error").Inc()
		g.replyError(conn, frame, apperr.InvalidRequest("unknown event %q", frame.Event))
		return
	}

	result, effects, err := handle(ctx, conn.UserID, frame.Data)
	if err != nil {
		g.metrics.events.WithLabelValues(frame.Event, "error").Inc()
		g.replyError(conn, frame, err)
		return
	}
	g.metrics.events.WithLabelValues(frame.Event, "ok").Inc()
	g.reply(conn, OutFrame{Event: ResponseEvent(frame.Event), Ref: frame.Ref, Data: result})
	g.Deliver(ctx, effects)
}

func (g *Gateway) reply(conn *Conn, frame OutFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		g.log.Error("Could not encode frame", zap.String("event", frame.Event), zap.Error(err))
		return
	}
	if !conn.enqueue(data) {
		g.metrics.pushDropped.WithLabelValues(frame.Event).Inc()
	}
}

func (g *Gateway) replyError(conn *Conn, frame Frame, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		g.log.Error("Realtime request failed", zap.String("event", frame.Event), zap.Uint("user", conn.UserID), zap.Error(err))
	}
	g.reply(conn, OutFrame{Event: PushError, Ref: frame.Ref, Data: ErrorData{
		Event:   frame.Event,
		Message: apperr.PublicMessage(err),
		Code:    string(apperr.KindOf(err)),
		Hint:    apperr.HintOf(err),
	}})
}
