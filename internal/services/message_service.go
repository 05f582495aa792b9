package services

import (
	"context"
	"sort"
	"strings"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultConversationLimit = 50
	MaxConversationLimit     = 200
)

// Hints attached to a refused send so the client can offer the next step.
const (
	HintSendFriendRequest   = "send_friend_request"
	HintAcceptFriendRequest = "accept_friend_request"
	HintAwaitFriendRequest  = "await_friend_request"
)

// FriendChecker is the slice of the friend lifecycle the message engine relies on
type FriendChecker interface {
	WhileFriends(ctx context.Context, a, b uint, fn func(tx *gorm.DB) error) (bool, error)
	GetStatus(ctx context.Context, from, to uint) (*models.FriendStatus, error)
}

// MessageService gates message creation on friendship and tracks read state
type MessageService struct {
	messages     repositories.MessageRepository
	users        repositories.UserRepository
	friends      FriendChecker
	defaultLimit int
	log          *zap.Logger
}

// NewMessageService creates a new MessageService. defaultLimit applies when a
// conversation is requested without a limit.
func NewMessageService(messages repositories.MessageRepository, users repositories.UserRepository, friends FriendChecker, defaultLimit int, log *zap.Logger) *MessageService {
	if defaultLimit <= 0 || defaultLimit > MaxConversationLimit {
		defaultLimit = DefaultConversationLimit
	}
	return &MessageService{
		messages:     messages,
		users:        users,
		friends:      friends,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

// Send persists an unread message from -> to. Friendship is checked in the
// same transaction as the insert.
func (s *MessageService) Send(ctx context.Context, from, to uint, content string) (*Outcome[*models.Message], error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.InvalidRequest("message content cannot be empty")
	}
	if from == to {
		return nil, apperr.InvalidRequest("cannot send a message to yourself")
	}

	if _, err := s.users.GetUserByID(ctx, to); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d not found", to)
		}
		return nil, s.classify(err, "send message")
	}

	msg := &models.Message{FromUserID: from, ToUserID: to, Content: content}
	ok, err := s.friends.WhileFriends(ctx, from, to, func(tx *gorm.DB) error {
		return s.messages.WithTx(tx).CreateMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.notFriendsError(ctx, from, to)
	}

	effects := []Effect{{Kind: EffectMessageReceived, UserID: to, Payload: msg}}
	effects = append(effects, effectsFor(EffectConversationsChanged, from, to)...)
	return &Outcome[*models.Message]{Result: msg, Effects: effects}, nil
}

// GetConversation returns the latest limit messages between a and b in
// ascending time order.
func (s *MessageService) GetConversation(ctx context.Context, a, b uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxConversationLimit {
		limit = MaxConversationLimit
	}

	messages, err := s.messages.ListBetween(ctx, a, b, limit)
	if err != nil {
		return nil, s.classify(err, "load conversation")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListConversations builds one summary per counterpart, most recent first
func (s *MessageService) ListConversations(ctx context.Context, ownerID uint) ([]models.ConversationSummary, error) {
	stats, err := s.messages.CounterpartStats(ctx, ownerID)
	if err != nil {
		return nil, s.classify(err, "list conversations")
	}

	ids := make([]uint, 0, len(stats))
	for _, st := range stats {
		ids = append(ids, st.OtherID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, s.classify(err, "list conversations")
	}

	type entry struct {
		summary models.ConversationSummary
		lastID  uint
	}
	entries := make([]entry, 0, len(stats))
	for _, st := range stats {
		last := st.LastMessage
		if last == nil {
			continue
		}
		entries = append(entries, entry{
			summary: models.ConversationSummary{
				OtherUser:     summaryFor(st.OtherID, users),
				LastMessage:   last.Content,
				LastMessageAt: last.CreatedAt,
				UnreadCount:   st.Unread,
			},
			lastID: last.ID,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].summary.LastMessageAt, entries[j].summary.LastMessageAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].lastID > entries[j].lastID
	})

	out := make([]models.ConversationSummary, len(entries))
	for i, e := range entries {
		out[i] = e.summary
	}
	return out, nil
}

// MarkRead marks a message addressed to actingUserID as read
func (s *MessageService) MarkRead(ctx context.Context, messageID, actingUserID uint) (*models.Message, error) {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("message %d not found", messageID)
		}
		return nil, s.classify(err, "mark message read")
	}
	if msg.ToUserID != actingUserID {
		return nil, apperr.Forbidden("you can only mark messages sent to you as read")
	}
	if !msg.Read {
		if err := s.messages.MarkRead(ctx, messageID); err != nil {
			return nil, s.classify(err, "mark message read")
		}
		msg.Read = true
	}
	return msg, nil
}

// MarkConversationRead marks every unread message from otherID to ownerID as
// read and returns how many changed.
func (s *MessageService) MarkConversationRead(ctx context.Context, ownerID, otherID uint) (int64, error) {
	n, err := s.messages.MarkAllReadFrom(ctx, ownerID, otherID)
	if err != nil {
		return 0, s.classify(err, "mark conversation read")
	}
	return n, nil
}

// UnreadCount counts unread messages addressed to userID
func (s *MessageService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.messages.UnreadCount(ctx, userID)
	if err != nil {
		return 0, s.classify(err, "count unread messages")
	}
	return n, nil
}

func (s *MessageService) notFriendsError(ctx context.Context, from, to uint) error {
	err := apperr.Forbidden("you can only send messages to friends")
	status, statusErr := s.friends.GetStatus(ctx, from, to)
	if statusErr != nil {
		return err.WithHint(HintSendFriendRequest)
	}
	switch status.Status {
	case models.StatusRequestReceived:
		return err.WithHint(HintAcceptFriendRequest)
	case models.StatusRequestSent:
		return err.WithHint(HintAwaitFriendRequest)
	default:
		return err.WithHint(HintSendFriendRequest)
	}
}

func (s *MessageService) classify(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.log.Error("Message operation failed", zap.String("op", op), zap.Error(err))
	return apperr.Internal(err, "failed to "+op)
}
