package services

import "github.com/anonto42/rehab-social/backend/internal/models"

// EffectKind names a notification that should reach a user after an
// operation commits.
type EffectKind string

const (
	// EffectRequestReceived carries the new *models.FriendRequest.
	EffectRequestReceived EffectKind = "request_received"
	// EffectRequestAccepted carries the accepted *models.FriendRequest.
	EffectRequestAccepted EffectKind = "request_accepted"
	// EffectMessageReceived carries the new *models.Message.
	EffectMessageReceived EffectKind = "message_received"

	// The remaining kinds carry no payload; the receiver reloads the named view.
	EffectRequestsChanged      EffectKind = "requests_changed"
	EffectFriendsChanged       EffectKind = "friends_changed"
	EffectConversationsChanged EffectKind = "conversations_changed"
)

// Effect is a push owed to UserID. Delivery is best effort and decided by the caller.
type Effect struct {
	Kind    EffectKind
	UserID  uint
	Payload any
}

// Outcome is the canonical result of an operation plus the pushes it owes.
type Outcome[T any] struct {
	Result  T
	Effects []Effect
}

func effectsFor(kind EffectKind, users ...uint) []Effect {
	out := make([]Effect, 0, len(users))
	for _, u := range users {
		out = append(out, Effect{Kind: kind, UserID: u})
	}
	return out
}

func decorateRequest(req *models.FriendRequest, users map[uint]models.User) {
	if u, ok := users[req.FromUserID]; ok {
		s := u.ToSummary()
		req.FromUser = &s
	}
	if u, ok := users[req.ToUserID]; ok {
		s := u.ToSummary()
		req.ToUser = &s
	}
}

func summaryFor(id uint, users map[uint]models.User) models.UserSummary {
	if u, ok := users[id]; ok {
		return u.ToSummary()
	}
	return models.UserSummary{ID: id, Avatar: models.AvatarFor("")}
}
