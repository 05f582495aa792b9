package gateway

import (
	"context"
	"encoding/json"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/services"
)

// handlerFunc serves one request event for userID. The returned effects are
// delivered after the response is queued.
type handlerFunc func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error)

type friendStatusResult struct {
	ToUserID uint `json:"toUserId"`
	*models.FriendStatus
}

func (g *Gateway) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		EventSendFriendRequest: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.SendFriendRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			out, err := g.friends.SendRequest(ctx, userID, p.ToUserID)
			if err != nil {
				return nil, nil, err
			}
			return out.Result, out.Effects, nil
		},
		EventAcceptFriendRequest: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.FriendRequestAction
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			out, err := g.friends.AcceptRequest(ctx, p.RequestID, userID)
			if err != nil {
				return nil, nil, err
			}
			return out.Result, out.Effects, nil
		},
		EventRejectFriendRequest: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.FriendRequestAction
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			out, err := g.friends.RejectRequest(ctx, p.RequestID, userID)
			if err != nil {
				return nil, nil, err
			}
			return map[string]uint{"requestId": out.Result.ID}, out.Effects, nil
		},
		EventRemoveFriend: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.RemoveFriendRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			out, err := g.friends.Unfriend(ctx, userID, p.FriendID)
			if err != nil {
				return nil, nil, err
			}
			return map[string]uint{"friendId": p.FriendID}, out.Effects, nil
		},
		EventGetFriends: func(ctx context.Context, userID uint, _ json.RawMessage) (any, []services.Effect, error) {
			friends, err := g.friends.ListFriends(ctx, userID)
			return friends, nil, err
		},
		EventGetFriendRequests: func(ctx context.Context, userID uint, _ json.RawMessage) (any, []services.Effect, error) {
			lists, err := g.friends.ListAll(ctx, userID)
			return lists, nil, err
		},
		EventCheckFriendStatus: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.CheckFriendStatusRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			status, err := g.friends.GetStatus(ctx, userID, p.ToUserID)
			if err != nil {
				return nil, nil, err
			}
			return friendStatusResult{ToUserID: p.ToUserID, FriendStatus: status}, nil, nil
		},
		EventSendMessage: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.SendMessageRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			out, err := g.messages.Send(ctx, userID, p.ToUserID, p.Content)
			if err != nil {
				return nil, nil, err
			}
			return out.Result, out.Effects, nil
		},
		EventGetConversations: func(ctx context.Context, userID uint, _ json.RawMessage) (any, []services.Effect, error) {
			convs, err := g.messages.ListConversations(ctx, userID)
			return convs, nil, err
		},
		EventGetMessages: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.GetMessagesRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			msgs, err := g.messages.GetConversation(ctx, userID, p.OtherUserID, p.Limit)
			return msgs, nil, err
		},
		EventMarkMessageRead: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.MarkMessageReadRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			msg, err := g.messages.MarkRead(ctx, p.MessageID, userID)
			return msg, nil, err
		},
		EventMarkConversationRead: func(ctx context.Context, userID uint, data json.RawMessage) (any, []services.Effect, error) {
			var p models.MarkConversationReadRequest
			if err := g.bind(data, &p); err != nil {
				return nil, nil, err
			}
			updated, err := g.messages.MarkConversationRead(ctx, userID, p.OtherUserID)
			if err != nil {
				return nil, nil, err
			}
			return map[string]any{"otherUserId": p.OtherUserID, "updated": updated}, nil, nil
		},
		EventGetUnreadMessageCount: func(ctx context.Context, userID uint, _ json.RawMessage) (any, []services.Effect, error) {
			count, err := g.messages.UnreadCount(ctx, userID)
			if err != nil {
				return nil, nil, err
			}
			return map[string]int64{"count": count}, nil, nil
		},
	}
}

func (g *Gateway) bind(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return apperr.InvalidRequest("missing payload")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.InvalidRequest("malformed payload")
	}
	return g.validate.Validate(dst)
}
