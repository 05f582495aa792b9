package gateway

import (
	"context"

	"github.com/anonto42/rehab-social/backend/internal/services"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Deliver pushes effects to the affected users' live connections. Views named
// by *_changed effects are reloaded per recipient. Failures are logged and
// never surface to the caller.
func (g *Gateway) Deliver(ctx context.Context, effects []services.Effect) {
	for _, effect := range effects {
		if g.registry.Connections(effect.UserID) == 0 {
			continue
		}
		event, data, err := g.render(ctx, effect)
		if err != nil {
			g.log.Warn("Could not build push",
				zap.String("kind", string(effect.Kind)),
				zap.Uint("user", effect.UserID),
				zap.Error(err),
			)
			continue
		}
		g.registry.SendToUser(effect.UserID, OutFrame{Event: event, Data: data})
	}
}

func (g *Gateway) render(ctx context.Context, effect services.Effect) (string, any, error) {
	switch effect.Kind {
	case services.EffectRequestReceived:
		return PushFriendRequestReceived, effect.Payload, nil
	case services.EffectRequestAccepted:
		return PushFriendRequestAccepted, effect.Payload, nil
	case services.EffectMessageReceived:
		return PushMessageReceived, effect.Payload, nil
	case services.EffectRequestsChanged:
		lists, err := g.friends.ListAll(ctx, effect.UserID)
		return PushFriendRequestsUpdated, lists, err
	case services.EffectFriendsChanged:
		friends, err := g.friends.ListFriends(ctx, effect.UserID)
		return PushFriendsUpdated, friends, err
	case services.EffectConversationsChanged:
		convs, err := g.messages.ListConversations(ctx, effect.UserID)
		return PushConversationsUpdated, convs, err
	default:
		return "", nil, errors.Errorf("unknown effect kind %q", effect.Kind)
	}
}
