package socialclient

import (
	"context"

	"github.com/anonto42/rehab-social/backend/internal/models"
)

// Channel is one way of reaching the social server. RealtimeChannel and
// RESTChannel both implement it.
type Channel interface {
	SendFriendRequest(ctx context.Context, toUserID uint) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID uint) (*models.FriendRequest, error)
	RejectFriendRequest(ctx context.Context, requestID uint) error
	RemoveFriend(ctx context.Context, friendID uint) error
	ListFriends(ctx context.Context) ([]models.FriendEntry, error)
	ListFriendRequests(ctx context.Context) (*models.RequestLists, error)
	FriendStatus(ctx context.Context, otherUserID uint) (*models.FriendStatus, error)

	SendMessage(ctx context.Context, toUserID uint, content string) (*models.Message, error)
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	GetMessages(ctx context.Context, otherUserID uint, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID uint) (*models.Message, error)
	MarkConversationRead(ctx context.Context, otherUserID uint) (int64, error)
	UnreadCount(ctx context.Context) (int64, error)
}
