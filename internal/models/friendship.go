package models

import "time"

// RequestStatus is the lifecycle state of a FriendRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest represents a friend request from one user to another.
// There is at most one row per ordered (from, to) pair and rows are never deleted.
type FriendRequest struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	FromUserID uint          `json:"fromUserId" gorm:"not null;uniqueIndex:idx_friend_requests_pair;check:chk_friend_requests_self,from_user_id <> to_user_id"`
	ToUserID   uint          `json:"toUserId" gorm:"not null;uniqueIndex:idx_friend_requests_pair;index:idx_friend_requests_to_status,priority:1"`
	Status     RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_friend_requests_to_status,priority:2"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`

	FromUser *UserSummary `json:"fromUser,omitempty" gorm:"-"`
	ToUser   *UserSummary `json:"toUser,omitempty" gorm:"-"`
}

// IsTerminal reports whether no further transition is allowed.
func (r *FriendRequest) IsTerminal() bool {
	return r.Status == RequestAccepted || r.Status == RequestRejected
}

// Friendship is one direction of an accepted friendship. Every friendship
// is stored as two symmetric rows that are created and removed together.
type Friendship struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"not null;uniqueIndex:idx_friendships_pair;check:chk_friendships_self,user_id <> friend_id"`
	FriendID  uint      `json:"friendId" gorm:"not null;uniqueIndex:idx_friendships_pair"`
	CreatedAt time.Time `json:"createdAt"`
}

// FriendEntry is a friendship row joined with the counterpart's display info
type FriendEntry struct {
	FriendshipID uint        `json:"friendshipId"`
	Friend       UserSummary `json:"friend"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// RequestLists partitions a user's pending requests by direction.
type RequestLists struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}

// FriendStatusKind is the relationship between two users as seen from the first.
type FriendStatusKind string

const (
	StatusFriends         FriendStatusKind = "friends"
	StatusRequestSent     FriendStatusKind = "request_sent"
	StatusRequestReceived FriendStatusKind = "request_received"
	StatusNotFriends      FriendStatusKind = "not_friends"
)

type FriendStatus struct {
	Status    FriendStatusKind `json:"status"`
	RequestID *uint            `json:"requestId,omitempty"`
}

// SendFriendRequest defines the request body for sending a friend request
type SendFriendRequest struct {
	ToUserID uint `json:"toUserId" validate:"required"`
}

// FriendRequestAction identifies a request to accept or reject
type FriendRequestAction struct {
	RequestID uint `json:"requestId" validate:"required"`
}

// RemoveFriendRequest identifies a friend to unfriend
type RemoveFriendRequest struct {
	FriendID uint `json:"friendId" validate:"required"`
}

// CheckFriendStatusRequest asks for the relationship with another user
type CheckFriendStatusRequest struct {
	ToUserID uint `json:"toUserId" validate:"required"`
}
