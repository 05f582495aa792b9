package models

import "time"

// Message is a direct message between two friends. Only Read is ever mutated.
type Message struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	FromUserID uint      `json:"fromUserId" gorm:"not null;index:idx_messages_pair_time,priority:1"`
	ToUserID   uint      `json:"toUserId" gorm:"not null;index:idx_messages_pair_time,priority:2;index:idx_messages_inbox,priority:1"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	Read       bool      `json:"read" gorm:"not null;default:false;index:idx_messages_inbox,priority:2"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index:idx_messages_pair_time,priority:3;index:idx_messages_inbox,priority:3"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ConversationSummary is derived from Message rows for one (owner, other) pair.
type ConversationSummary struct {
	OtherUser     UserSummary `json:"otherUser"`
	LastMessage   string      `json:"lastMessage"`
	LastMessageAt time.Time   `json:"lastMessageAt"`
	UnreadCount   int64       `json:"unreadCount"`
}

// SendMessageRequest defines the request body for sending a message
type SendMessageRequest struct {
	ToUserID uint   `json:"toUserId" validate:"required"`
	Content  string `json:"content" validate:"required,max=4000"`
}

// GetMessagesRequest selects a conversation page
type GetMessagesRequest struct {
	OtherUserID uint `json:"otherUserId" validate:"required"`
	Limit       int  `json:"limit" validate:"omitempty,min=1,max=200"`
}

// MarkMessageReadRequest identifies a single message
type MarkMessageReadRequest struct {
	MessageID uint `json:"messageId" validate:"required"`
}

// MarkConversationReadRequest identifies the counterpart of a conversation
type MarkConversationReadRequest struct {
	OtherUserID uint `json:"otherUserId" validate:"required"`
}
