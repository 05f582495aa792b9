package socialclient

import "encoding/json"

// Wire events of the realtime gateway
const (
	eventSendFriendRequest    = "friend:send_request"
	eventAcceptFriendRequest  = "friend:accept_request"
	eventRejectFriendRequest  = "friend:reject_request"
	eventRemoveFriend         = "friend:remove"
	eventGetFriends           = "friend:get_friends"
	eventGetFriendRequests    = "friend:get_requests"
	eventCheckFriendStatus    = "friend:check_status"
	eventSendMessage          = "message:send"
	eventGetConversations     = "message:get_conversations"
	eventGetMessages          = "message:get_messages"
	eventMarkMessageRead      = "message:mark_read"
	eventMarkConversationRead = "message:mark_conversation_read"
	eventUnreadCount          = "message:unread_count"

	eventError = "error"
)

// Push events a Session can subscribe to
const (
	PushConnected             = "connected"
	PushFriendRequestReceived = "friend:request_received"
	PushFriendRequestAccepted = "friend:request_accepted"
	PushFriendRequestsUpdated = "friend:requests_updated"
	PushFriendsUpdated        = "friend:friends_updated"
	PushMessageReceived       = "message:received"
	PushConversationsUpdated  = "message:conversations_updated"
)

type frame struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Ref   string `json:"ref"`
	Data  any    `json:"data,omitempty"`
}

type errorData struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Hint    string `json:"hint"`
}

type countResult struct {
	Count int64 `json:"count"`
}

type updatedResult struct {
	Updated int64 `json:"updated"`
}
