package gateway

import "encoding/json"

// Client -> server request events. Responses use the request event with an ":ok" suffix.
const (
	EventSendFriendRequest     = "friend:send_request"
	EventAcceptFriendRequest   = "friend:accept_request"
	EventRejectFriendRequest   = "friend:reject_request"
	EventRemoveFriend          = "friend:remove"
	EventGetFriends            = "friend:get_friends"
	EventGetFriendRequests     = "friend:get_requests"
	EventCheckFriendStatus     = "friend:check_status"
	EventSendMessage           = "message:send"
	EventGetConversations      = "message:get_conversations"
	EventGetMessages           = "message:get_messages"
	EventMarkMessageRead       = "message:mark_read"
	EventMarkConversationRead  = "message:mark_conversation_read"
	EventGetUnreadMessageCount = "message:unread_count"
)

// Server -> client push events
const (
	PushConnected             = "connected"
	PushError                 = "error"
	PushFriendRequestReceived = "friend:request_received"
	PushFriendRequestAccepted = "friend:request_accepted"
	PushFriendRequestsUpdated = "friend:requests_updated"
	PushFriendsUpdated        = "friend:friends_updated"
	PushMessageReceived       = "message:received"
	PushConversationsUpdated  = "message:conversations_updated"
)

// ResponseEvent is the event name of a successful response to event.
func ResponseEvent(event string) string {
	return event + ":ok"
}

// Frame is a decoded inbound frame
type Frame struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutFrame is an outbound frame. Pushes have no Ref.
type OutFrame struct {
	Event string `json:"event"`
	Ref   string `json:"ref,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// ErrorData is the payload of an "error" frame
type ErrorData struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Hint    string `json:"hint,omitempty"`
}
