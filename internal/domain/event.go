package domain

// Outbound real-time event names
const (
	EventConnected           = "connected"
	EventAuthenticated       = "authenticated"
	EventError               = "error"
	EventJoinedConversation  = "joined_conversation"
	EventUserJoined          = "user_joined"
	EventLeftConversation    = "left_conversation"
	EventUserLeft            = "user_left"
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventUserTyping          = "user_typing"
	EventMessagesRead        = "messages_read"
	EventMarkedRead          = "marked_read"
	EventOnlineUsers         = "online_users"
)

// Event is the envelope written to a session
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewEvent builds an Event
func NewEvent(eventType string, payload interface{}) *Event {
	return &Event{Type: eventType, Payload: payload}
}

type ConnectedPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type AuthenticatedPayload struct {
	UserID uint64 `json:"user_id"`
	User   *User  `json:"user"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type JoinedConversationPayload struct {
	ConversationID uint64 `json:"conversation_id"`
	Room           string `json:"room"`
}

// MembershipPayload is sent for user_joined and user_left
type MembershipPayload struct {
	UserID         uint64 `json:"user_id"`
	ConversationID uint64 `json:"conversation_id"`
}

type LeftConversationPayload struct {
	ConversationID uint64 `json:"conversation_id"`
}

type MessageNotificationPayload struct {
	ConversationID uint64           `json:"conversation_id"`
	Message        *MessageResponse `json:"message"`
}

type TypingPayload struct {
	ConversationID uint64 `json:"conversation_id"`
	UserID         uint64 `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type MessagesReadPayload struct {
	ConversationID uint64   `json:"conversation_id"`
	ReadBy         uint64   `json:"read_by"`
	MessageIDs     []uint64 `json:"message_ids"`
}

type MarkedReadPayload struct {
	ConversationID uint64 `json:"conversation_id"`
	Count          int    `json:"count"`
}

type OnlineUsersPayload struct {
	UserIDs []uint64 `json:"user_ids"`
}
