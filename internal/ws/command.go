package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound event names
const (
	CmdAuthenticate      = "authenticate"
	CmdJoinConversation  = "join_conversation"
	CmdLeaveConversation = "leave_conversation"
	CmdSendMessage       = "send_message"
	CmdTyping            = "typing"
	CmdMarkRead          = "mark_read"
	CmdGetOnlineUsers    = "get_online_users"
)

var (
	// ErrInvalidEvent is returned for malformed frames and unknown event types
	ErrInvalidEvent = errors.New("invalid event")
	// ErrMissingFields is returned when a command fails validation
	ErrMissingFields = errors.New("missing required fields")
)

// Command is one decoded inbound event
type Command interface {
	command()
}

type AuthenticateCommand struct {
	Token string `json:"token" validate:"required"`
}

type JoinConversationCommand struct {
	ConversationID uint64 `json:"conversation_id" validate:"required"`
	UserID         uint64 `json:"user_id"`
}

type LeaveConversationCommand struct {
	ConversationID uint64 `json:"conversation_id" validate:"required"`
	UserID         uint64 `json:"user_id"`
}

type SendMessageCommand struct {
	ConversationID uint64 `json:"conversation_id" validate:"required"`
	UserID         uint64 `json:"user_id"`
	Content        string `json:"content" validate:"required"`
}

type TypingCommand struct {
	ConversationID uint64 `json:"conversation_id" validate:"required"`
	UserID         uint64 `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type MarkReadCommand struct {
	ConversationID uint64 `json:"conversation_id" validate:"required"`
	UserID         uint64 `json:"user_id"`
}

type GetOnlineUsersCommand struct{}

func (*AuthenticateCommand) command()      {}
func (*JoinConversationCommand) command()  {}
func (*LeaveConversationCommand) command() {}
func (*SendMessageCommand) command()       {}
func (*TypingCommand) command()            {}
func (*MarkReadCommand) command()          {}
func (*GetOnlineUsersCommand) command()    {}

type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decoder turns raw frames into validated commands
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a new Decoder
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// Decode parses a {"type": ..., "payload": {...}} frame
func (d *Decoder) Decode(data []byte) (Command, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var cmd Command
	switch frame.Type {
	case CmdAuthenticate:
		cmd = &AuthenticateCommand{}
	case CmdJoinConversation:
		cmd = &JoinConversationCommand{}
	case CmdLeaveConversation:
		cmd = &LeaveConversationCommand{}
	case CmdSendMessage:
		cmd = &SendMessageCommand{}
	case CmdTyping:
		cmd = &TypingCommand{}
	case CmdMarkRead:
		cmd = &MarkReadCommand{}
	case CmdGetOnlineUsers:
		cmd = &GetOnlineUsersCommand{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, frame.Type)
	}

	payload := bytes.TrimSpace(frame.Payload)
	if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		if err := json.Unmarshal(payload, cmd); err != nil {
			// Wrong field types are reported like absent fields
			return nil, fmt.Errorf("%w: %v", ErrMissingFields, err)
		}
	}

	if err := d.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	return cmd, nil
}
