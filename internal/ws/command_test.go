package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name  string
		frame string
		want  Command
	}{
		{
			name:  "authenticate",
			frame: `{"type":"authenticate","payload":{"token":"abc"}}`,
			want:  &AuthenticateCommand{Token: "abc"},
		},
		{
			name:  "join",
			frame: `{"type":"join_conversation","payload":{"conversation_id":7,"user_id":1}}`,
			want:  &JoinConversationCommand{ConversationID: 7, UserID: 1},
		},
		{
			name:  "leave",
			frame: `{"type":"leave_conversation","payload":{"conversation_id":7}}`,
			want:  &LeaveConversationCommand{ConversationID: 7},
		},
		{
			name:  "send",
			frame: `{"type":"send_message","payload":{"conversation_id":7,"user_id":1,"content":"hi"}}`,
			want:  &SendMessageCommand{ConversationID: 7, UserID: 1, Content: "hi"},
		},
		{
			name:  "typing",
			frame: `{"type":"typing","payload":{"conversation_id":7,"is_typing":true}}`,
			want:  &TypingCommand{ConversationID: 7, IsTyping: true},
		},
		{
			name:  "mark read",
			frame: `{"type":"mark_read","payload":{"conversation_id":7}}`,
			want:  &MarkReadCommand{ConversationID: 7},
		},
		{
			name:  "online users without payload",
			frame: `{"type":"get_online_users"}`,
			want:  &GetOnlineUsersCommand{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := d.Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestDecoder_Errors(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `hello`, ErrInvalidEvent},
		{"unknown type", `{"type":"shout","payload":{}}`, ErrInvalidEvent},
		{"missing token", `{"type":"authenticate","payload":{}}`, ErrMissingFields},
		{"missing conversation", `{"type":"join_conversation","payload":{"user_id":1}}`, ErrMissingFields},
		{"missing content", `{"type":"send_message","payload":{"conversation_id":7}}`, ErrMissingFields},
		{"wrong type", `{"type":"mark_read","payload":{"conversation_id":"seven"}}`, ErrMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode([]byte(tt.frame))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
