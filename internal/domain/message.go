package domain

import "time"

// Message is one unit of conversation content. CreatedAt, then ID, defines the order.
type Message struct {
	ID             uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationID uint64     `gorm:"column:conversation_id;index:idx_chat_messages_conv_created,priority:1;not null" json:"conversation_id"`
	SenderID       uint64     `gorm:"column:sender_id;index;not null" json:"sender_id"`
	Content        string     `gorm:"column:content;type:text;not null" json:"content"`
	IsRead         bool       `gorm:"column:is_read;default:false" json:"is_read"`
	ReadAt         *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;index:idx_chat_messages_conv_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// SendMessageRequest is the POST /conversations/:id/messages body
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageResponse is the message payload shared by REST responses and new_message events
type MessageResponse struct {
	ID             uint64       `json:"id"`
	ConversationID uint64       `json:"conversation_id"`
	SenderID       uint64       `json:"sender_id"`
	Sender         *UserSummary `json:"sender,omitempty"`
	Content        string       `json:"content"`
	IsRead         bool         `json:"is_read"`
	ReadAt         *time.Time   `json:"read_at"`
	Timestamp      time.Time    `json:"timestamp"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ToResponse converts Message to MessageResponse
func (m *Message) ToResponse(sender *UserSummary) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         sender,
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		Timestamp:      m.CreatedAt,
		CreatedAt:      m.CreatedAt,
	}
}
