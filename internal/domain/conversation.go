package domain

import (
	"fmt"
	"time"
)

// Conversation is a two-party thread, optionally about a property
type Conversation struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"column:title;size:200" json:"title,omitempty"`
	InitiatorID   uint64     `gorm:"column:initiator_id;index;not null" json:"initiator_id"`
	ParticipantID uint64     `gorm:"column:participant_id;index;not null" json:"participant_id"`
	PropertyID    *uint64    `gorm:"column:property_id" json:"property_id,omitempty"`
	LastMessage   string     `gorm:"column:last_message;type:text" json:"last_message"`
	LastMessageAt *time.Time `gorm:"column:last_message_at;index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Conversation) TableName() string { return "chat_conversations" }

// HasParticipant reports whether userID is one of the two participants
func (c *Conversation) HasParticipant(userID uint64) bool {
	return userID != 0 && (c.InitiatorID == userID || c.ParticipantID == userID)
}

// OtherParticipant returns the participant that is not userID
func (c *Conversation) OtherParticipant(userID uint64) uint64 {
	if c.InitiatorID == userID {
		return c.ParticipantID
	}
	return c.InitiatorID
}

// RoomName is the transport room identifier for a conversation
func RoomName(conversationID uint64) string {
	return fmt.Sprintf("conversation_%d", conversationID)
}

// CreateConversationRequest is the POST /conversations body
type CreateConversationRequest struct {
	ParticipantID uint64  `json:"participant_id" binding:"required"`
	PropertyID    *uint64 `json:"property_id"`
	Title         string  `json:"title" binding:"max=200"`
}

// ConversationResponse is a conversation as seen by one of its participants
type ConversationResponse struct {
	ID            uint64       `json:"id"`
	Title         string       `json:"title,omitempty"`
	InitiatorID   uint64       `json:"initiator_id"`
	ParticipantID uint64       `json:"participant_id"`
	PropertyID    *uint64      `json:"property_id,omitempty"`
	Initiator     *UserSummary `json:"initiator,omitempty"`
	Participant   *UserSummary `json:"participant,omitempty"`
	LastMessage   string       `json:"last_message"`
	LastMessageAt *time.Time   `json:"last_message_at"`
	MessageCount  int64        `json:"message_count"`
	UnreadCount   int64        `json:"unread_count"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ToResponse converts Conversation to ConversationResponse
func (c *Conversation) ToResponse() *ConversationResponse {
	return &ConversationResponse{
		ID:            c.ID,
		Title:         c.Title,
		InitiatorID:   c.InitiatorID,
		ParticipantID: c.ParticipantID,
		PropertyID:    c.PropertyID,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}
