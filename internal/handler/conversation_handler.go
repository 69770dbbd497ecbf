package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/metrics"
	"github.com/rentalhub/rental-backend/internal/middleware"
	"github.com/rentalhub/rental-backend/internal/presence"
	"github.com/rentalhub/rental-backend/internal/service"
	"github.com/rentalhub/rental-backend/pkg/ginutil"
)

// ConversationHandler serves the conversation and message REST API
type ConversationHandler struct {
	chat     *service.ChatService
	registry presence.Registry
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(chat *service.ChatService, registry presence.Registry) *ConversationHandler {
	return &ConversationHandler{chat: chat, registry: registry}
}

// MarkReadResponse is returned by POST /conversations/:id/read
type MarkReadResponse struct {
	ConversationID uint64   `json:"conversation_id"`
	Count          int      `json:"count"`
	MessageIDs     []uint64 `json:"message_ids"`
}

// ListConversations handles GET /conversations
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.V2ErrorFrom(c, err, "Failed to load conversations")
		return
	}
	common.V2Success(c, convs)
}

// CreateConversation handles POST /conversations. An existing conversation
// between the two users is returned with 200 instead of creating another.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.V2ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conv, created, err := h.chat.CreateConversation(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		common.V2ErrorFrom(c, err, "Failed to create conversation")
		return
	}
	if created {
		common.V2Created(c, conv)
		return
	}
	common.V2Success(c, conv)
}

// GetConversation handles GET /conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	conv, err := h.chat.GetConversation(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		common.V2ErrorFrom(c, err, "Failed to load conversation")
		return
	}
	common.V2Success(c, conv)
}

// DeleteConversation handles DELETE /conversations/:id
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteConversation(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		common.V2ErrorFrom(c, err, "Failed to delete conversation")
		return
	}
	common.V2Success(c, gin.H{"message": "Conversation deleted successfully"})
}

// ListMessages handles GET /conversations/:id/messages
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	msgs, err := h.chat.ListMessages(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		common.V2ErrorFrom(c, err, "Failed to load messages")
		return
	}
	common.V2Success(c, msgs)
}

// SendMessage handles POST /conversations/:id/messages. Connected clients
// receive the message exactly as if it had been sent over the socket.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.V2ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), id, middleware.GetUserID(c), req.Content, metrics.ChannelREST)
	if err != nil {
		common.V2ErrorFrom(c, err, "Failed to send message")
		return
	}
	common.V2Created(c, msg)
}

// MarkRead handles POST /conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	ids, err := h.chat.MarkRead(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		common.V2ErrorFrom(c, err, "Failed to mark messages as read")
		return
	}
	common.V2Success(c, MarkReadResponse{ConversationID: id, Count: len(ids), MessageIDs: ids})
}

// OnlineUsers handles GET /users/online
func (h *ConversationHandler) OnlineUsers(c *gin.Context) {
	common.V2Success(c, domain.OnlineUsersPayload{UserIDs: h.registry.List(c.Request.Context())})
}

func conversationID(c *gin.Context) (uint64, bool) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.V2ErrorResponse(c, http.StatusBadRequest, "Invalid conversation id", err)
		return 0, false
	}
	return id, true
}
