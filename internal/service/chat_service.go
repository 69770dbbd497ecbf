package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/metrics"
	"github.com/rentalhub/rental-backend/internal/repository"
	"github.com/rentalhub/rental-backend/internal/room"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

// DefaultMaxMessageLength is used when no limit is configured
const DefaultMaxMessageLength = 5000

// ChatService is the single write path for conversations and messages,
// shared by the REST handlers and the WebSocket dispatcher.
type ChatService struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	rooms         *room.Manager
	maxLength     int
	locks         stripedLock
	now           func() time.Time
}

// NewChatService creates a new ChatService
func NewChatService(
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	rooms *room.Manager,
	maxLength int,
) *ChatService {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &ChatService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		rooms:         rooms,
		maxLength:     maxLength,
		now:           time.Now,
	}
}

// SendMessage persists a message and delivers it. The message goes to every
// session in the conversation room as new_message, and to the other
// participant's registered session as message_notification.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID uint64, content, channel string) (*domain.MessageResponse, error) {
	conv, err := s.rooms.Authorize(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	content, err = s.validateContent(content)
	if err != nil {
		return nil, err
	}

	// Persist and broadcast under one lock so room order matches storage order
	unlock := s.locks.lock(conversationID)
	defer unlock()

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.CreateWithPreview(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues(channel).Inc()

	resp := msg.ToResponse(s.senderSummary(ctx, senderID))

	s.rooms.Broadcast(ctx, conversationID, domain.NewEvent(domain.EventNewMessage, resp))
	s.rooms.SendToUser(ctx, conv.OtherParticipant(senderID), domain.NewEvent(domain.EventMessageNotification, domain.MessageNotificationPayload{
		ConversationID: conversationID,
		Message:        resp,
	}))

	return resp, nil
}

// MarkRead flips the other participant's unread messages to read and, when
// anything changed, tells that participant which ids were read.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID uint64) ([]uint64, error) {
	conv, err := s.rooms.Authorize(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	return s.markRead(ctx, conv, readerID)
}

func (s *ChatService) markRead(ctx context.Context, conv *domain.Conversation, readerID uint64) ([]uint64, error) {
	unlock := s.locks.lock(conv.ID)
	defer unlock()

	ids, err := s.messages.MarkRead(ctx, conv.ID, readerID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	metrics.ReadReceipts.Add(float64(len(ids)))
	s.rooms.SendToUser(ctx, conv.OtherParticipant(readerID), domain.NewEvent(domain.EventMessagesRead, domain.MessagesReadPayload{
		ConversationID: conv.ID,
		ReadBy:         readerID,
		MessageIDs:     ids,
	}))
	return ids, nil
}

// Typing relays a typing indicator to the other participant. Nothing is stored.
func (s *ChatService) Typing(ctx context.Context, conversationID, userID uint64, isTyping bool) error {
	conv, err := s.rooms.Authorize(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	s.rooms.SendToUser(ctx, conv.OtherParticipant(userID), domain.NewEvent(domain.EventUserTyping, domain.TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}))
	return nil
}

// CreateConversation returns the conversation between the two users,
// creating it when none exists. created reports whether a row was inserted.
func (s *ChatService) CreateConversation(ctx context.Context, initiatorID uint64, req *domain.CreateConversationRequest) (resp *domain.ConversationResponse, created bool, err error) {
	if req.ParticipantID == 0 {
		return nil, false, fmt.Errorf("participant_id is required: %w", common.ErrValidation)
	}
	if req.ParticipantID == initiatorID {
		return nil, false, fmt.Errorf("cannot start a conversation with yourself: %w", common.ErrValidation)
	}
	if _, err := s.users.FindByID(ctx, req.ParticipantID); err != nil {
		if common.IsUserNotFound(err) {
			return nil, false, fmt.Errorf("participant %d does not exist: %w", req.ParticipantID, common.ErrValidation)
		}
		return nil, false, err
	}

	existing, err := s.conversations.FindBetween(ctx, initiatorID, req.ParticipantID)
	switch {
	case err == nil:
		resp, err = s.conversationView(ctx, existing, initiatorID)
		return resp, false, err
	case !common.IsNotFound(err):
		return nil, false, err
	}

	conv := &domain.Conversation{
		Title:         strings.TrimSpace(req.Title),
		InitiatorID:   initiatorID,
		ParticipantID: req.ParticipantID,
		PropertyID:    req.PropertyID,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}

	log := logger.WithUserID(initiatorID)
	log.Info().
		Uint64("conversation_id", conv.ID).
		Uint64("participant_id", conv.ParticipantID).
		Msg("conversation created")

	resp, err = s.conversationView(ctx, conv, initiatorID)
	return resp, true, err
}

// ListConversations returns the user's conversations, most recent activity first
func (s *ChatService) ListConversations(ctx context.Context, userID uint64) ([]*domain.ConversationResponse, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.conversationViews(ctx, convs, userID)
}

// GetConversation returns one conversation and marks the other participant's
// messages as read for userID.
func (s *ChatService) GetConversation(ctx context.Context, conversationID, userID uint64) (*domain.ConversationResponse, error) {
	conv, err := s.rooms.Authorize(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.markRead(ctx, conv, userID); err != nil {
		return nil, err
	}
	return s.conversationView(ctx, conv, userID)
}

// DeleteConversation removes a conversation with its messages and empties its room
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID uint64) error {
	if _, err := s.rooms.Authorize(ctx, conversationID, userID); err != nil {
		return err
	}

	unlock := s.locks.lock(conversationID)
	defer unlock()

	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return err
	}
	s.rooms.CloseRoom(ctx, conversationID)

	log := logger.WithUserID(userID)
	log.Info().Uint64("conversation_id", conversationID).Msg("conversation deleted")
	return nil
}

// ListMessages returns a conversation's messages oldest first
func (s *ChatService) ListMessages(ctx context.Context, conversationID, userID uint64) ([]*domain.MessageResponse, error) {
	if _, err := s.rooms.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]uint64, 0, 2)
	seen := make(map[uint64]bool, 2)
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	senders, err := s.users.FindByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToResponse(senders[m.SenderID].Summary()))
	}
	return out, nil
}

func (s *ChatService) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("message content is required: %w", common.ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return "", fmt.Errorf("message exceeds %d characters: %w", s.maxLength, common.ErrValidation)
	}
	return content, nil
}

func (s *ChatService) senderSummary(ctx context.Context, senderID uint64) *domain.UserSummary {
	user, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		log := logger.WithUserID(senderID)
		log.Warn().Err(err).Msg("sender lookup failed")
		return nil
	}
	return user.Summary()
}

func (s *ChatService) conversationView(ctx context.Context, conv *domain.Conversation, userID uint64) (*domain.ConversationResponse, error) {
	views, err := s.conversationViews(ctx, []*domain.Conversation{conv}, userID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *ChatService) conversationViews(ctx context.Context, convs []*domain.Conversation, userID uint64) ([]*domain.ConversationResponse, error) {
	ids := make([]uint64, 0, len(convs))
	userIDs := make([]uint64, 0, len(convs)+1)
	for _, c := range convs {
		ids = append(ids, c.ID)
		userIDs = append(userIDs, c.InitiatorID, c.ParticipantID)
	}

	counts, err := s.messages.Counts(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ConversationResponse, 0, len(convs))
	for _, c := range convs {
		resp := c.ToResponse()
		resp.Initiator = users[c.InitiatorID].Summary()
		resp.Participant = users[c.ParticipantID].Summary()
		resp.MessageCount = counts[c.ID].Total
		resp.UnreadCount = counts[c.ID].Unread
		out = append(out, resp)
	}
	return out, nil
}
