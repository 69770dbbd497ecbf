// Package room groups live sessions by conversation and fans events out to
// them.
package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/metrics"
	"github.com/rentalhub/rental-backend/internal/presence"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

// Emitter writes one event to one session. Implementations return an error
// wrapping common.ErrTransport when the session cannot take the event.
type Emitter interface {
	EmitToSession(ctx context.Context, sessionID string, event *domain.Event) error
}

// ConversationFinder loads a conversation by id
type ConversationFinder interface {
	FindByID(ctx context.Context, id uint64) (*domain.Conversation, error)
}

// Manager authorizes joins and delivers events to rooms and users
type Manager struct {
	conversations ConversationFinder
	store         Store
	registry      presence.Registry
	emitter       Emitter
}

// NewManager creates a new Manager
func NewManager(conversations ConversationFinder, store Store, registry presence.Registry, emitter Emitter) *Manager {
	return &Manager{
		conversations: conversations,
		store:         store,
		registry:      registry,
		emitter:       emitter,
	}
}

// Authorize loads a conversation and checks that userID participates in it
func (m *Manager) Authorize(ctx context.Context, conversationID, userID uint64) (*domain.Conversation, error) {
	conv, err := m.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("user %d in conversation %d: %w", userID, conversationID, common.ErrAccessDenied)
	}
	return conv, nil
}

// Join adds sessionID to the conversation room and tells the other
// participant. Returns the room name.
func (m *Manager) Join(ctx context.Context, conversationID, userID uint64, sessionID string) (string, error) {
	conv, err := m.Authorize(ctx, conversationID, userID)
	if err != nil {
		return "", err
	}

	if err := m.store.Add(ctx, conversationID, sessionID); err != nil {
		return "", fmt.Errorf("join room: %w", err)
	}

	m.SendToUser(ctx, conv.OtherParticipant(userID), domain.NewEvent(domain.EventUserJoined, domain.MembershipPayload{
		UserID:         userID,
		ConversationID: conversationID,
	}))
	return domain.RoomName(conversationID), nil
}

// Leave removes sessionID from the conversation room and tells the other
// participant.
func (m *Manager) Leave(ctx context.Context, conversationID, userID uint64, sessionID string) error {
	conv, err := m.Authorize(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	if err := m.store.Remove(ctx, conversationID, sessionID); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}

	m.notifyLeft(ctx, conv, userID)
	return nil
}

// LeaveAll removes sessionID from every room it joined. Used on disconnect.
func (m *Manager) LeaveAll(ctx context.Context, userID uint64, sessionID string) {
	log := logger.WithSessionID(sessionID)

	rooms, err := m.store.RoomsOf(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("list joined rooms failed")
		return
	}

	for _, conversationID := range rooms {
		if err := m.store.Remove(ctx, conversationID, sessionID); err != nil {
			log.Error().Err(err).Uint64("conversation_id", conversationID).Msg("leave room failed")
			continue
		}
		if userID == 0 {
			continue
		}

		conv, err := m.conversations.FindByID(ctx, conversationID)
		if err != nil {
			// Deleted while joined
			continue
		}
		m.notifyLeft(ctx, conv, userID)
	}
}

// CloseRoom drops every session from a conversation room
func (m *Manager) CloseRoom(ctx context.Context, conversationID uint64) {
	if _, err := m.store.Close(ctx, conversationID); err != nil {
		logger.GetLogger().Error().Err(err).Uint64("conversation_id", conversationID).Msg("close room failed")
	}
}

// Members returns the sessions joined to a conversation room
func (m *Manager) Members(ctx context.Context, conversationID uint64) ([]string, error) {
	return m.store.Members(ctx, conversationID)
}

// Broadcast sends event to every session in the conversation room. Each
// recipient is attempted independently; the number of successful deliveries
// is returned.
func (m *Manager) Broadcast(ctx context.Context, conversationID uint64, event *domain.Event) int {
	members, err := m.store.Members(ctx, conversationID)
	if err != nil {
		logger.GetLogger().Error().Err(err).Uint64("conversation_id", conversationID).Msg("list room members failed")
		return 0
	}

	delivered := 0
	for _, sessionID := range members {
		if m.emit(ctx, sessionID, event) {
			delivered++
		}
	}
	return delivered
}

// SendToUser delivers event to the registered session of userID, if any.
// Reports whether a delivery happened.
func (m *Manager) SendToUser(ctx context.Context, userID uint64, event *domain.Event) bool {
	sessionID, ok := m.registry.Lookup(ctx, userID)
	if !ok {
		return false
	}
	return m.emit(ctx, sessionID, event)
}

// SendToSession delivers event to one session
func (m *Manager) SendToSession(ctx context.Context, sessionID string, event *domain.Event) bool {
	return m.emit(ctx, sessionID, event)
}

func (m *Manager) notifyLeft(ctx context.Context, conv *domain.Conversation, userID uint64) {
	m.SendToUser(ctx, conv.OtherParticipant(userID), domain.NewEvent(domain.EventUserLeft, domain.MembershipPayload{
		UserID:         userID,
		ConversationID: conv.ID,
	}))
}

func (m *Manager) emit(ctx context.Context, sessionID string, event *domain.Event) bool {
	err := m.emitter.EmitToSession(ctx, sessionID, event)
	if err == nil {
		return true
	}

	metrics.DeliveriesFailed.WithLabelValues(event.Type).Inc()
	if !errors.Is(err, common.ErrTransport) {
		err = fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	logger.GetLogger().Warn().Err(err).
		Str("session_id", sessionID).
		Str("event", event.Type).
		Msg("event delivery failed")
	return false
}
