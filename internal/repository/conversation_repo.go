package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"gorm.io/gorm"
)

// ConversationRepository conversation data access interface
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id uint64) (*domain.Conversation, error)
	FindBetween(ctx context.Context, userA, userB uint64) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uint64) ([]*domain.Conversation, error)
	Delete(ctx context.Context, id uint64) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation %d: %w", id, common.ErrConversationNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindBetween looks up the conversation for an unordered pair of users
func (r *conversationRepository) FindBetween(ctx context.Context, userA, userB uint64) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).
		Where("(initiator_id = ? AND participant_id = ?) OR (initiator_id = ? AND participant_id = ?)",
			userA, userB, userB, userA).
		Order("id ASC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the user's conversations, most recent activity first
func (r *conversationRepository) ListForUser(ctx context.Context, userID uint64) ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	err := r.db.WithContext(ctx).
		Where("initiator_id = ? OR participant_id = ?", userID, userID).
		Order("last_message_at IS NULL, last_message_at DESC, id DESC").
		Find(&convs).Error
	return convs, err
}

// Delete removes a conversation and every message it owns
func (r *conversationRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("conversation %d: %w", id, common.ErrConversationNotFound)
		}
		return nil
	})
}
