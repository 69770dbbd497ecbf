package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageCounts per-conversation totals for one reader
type MessageCounts struct {
	Total  int64
	Unread int64
}

// MessageRepository message data access interface
type MessageRepository interface {
	CreateWithPreview(ctx context.Context, msg *domain.Message) error
	ListByConversation(ctx context.Context, conversationID uint64) ([]*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uint64, at time.Time) ([]uint64, error)
	Counts(ctx context.Context, conversationIDs []uint64, readerID uint64) (map[uint64]MessageCounts, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// CreateWithPreview inserts msg and copies its content and timestamp into the
// conversation preview in the same transaction
func (r *messageRepository) CreateWithPreview(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		result := tx.Model(&domain.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message":    msg.Content,
				"last_message_at": msg.CreatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("conversation %d: %w", msg.ConversationID, common.ErrConversationNotFound)
		}
		return nil
	})
}

// ListByConversation returns messages in conversation order
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uint64) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead flips every unread message not sent by readerID to read, stamping
// the whole batch with at. Returns the IDs this call changed.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID uint64, at time.Time) ([]uint64, error) {
	// Millisecond precision matches the stored column, so read_at can be compared below
	at = at.UTC().Truncate(time.Millisecond)

	var ids []uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Message{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
			Order("created_at ASC, id ASC").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		result := tx.Model(&domain.Message{}).
			Where("id IN ? AND is_read = ?", ids, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": at})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == int64(len(ids)) {
			return nil
		}

		// Another batch read some rows first; report only the ones stamped here
		stamped := make([]uint64, 0, result.RowsAffected)
		if err := tx.Model(&domain.Message{}).
			Where("id IN ? AND read_at = ?", ids, at).
			Order("created_at ASC, id ASC").
			Pluck("id", &stamped).Error; err != nil {
			return err
		}
		ids = stamped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *messageRepository) Counts(ctx context.Context, conversationIDs []uint64, readerID uint64) (map[uint64]MessageCounts, error) {
	result := make(map[uint64]MessageCounts, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ConversationID uint64
		Total          int64
		Unread         int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Select("conversation_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN is_read = ? AND sender_id <> ? THEN 1 ELSE 0 END) AS unread", false, readerID).
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.ConversationID] = MessageCounts{Total: row.Total, Unread: row.Unread}
	}
	return result, nil
}
