package migration

import (
	"github.com/rentalhub/rental-backend/internal/domain"
	"gorm.io/gorm"
)

// Report summarizes chat data integrity
type Report struct {
	Users          int64
	Conversations  int64
	Messages       int64
	OrphanMessages int64 // messages whose conversation no longer exists
	DuplicatePairs int64 // unordered user pairs with more than one conversation
	SelfChats      int64 // conversations whose two participants are the same user
}

// OK reports whether no integrity problem was found
func (r *Report) OK() bool {
	return r.OrphanMessages == 0 && r.DuplicatePairs == 0 && r.SelfChats == 0
}

// Verify counts rows and looks for integrity problems
func Verify(db *gorm.DB) (*Report, error) {
	var r Report

	if err := db.Model(&domain.User{}).Count(&r.Users).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Conversation{}).Count(&r.Conversations).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Message{}).Count(&r.Messages).Error; err != nil {
		return nil, err
	}

	err := db.Raw(`
		SELECT COUNT(*) FROM chat_messages m
		LEFT JOIN chat_conversations c ON c.id = m.conversation_id
		WHERE c.id IS NULL`).Scan(&r.OrphanMessages).Error
	if err != nil {
		return nil, err
	}

	err = db.Raw(`
		SELECT COUNT(*) FROM (
			SELECT CASE WHEN initiator_id < participant_id THEN initiator_id ELSE participant_id END AS low_id,
			       CASE WHEN initiator_id < participant_id THEN participant_id ELSE initiator_id END AS high_id
			FROM chat_conversations
			GROUP BY low_id, high_id
			HAVING COUNT(*) > 1
		) dup`).Scan(&r.DuplicatePairs).Error
	if err != nil {
		return nil, err
	}

	if err := db.Model(&domain.Conversation{}).
		Where("initiator_id = participant_id").
		Count(&r.SelfChats).Error; err != nil {
		return nil, err
	}

	return &r, nil
}
