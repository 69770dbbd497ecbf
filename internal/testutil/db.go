// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/migration"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens an isolated in-memory SQLite database with the chat schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache DSN keeps one database across the pool's connections.
	dsn := fmt.Sprintf("file:chat_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, migration.Run(db))
	return db
}

// CreateUser inserts a user with the given first name and role.
func CreateUser(t *testing.T, db *gorm.DB, firstName, role string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:     fmt.Sprintf("%s.%d@example.com", firstName, dbSeq.Add(1)),
		FirstName: firstName,
		LastName:  "Test",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateConversation inserts a conversation between initiator and participant.
func CreateConversation(t *testing.T, db *gorm.DB, initiator, participant uint64) *domain.Conversation {
	t.Helper()
	c := &domain.Conversation{InitiatorID: initiator, ParticipantID: participant}
	require.NoError(t, db.Create(c).Error)
	return c
}
