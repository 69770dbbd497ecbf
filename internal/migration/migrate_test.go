package migration

import (
	"testing"

	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Run(db))
	return db
}

func TestRunAndSeed(t *testing.T) {
	db := openDB(t)
	assert.True(t, db.Migrator().HasTable(&domain.Conversation{}))
	assert.True(t, db.Migrator().HasTable("chat_messages"))

	require.NoError(t, SeedDemoUsers(db))
	require.NoError(t, SeedDemoUsers(db))

	var count int64
	db.Model(&domain.User{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestVerify(t *testing.T) {
	db := openDB(t)
	require.NoError(t, SeedDemoUsers(db))

	var users []domain.User
	require.NoError(t, db.Order("id").Find(&users).Error)
	a, b := users[0].ID, users[1].ID

	conv := domain.Conversation{InitiatorID: a, ParticipantID: b}
	require.NoError(t, db.Create(&conv).Error)
	require.NoError(t, db.Create(&domain.Message{ConversationID: conv.ID, SenderID: a, Content: "hi"}).Error)

	report, err := Verify(db)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, int64(2), report.Users)
	assert.Equal(t, int64(1), report.Conversations)
	assert.Equal(t, int64(1), report.Messages)

	// Same pair the other way round, a self chat and an orphaned message
	require.NoError(t, db.Create(&domain.Conversation{InitiatorID: b, ParticipantID: a}).Error)
	require.NoError(t, db.Create(&domain.Conversation{InitiatorID: a, ParticipantID: a}).Error)
	require.NoError(t, db.Create(&domain.Message{ConversationID: 9999, SenderID: a, Content: "lost"}).Error)

	report, err = Verify(db)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, int64(1), report.DuplicatePairs)
	assert.Equal(t, int64(1), report.SelfChats)
	assert.Equal(t, int64(1), report.OrphanMessages)
}
