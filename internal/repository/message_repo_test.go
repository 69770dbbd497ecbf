package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMessageRepository_CreateWithPreview(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)
	convs := NewConversationRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	at := time.Now().UTC().Truncate(time.Millisecond)
	msg := &domain.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "Is the flat available?", CreatedAt: at}
	require.NoError(t, repo.CreateWithPreview(ctx, msg))
	assert.NotZero(t, msg.ID)

	got, err := convs.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Is the flat available?", got.LastMessage)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(at))
}

func TestMessageRepository_CreateWithPreviewRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	err := repo.CreateWithPreview(ctx, &domain.Message{ConversationID: 404, SenderID: 1, Content: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, common.ErrConversationNotFound)

	var count int64
	db.Model(&domain.Message{}).Count(&count)
	assert.Zero(t, count, "message insert must roll back with the preview update")
}

func TestMessageRepository_CreateWithPreviewUnchangedPreview(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	// The second insert leaves the preview columns as they were
	at := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.CreateWithPreview(ctx, &domain.Message{
			ConversationID: conv.ID, SenderID: a.ID, Content: "ok", CreatedAt: at,
		}))
	}

	var count int64
	db.Model(&domain.Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestMessageRepository_ListOrdersByCreatedThenID(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	same := time.Now().UTC()
	for _, text := range []string{"m1", "m2", "m3"} {
		require.NoError(t, repo.CreateWithPreview(ctx, &domain.Message{
			ConversationID: conv.ID, SenderID: a.ID, Content: text, CreatedAt: same,
		}))
	}

	messages, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m1", messages[0].Content)
	assert.Equal(t, "m3", messages[2].Content)
}

func TestMessageRepository_MarkRead(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	var fromB []uint64
	for i := 0; i < 3; i++ {
		m := &domain.Message{ConversationID: conv.ID, SenderID: b.ID, Content: "rent reminder", CreatedAt: time.Now()}
		require.NoError(t, repo.CreateWithPreview(ctx, m))
		fromB = append(fromB, m.ID)
	}
	own := &domain.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "ok", CreatedAt: time.Now()}
	require.NoError(t, repo.CreateWithPreview(ctx, own))

	readAt := time.Now().UTC().Truncate(time.Second)
	ids, err := repo.MarkRead(ctx, conv.ID, a.ID, readAt)
	require.NoError(t, err)
	assert.ElementsMatch(t, fromB, ids)

	messages, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	for _, m := range messages {
		if m.SenderID == b.ID {
			assert.True(t, m.IsRead)
			require.NotNil(t, m.ReadAt)
			assert.True(t, m.ReadAt.Equal(readAt), "batch shares one read timestamp")
		} else {
			assert.False(t, m.IsRead, "own messages are never marked by the reader")
		}
	}

	ids, err = repo.MarkRead(ctx, conv.ID, a.ID, time.Now())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMessageRepository_MarkReadSkipsRowsReadElsewhere(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	var fromB []uint64
	for i := 0; i < 3; i++ {
		m := &domain.Message{ConversationID: conv.ID, SenderID: b.ID, Content: "rent reminder", CreatedAt: time.Now()}
		require.NoError(t, repo.CreateWithPreview(ctx, m))
		fromB = append(fromB, m.ID)
	}

	// Another instance's batch reads the first message between our select and update
	elsewhere := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	var once sync.Once
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:competing_batch", func(tx *gorm.DB) {
		once.Do(func() {
			tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE chat_messages SET is_read = ?, read_at = ? WHERE id = ?", true, elsewhere, fromB[0])
		})
	}))

	ids, err := repo.MarkRead(ctx, conv.ID, a.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fromB[1:], ids)

	var first domain.Message
	require.NoError(t, db.First(&first, fromB[0]).Error)
	require.NotNil(t, first.ReadAt)
	assert.True(t, first.ReadAt.Equal(elsewhere), "a row read elsewhere keeps its timestamp")
}

func TestMessageRepository_Counts(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	for _, sender := range []uint64{a.ID, b.ID, b.ID} {
		require.NoError(t, repo.CreateWithPreview(ctx, &domain.Message{
			ConversationID: conv.ID, SenderID: sender, Content: "hi", CreatedAt: time.Now(),
		}))
	}

	counts, err := repo.Counts(ctx, []uint64{conv.ID, 999}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, MessageCounts{Total: 3, Unread: 2}, counts[conv.ID])
	assert.Equal(t, MessageCounts{}, counts[999])
}
