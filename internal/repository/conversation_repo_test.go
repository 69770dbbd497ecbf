package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationRepository_FindBetweenIsUnordered(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewConversationRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	found, err := repo.FindBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	_, err = repo.FindBetween(ctx, a.ID, 999)
	assert.ErrorIs(t, err, common.ErrConversationNotFound)
}

func TestConversationRepository_ListForUserOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewConversationRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	c := testutil.CreateUser(t, db, "Chebet", domain.RoleLandlord)
	d := testutil.CreateUser(t, db, "Dalmas", domain.RoleLandlord)

	quiet := testutil.CreateConversation(t, db, a.ID, d.ID)
	older := testutil.CreateConversation(t, db, a.ID, b.ID)
	newer := testutil.CreateConversation(t, db, c.ID, a.ID)

	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	require.NoError(t, db.Model(older).Update("last_message_at", t1).Error)
	require.NoError(t, db.Model(newer).Update("last_message_at", t2).Error)

	convs, err := repo.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, []uint64{newer.ID, older.ID, quiet.ID}, []uint64{convs[0].ID, convs[1].ID, convs[2].ID})

	convs, err = repo.ListForUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestConversationRepository_DeleteCascadesMessages(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewConversationRepository(db)
	messages := NewMessageRepository(db)

	a := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	b := testutil.CreateUser(t, db, "Baraka", domain.RoleLandlord)
	conv := testutil.CreateConversation(t, db, a.ID, b.ID)

	for _, text := range []string{"one", "two"} {
		require.NoError(t, messages.CreateWithPreview(ctx, &domain.Message{
			ConversationID: conv.ID, SenderID: a.ID, Content: text, CreatedAt: time.Now(),
		}))
	}

	require.NoError(t, repo.Delete(ctx, conv.ID))

	var count int64
	db.Model(&domain.Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
	assert.Zero(t, count)

	_, err := repo.FindByID(ctx, conv.ID)
	assert.ErrorIs(t, err, common.ErrConversationNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, conv.ID), common.ErrConversationNotFound)
}
