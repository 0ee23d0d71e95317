package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func seedGroup(t *testing.T, store *Store) *chat.Chat {
	t.Helper()
	name := "Team"
	c := &chat.Chat{ID: "chat_1", Kind: chat.KindGroup, Name: &name, CreatedBy: "alice", CreatedAt: t0, UpdatedAt: t0}
	members := []*chat.Member{
		{ChatID: c.ID, UserID: "alice", Role: permission.ChatRoleAdmin, JoinedAt: t0},
		{ChatID: c.ID, UserID: "bob", Role: permission.ChatRoleMember, JoinedAt: t0},
	}
	require.NoError(t, store.Chats().Create(context.Background(), c, members))
	return c
}

func TestRollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	room := seedGroup(t, store)
	boom := errors.New("boom")

	err := store.WithinTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, store.Messages().Create(txCtx, &message.Message{
			ID: "msg_1", ChatID: room.ID, AuthorID: "alice", Content: "draft", CreatedAt: t0, UpdatedAt: t0,
		}))
		require.NoError(t, store.Chats().Touch(txCtx, room.ID, t0.Add(time.Minute)))

		// Unrelated writers that are not part of the transaction.
		_, err := store.Members().ToggleFavorite(ctx, room.ID, "bob")
		require.NoError(t, err)
		_, err = store.ReadState().MarkRead(ctx, room.ID, "alice", t0.Add(time.Hour))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Messages().FindByID(ctx, "msg_1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	restored, err := store.Chats().FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, t0.Equal(restored.UpdatedAt))

	bob, err := store.Members().Find(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.True(t, bob.IsFavorite)

	alice, err := store.Members().Find(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.True(t, t0.Add(time.Hour).Equal(alice.LastRead))
}

func TestRollbackRestoresDeletedRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	room := seedGroup(t, store)
	require.NoError(t, store.Messages().Create(ctx, &message.Message{
		ID: "msg_1", ChatID: room.ID, AuthorID: "alice", Content: "keep", CreatedAt: t0, UpdatedAt: t0,
	}))

	err := store.WithinTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, store.Messages().DeleteByChat(txCtx, room.ID))
		require.NoError(t, store.Members().DeleteByChat(txCtx, room.ID))
		require.NoError(t, store.Chats().Delete(txCtx, room.ID))
		return errors.New("abort")
	})
	require.Error(t, err)

	msg, err := store.Messages().FindByID(ctx, "msg_1")
	require.NoError(t, err)
	assert.Equal(t, "keep", msg.Content)

	members, err := store.Members().ListByChat(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = store.Chats().FindByID(ctx, room.ID)
	assert.NoError(t, err)
}

func TestCommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	room := seedGroup(t, store)

	err := store.WithinTransaction(ctx, func(txCtx context.Context) error {
		return store.WithinTransaction(txCtx, func(inner context.Context) error {
			return store.Messages().Create(inner, &message.Message{
				ID: "msg_1", ChatID: room.ID, AuthorID: "bob", Content: "hi", CreatedAt: t0, UpdatedAt: t0,
			})
		})
	})
	require.NoError(t, err)

	unread, err := store.ReadState().UnreadCount(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}
