package readstate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/infrastructure/repository/inmemory"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

var (
	alice = domain.Principal{ID: "alice"}
	bob   = domain.Principal{ID: "bob"}
	carol = domain.Principal{ID: "carol"}
)

type fixture struct {
	clock    *fakeClock
	store    *inmemory.Store
	chats    chat.Service
	messages message.Service
	reads    readstate.Service
}

func newFixture() *fixture {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	store := inmemory.NewStore()
	chats := chat.NewService(store.Chats(), store.Members(), store.Messages(), store, chat.Options{Now: clock.Now}, zerolog.Nop())
	messages := message.NewService(store.Messages(), chats, store, message.Options{Now: clock.Now}, zerolog.Nop())
	reads := readstate.NewService(store.ReadState(), chats, clock.Now, zerolog.Nop())
	return &fixture{clock: clock, store: store, chats: chats, messages: messages, reads: reads}
}

func (f *fixture) send(t *testing.T, actor domain.Principal, chatID, content string) *message.Message {
	t.Helper()
	f.clock.Advance(time.Second)
	msg, err := f.messages.Send(context.Background(), actor, chatID, message.SendInput{Content: content})
	require.NoError(t, err)
	return msg
}

func (f *fixture) unread(t *testing.T, actor domain.Principal, chatID string) int64 {
	t.Helper()
	n, err := f.reads.UnreadCount(context.Background(), actor, chatID)
	require.NoError(t, err)
	return n
}

func TestUnreadResetsOnMarkAsRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room, _, err := f.chats.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)

	f.send(t, alice, room.ID, "one")
	f.send(t, alice, room.ID, "two")
	assert.Equal(t, int64(2), f.unread(t, bob, room.ID))
	assert.Equal(t, int64(0), f.unread(t, alice, room.ID), "own messages never count")

	f.clock.Advance(time.Second)
	_, err = f.reads.MarkAsRead(ctx, bob, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.unread(t, bob, room.ID))

	f.send(t, bob, room.ID, "reply")
	assert.Equal(t, int64(0), f.unread(t, bob, room.ID))

	gone := f.send(t, alice, room.ID, "three")
	assert.Equal(t, int64(1), f.unread(t, bob, room.ID))

	_, err = f.messages.Delete(ctx, alice, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.unread(t, bob, room.ID), "tombstones still count")
}

func TestReadCursorNeverMovesBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room, _, err := f.chats.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)

	f.send(t, alice, room.ID, "one")
	f.clock.Advance(time.Minute)
	later, err := f.reads.MarkAsRead(ctx, bob, room.ID)
	require.NoError(t, err)

	f.clock.Set(later.Add(-time.Hour))
	_, err = f.reads.MarkAsRead(ctx, bob, room.ID)
	require.NoError(t, err)

	m, err := f.store.Members().Find(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, later, m.LastRead)
}

func TestMarkAsReadErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room, _, err := f.chats.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)

	_, err = f.reads.MarkAsRead(ctx, carol, room.ID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotAMember))

	_, err = f.reads.MarkAsRead(ctx, alice, "chat_missing")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	_, err = f.reads.MarkAsRead(ctx, domain.Principal{}, room.ID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized))

	_, err = f.reads.UnreadCount(ctx, carol, room.ID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotAMember))
}

func TestSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	quiet, _, err := f.chats.GetOrCreateDirect(ctx, bob, "alice")
	require.NoError(t, err)
	busy, _, err := f.chats.GetOrCreateDirect(ctx, bob, "carol")
	require.NoError(t, err)

	f.send(t, bob, quiet.ID, "from bob")
	f.send(t, carol, busy.ID, "from carol")

	summary, err := f.reads.Summary(ctx, bob)
	require.NoError(t, err)
	assert.True(t, summary.HasUnread)
	assert.Equal(t, 1, summary.ChatsWithUnread)
	assert.Equal(t, int64(1), summary.Counts[busy.ID])
	assert.Equal(t, int64(0), summary.Counts[quiet.ID])

	f.clock.Advance(time.Second)
	_, err = f.reads.MarkAsRead(ctx, bob, busy.ID)
	require.NoError(t, err)

	summary, err = f.reads.Summary(ctx, bob)
	require.NoError(t, err)
	assert.False(t, summary.HasUnread)
	assert.Zero(t, summary.ChatsWithUnread)
}
