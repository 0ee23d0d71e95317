package poll_test

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
	"github.com/worknest/messaging-api/internal/domain/poll"
	"github.com/worknest/messaging-api/internal/domain/presence"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	presencestore "github.com/worknest/messaging-api/internal/infrastructure/presence"
	"github.com/worknest/messaging-api/internal/infrastructure/repository/inmemory"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

const lag = 2 * time.Second

var (
	alice = domain.Principal{ID: "alice"}
	bob   = domain.Principal{ID: "bob"}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// direct runs fn without isolation, the way concurrent Postgres transactions
// look to a reader that only sees committed rows.
type direct struct{}

func (direct) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// stalledRepo holds the first Create until release is closed.
type stalledRepo struct {
	message.Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *stalledRepo) Create(ctx context.Context, msg *message.Message) error {
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	return r.Repository.Create(ctx, msg)
}

type fixture struct {
	clock    *clock
	messages message.Service
	typing   presence.Service
	svc      poll.Service
	room     *chat.Chat
}

func newFixture(t *testing.T, repo func(message.Repository) message.Repository, tx func(*inmemory.Store) domain.Transactor) *fixture {
	t.Helper()
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}

	store := inmemory.NewStore()
	var msgRepo message.Repository = store.Messages()
	if repo != nil {
		msgRepo = repo(msgRepo)
	}
	var transactor domain.Transactor = store
	if tx != nil {
		transactor = tx(store)
	}

	chats := chat.NewService(store.Chats(), store.Members(), store.Messages(), store, chat.Options{Now: c.Now}, zerolog.Nop())
	messages := message.NewService(msgRepo, chats, transactor, message.Options{Now: c.Now}, zerolog.Nop())
	typing := presence.NewService(presencestore.NewMemoryStore(2), chats, presence.Options{Now: c.Now}, zerolog.Nop())
	reads := readstate.NewService(store.ReadState(), chats, c.Now, zerolog.Nop())
	svc := poll.NewService(messages, typing, reads, poll.Options{PageMax: 2, Lag: lag, Now: c.Now}, zerolog.Nop())

	room, _, err := chats.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)
	return &fixture{clock: c, messages: messages, typing: typing, svc: svc, room: room}
}

func (f *fixture) send(t *testing.T, content string) *message.Message {
	t.Helper()
	msg, err := f.messages.Send(context.Background(), alice, f.room.ID, message.SendInput{Content: content})
	require.NoError(t, err)
	return msg
}

func TestSnapshotIsRepeatableAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	f.clock.Advance(time.Second)
	first := f.send(t, "one")
	require.NoError(t, f.typing.SetTyping(ctx, alice, f.room.ID, true))

	snap, err := f.svc.Snapshot(ctx, bob, f.room.ID, message.SyncPosition{}, 0)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, first.ID, snap.Messages[0].ID)
	assert.Equal(t, int64(1), snap.Unread)
	require.Len(t, snap.Typing, 1)
	assert.Equal(t, "alice", snap.Typing[0].UserID)
	assert.False(t, snap.HasMore)
	assert.Equal(t, message.SyncPosition{UpdatedAt: snap.ServerTime.Add(-lag)}, snap.Cursor)

	again, err := f.svc.Snapshot(ctx, bob, f.room.ID, snap.Cursor, 0)
	require.NoError(t, err)
	require.Len(t, again.Messages, 1, "rows inside the lag window are sent again")
	assert.Equal(t, snap.Cursor, again.Cursor)

	f.clock.Advance(time.Minute)
	settled, err := f.svc.Snapshot(ctx, bob, f.room.ID, again.Cursor, 0)
	require.NoError(t, err)
	require.Len(t, settled.Messages, 1)
	quiet, err := f.svc.Snapshot(ctx, bob, f.room.ID, settled.Cursor, 0)
	require.NoError(t, err)
	assert.Empty(t, quiet.Messages, "the horizon has passed the first message")

	f.clock.Advance(time.Second)
	second := f.send(t, "two")
	f.clock.Advance(time.Second)
	f.send(t, "three")
	f.clock.Advance(time.Second)
	third := f.send(t, "four")
	f.clock.Advance(time.Minute)

	page, err := f.svc.Snapshot(ctx, bob, f.room.ID, quiet.Cursor, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2, "capped by page max")
	assert.True(t, page.HasMore)
	assert.Equal(t, second.ID, page.Messages[0].ID)
	assert.Equal(t, page.Messages[1].Position(), page.Cursor, "a full page stops at its last row")

	rest, err := f.svc.Snapshot(ctx, bob, f.room.ID, page.Cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest.Messages, 1)
	assert.Equal(t, third.ID, rest.Messages[0].ID)
	assert.False(t, rest.HasMore)

	_, err = f.svc.Snapshot(ctx, domain.Principal{ID: "carol"}, f.room.ID, message.SyncPosition{}, 0)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotAMember))
}

func TestSnapshotCursorNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	ahead := message.SyncPosition{UpdatedAt: f.clock.Now().Add(time.Hour), ID: "msg_z"}
	snap, err := f.svc.Snapshot(ctx, bob, f.room.ID, ahead, 0)
	require.NoError(t, err)
	assert.Equal(t, ahead, snap.Cursor)
}

func TestSnapshotDeliversLateCommit(t *testing.T) {
	ctx := context.Background()
	stalled := &stalledRepo{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t,
		func(repo message.Repository) message.Repository {
			stalled.Repository = repo
			return stalled
		},
		func(*inmemory.Store) domain.Transactor { return direct{} },
	)

	// "slow" takes its timestamp and then stalls before the row is visible.
	f.clock.Advance(time.Second)
	slowDone := make(chan *message.Message, 1)
	go func() {
		msg, err := f.messages.Send(ctx, alice, f.room.ID, message.SendInput{Content: "slow"})
		assert.NoError(t, err)
		slowDone <- msg
	}()
	<-stalled.entered

	f.clock.Advance(time.Second)
	fast := f.send(t, "fast")

	first, err := f.svc.Snapshot(ctx, bob, f.room.ID, message.SyncPosition{}, 0)
	require.NoError(t, err)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, fast.ID, first.Messages[0].ID)

	close(stalled.release)
	slow := <-slowDone
	require.NotNil(t, slow)
	require.True(t, slow.UpdatedAt.Before(fast.UpdatedAt))

	second, err := f.svc.Snapshot(ctx, bob, f.room.ID, first.Cursor, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(second.Messages))
	for _, msg := range second.Messages {
		ids = append(ids, msg.ID)
	}
	assert.Contains(t, ids, slow.ID, "a write committed after the previous poll is still delivered")
}
