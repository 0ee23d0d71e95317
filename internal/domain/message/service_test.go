package message_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
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

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	alice = domain.Principal{ID: "alice"}
	bob   = domain.Principal{ID: "bob"}
	carol = domain.Principal{ID: "carol"}
)

type fixture struct {
	clock *fakeClock
	store *inmemory.Store
	chats chat.Service
	svc   message.Service
	room  *chat.Chat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)}
	store := inmemory.NewStore()
	chats := chat.NewService(store.Chats(), store.Members(), store.Messages(), store, chat.Options{Now: clock.Now}, zerolog.Nop())
	svc := message.NewService(store.Messages(), chats, store, message.Options{
		PageSize:    3,
		PageMax:     4,
		SearchLimit: 2,
		Now:         clock.Now,
	}, zerolog.Nop())

	room, _, err := chats.GetOrCreateDirect(context.Background(), alice, "bob")
	require.NoError(t, err)
	return &fixture{clock: clock, store: store, chats: chats, svc: svc, room: room}
}

func (f *fixture) send(t *testing.T, actor domain.Principal, content string) *message.Message {
	t.Helper()
	f.clock.Advance(time.Second)
	msg, err := f.svc.Send(context.Background(), actor, f.room.ID, message.SendInput{Content: content})
	require.NoError(t, err)
	return msg
}

func requireType(t *testing.T, err error, want platformerrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, want), "expected %s, got %v", want, err)
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"Hello @Bob", []string{"Bob"}},
		{"@a and @a again, @b_c!", []string{"a", "a", "b_c"}},
		{"mail me at me@example.com", []string{"example"}},
		{"no mentions @ here", []string{}},
		{"@@double", []string{"double"}},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, message.ExtractMentions(tt.content))
		})
	}
}

func TestMessageLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, alice, "Hello @Bob")
	assert.Equal(t, "Hello @Bob", sent.Content)
	assert.Equal(t, []string{"Bob"}, sent.Mentions)
	assert.False(t, sent.IsEdited)

	f.clock.Advance(time.Minute)
	edited, err := f.svc.Edit(ctx, alice, sent.ID, "Hi")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "Hi", edited.Content)
	assert.Empty(t, edited.Mentions)
	assert.Equal(t, sent.CreatedAt, edited.CreatedAt)
	assert.Equal(t, sent.AuthorID, edited.AuthorID)
	assert.True(t, edited.UpdatedAt.After(sent.UpdatedAt))

	deleted, err := f.svc.Delete(ctx, alice, sent.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	page, err := f.svc.List(ctx, alice, f.room.ID, message.Page{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, message.DeletedPlaceholder, page[0].Content)
	assert.NotNil(t, page[0].DeletedAt)
	assert.True(t, page[0].IsEdited)
	assert.Equal(t, sent.CreatedAt, page[0].CreatedAt)
}

func TestOnlyAuthorMayChangeMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent := f.send(t, alice, "mine")

	_, err := f.svc.Edit(ctx, bob, sent.ID, "yours now")
	requireType(t, err, platformerrors.ErrorTypeForbidden)

	_, err = f.svc.Delete(ctx, bob, sent.ID)
	requireType(t, err, platformerrors.ErrorTypeForbidden)

	_, err = f.svc.Edit(ctx, alice, "msg_missing", "x")
	requireType(t, err, platformerrors.ErrorTypeNotFound)

	_, err = f.svc.Delete(ctx, alice, "msg_missing")
	requireType(t, err, platformerrors.ErrorTypeNotFound)
}

func TestDeleteTwiceIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent := f.send(t, alice, "bye")

	first, err := f.svc.Delete(ctx, alice, sent.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.Delete(ctx, alice, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, first.DeletedAt, second.DeletedAt)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	_, err = f.svc.Edit(ctx, alice, sent.ID, "resurrect")
	requireType(t, err, platformerrors.ErrorTypeNotFound)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, carol, f.room.ID, message.SendInput{Content: "let me in"})
	requireType(t, err, platformerrors.ErrorTypeNotAMember)

	_, err = f.svc.Send(ctx, domain.Principal{}, f.room.ID, message.SendInput{Content: "x"})
	requireType(t, err, platformerrors.ErrorTypeUnauthorized)

	_, err = f.svc.Send(ctx, alice, f.room.ID, message.SendInput{Content: "   "})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, err = f.svc.Send(ctx, alice, f.room.ID, message.SendInput{
		Attachments: []attachment.Descriptor{{URL: "", Name: "a.png", Size: 1, Type: "image/png"}},
	})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, err = f.svc.Send(ctx, alice, "chat_missing", message.SendInput{Content: "x"})
	requireType(t, err, platformerrors.ErrorTypeNotFound)
}

func TestSendWithAttachmentOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	desc := attachment.Descriptor{URL: "/v1/attachments/attachments/2026/02/att_1.png", Name: "a.png", Size: 10, Type: "image/png"}
	msg, err := f.svc.Send(ctx, alice, f.room.ID, message.SendInput{Attachments: []attachment.Descriptor{desc}})
	require.NoError(t, err)
	assert.Equal(t, []attachment.Descriptor{desc}, msg.Attachments)

	list, err := f.svc.Attachments(ctx, bob, f.room.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, msg.ID, list[0].MessageID)
	assert.Equal(t, desc, list[0].Descriptor)

	_, err = f.svc.Delete(ctx, alice, msg.ID)
	require.NoError(t, err)
	list, err = f.svc.Attachments(ctx, bob, f.room.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.send(t, alice, "root")
	_, err := f.svc.Delete(ctx, alice, root.ID)
	require.NoError(t, err)

	reply, err := f.svc.Send(ctx, bob, f.room.ID, message.SendInput{Content: "answer", ReplyToID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)

	targets, err := f.svc.ReplyTargets(ctx, f.room.ID, []*message.Message{reply})
	require.NoError(t, err)
	require.Contains(t, targets, root.ID)
	assert.Equal(t, message.DeletedPlaceholder, targets[root.ID].Content)

	missing := "msg_missing"
	_, err = f.svc.Send(ctx, bob, f.room.ID, message.SendInput{Content: "x", ReplyToID: &missing})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	other, _, err := f.chats.GetOrCreateDirect(ctx, alice, "carol")
	require.NoError(t, err)
	foreign, err := f.svc.Send(ctx, alice, other.ID, message.SendInput{Content: "elsewhere"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, alice, f.room.ID, message.SendInput{Content: "x", ReplyToID: &foreign.ID})
	requireType(t, err, platformerrors.ErrorTypeValidation)
}

func TestSendTouchesChat(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, alice, "bump")

	c, err := f.store.Chats().FindByID(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.CreatedAt, c.UpdatedAt)
}

func TestListPagesOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var sent []*message.Message
	for i := 0; i < 5; i++ {
		sent = append(sent, f.send(t, alice, fmt.Sprintf("m%d", i)))
	}

	page, err := f.svc.List(ctx, bob, f.room.ID, message.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, sent[3].ID, page[0].ID)
	assert.Equal(t, sent[4].ID, page[1].ID)

	page, err = f.svc.List(ctx, bob, f.room.ID, message.Page{Limit: 2, BeforeID: &page[0].ID})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, sent[1].ID, page[0].ID)
	assert.Equal(t, sent[2].ID, page[1].ID)

	page, err = f.svc.List(ctx, bob, f.room.ID, message.Page{})
	require.NoError(t, err)
	assert.Len(t, page, 3, "default page size")

	page, err = f.svc.List(ctx, bob, f.room.ID, message.Page{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, page, 4, "page size is capped")

	_, err = f.svc.List(ctx, carol, f.room.ID, message.Page{})
	requireType(t, err, platformerrors.ErrorTypeNotAMember)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, alice, "Quarterly REPORT draft")
	gone := f.send(t, alice, "report to delete")
	f.send(t, bob, "unrelated")
	second := f.send(t, bob, "the report is done")
	third := f.send(t, alice, "final Report")

	_, err := f.svc.Delete(ctx, alice, gone.ID)
	require.NoError(t, err)

	found, err := f.svc.Search(ctx, bob, f.room.ID, "report")
	require.NoError(t, err)
	require.Len(t, found, 2, "capped at the search limit")
	assert.Equal(t, third.ID, found[0].ID)
	assert.Equal(t, second.ID, found[1].ID)

	found, err = f.svc.Search(ctx, bob, f.room.ID, "delete")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.svc.Search(ctx, bob, f.room.ID, "  ")
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, err = f.svc.Search(ctx, carol, f.room.ID, "report")
	requireType(t, err, platformerrors.ErrorTypeNotAMember)
}

func TestChangesIncludeEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.send(t, alice, "one")
	cursor := f.clock.Now()
	second := f.send(t, alice, "two")

	f.clock.Advance(time.Second)
	_, err := f.svc.Edit(ctx, alice, first.ID, "one, edited")
	require.NoError(t, err)

	changes, err := f.svc.Changes(ctx, bob, f.room.ID, message.SyncPosition{UpdatedAt: cursor.Add(time.Millisecond)}, 0)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, second.ID, changes[0].ID)
	assert.Equal(t, first.ID, changes[1].ID)
	assert.True(t, changes[1].IsEdited)
}

func TestChangesPageThroughOneInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent := make(map[string]bool)
	for i := 0; i < 5; i++ {
		msg, err := f.svc.Send(ctx, alice, f.room.ID, message.SendInput{Content: fmt.Sprintf("burst %d", i)})
		require.NoError(t, err)
		sent[msg.ID] = true
	}

	seen := make(map[string]bool)
	var after message.SyncPosition
	for round := 0; round < 5; round++ {
		page, err := f.svc.Changes(ctx, bob, f.room.ID, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			assert.False(t, seen[msg.ID], "message %s delivered twice", msg.ID)
			seen[msg.ID] = true
		}
		after = page[len(page)-1].Position()
	}
	assert.Equal(t, sent, seen)
}

func TestLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, alice, "first")
	last := f.send(t, bob, "last")

	latest, err := f.svc.Latest(ctx, []string{f.room.ID, "chat_empty"})
	require.NoError(t, err)
	require.Contains(t, latest, f.room.ID)
	assert.Equal(t, last.ID, latest[f.room.ID].ID)
	assert.NotContains(t, latest, "chat_empty")
}
