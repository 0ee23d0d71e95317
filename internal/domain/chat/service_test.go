package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/infrastructure/repository/inmemory"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

var (
	alice = domain.Principal{ID: "alice", SystemRole: permission.SystemRoleEmployee}
	bob   = domain.Principal{ID: "bob", SystemRole: permission.SystemRoleEmployee}
	carol = domain.Principal{ID: "carol", SystemRole: permission.SystemRoleEmployee}
	boss  = domain.Principal{ID: "boss", SystemRole: permission.SystemRoleAdmin}
)

func clock() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

type fixture struct {
	store *inmemory.Store
	svc   chat.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmemory.NewStore()
	svc := chat.NewService(store.Chats(), store.Members(), store.Messages(), store,
		chat.Options{GroupMemberLimit: 5, Now: clock}, zerolog.Nop())
	return &fixture{store: store, svc: svc}
}

func requireType(t *testing.T, err error, want platformerrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, want), "expected %s, got %v", want, err)
}

func TestGetOrCreateDirectIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, outcome, err := f.svc.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeCreated, outcome)
	assert.Equal(t, chat.KindDirect, first.Kind)

	second, outcome, err := f.svc.GetOrCreateDirect(ctx, bob, "alice")
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeExisting, outcome)
	assert.Equal(t, first.ID, second.ID)

	members, err := f.store.Members().ListByChat(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestGetOrCreateDirectConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor, other := alice, "bob"
			if i%2 == 1 {
				actor, other = bob, "alice"
			}
			c, _, err := f.svc.GetOrCreateDirect(ctx, actor, other)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetOrCreateDirectValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.GetOrCreateDirect(ctx, alice, "alice")
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, _, err = f.svc.GetOrCreateDirect(ctx, alice, "  ")
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, _, err = f.svc.GetOrCreateDirect(ctx, domain.Principal{}, "bob")
	requireType(t, err, platformerrors.ErrorTypeUnauthorized)
}

func TestGetOrCreateDirectRestoresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, _, err := f.svc.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)
	require.NoError(t, f.store.Members().Remove(ctx, c.ID, []string{"bob"}))

	again, outcome, err := f.svc.GetOrCreateDirect(ctx, bob, "alice")
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeExisting, outcome)
	assert.Equal(t, c.ID, again.ID)

	_, err = f.store.Members().Find(ctx, c.ID, "bob")
	assert.NoError(t, err)
}

// staleChats hides the winner from the first lookup, as if a concurrent
// insert committed between our read and our write.
type staleChats struct {
	*inmemory.ChatRepository
	lookups int
}

func (r *staleChats) FindByDirectKey(ctx context.Context, key string) (*chat.Chat, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", nil, "test")
	}
	return r.ChatRepository.FindByDirectKey(ctx, key)
}

func TestGetOrCreateDirectRecoversFromLostRace(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	key := chat.DirectKey("alice", "bob")
	winner := &chat.Chat{ID: "chat_winner", Kind: chat.KindDirect, DirectKey: &key, CreatedBy: "bob", CreatedAt: clock(), UpdatedAt: clock()}
	require.NoError(t, store.Chats().Create(ctx, winner, []*chat.Member{
		{ChatID: winner.ID, UserID: "bob", Role: permission.ChatRoleMember, LastRead: clock(), JoinedAt: clock()},
	}))

	chats := &staleChats{ChatRepository: store.Chats()}
	svc := chat.NewService(chats, store.Members(), store.Messages(), store, chat.Options{Now: clock}, zerolog.Nop())

	got, outcome, err := svc.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeRecovered, outcome)
	assert.Equal(t, winner.ID, got.ID)
	assert.Equal(t, 2, chats.lookups)

	_, err = store.Members().Find(ctx, winner.ID, "alice")
	assert.NoError(t, err, "caller must be added to the winning chat")
}

func TestGetOrCreateProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, outcome, err := f.svc.GetOrCreateProject(ctx, alice, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeCreated, outcome)
	require.NotNil(t, first.ProjectID)
	assert.Equal(t, "proj-1", *first.ProjectID)

	second, outcome, err := f.svc.GetOrCreateProject(ctx, bob, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeExisting, outcome)
	assert.Equal(t, first.ID, second.ID)

	members, err := f.store.Members().ListByChat(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2, "bob joins on first access")

	_, _, err = f.svc.GetOrCreateProject(ctx, alice, "")
	requireType(t, err, platformerrors.ErrorTypeValidation)
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "   "})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, err = f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "big", MemberIDs: []string{"a", "b", "c", "d", "e"}})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	g, err := f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{
		Name:      " Launch ",
		MemberIDs: []string{"bob", "bob", "alice", "carol", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, chat.KindGroup, g.Kind)
	require.NotNil(t, g.Name)
	assert.Equal(t, "Launch", *g.Name)

	members, err := f.store.Members().ListByChat(ctx, g.ID)
	require.NoError(t, err)
	roles := map[string]permission.ChatRole{}
	for _, m := range members {
		roles[m.UserID] = m.Role
	}
	assert.Equal(t, map[string]permission.ChatRole{
		"alice": permission.ChatRoleAdmin,
		"bob":   permission.ChatRoleMember,
		"carol": permission.ChatRoleMember,
	}, roles)
}

func TestUpdateGroupPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.svc.UpdateGroup(ctx, bob, g.ID, chat.GroupPatch{AddMemberIDs: []string{"carol"}})
	requireType(t, err, platformerrors.ErrorTypeForbidden)

	_, err = f.svc.UpdateGroup(ctx, carol, g.ID, chat.GroupPatch{AddMemberIDs: []string{"dave"}})
	requireType(t, err, platformerrors.ErrorTypeNotAMember)

	_, err = f.svc.UpdateGroup(ctx, alice, g.ID, chat.GroupPatch{AddMemberIDs: []string{"carol", "bob"}})
	require.NoError(t, err)
	m, err := f.store.Members().Find(ctx, g.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, permission.ChatRoleMember, m.Role)

	_, err = f.svc.UpdateGroup(ctx, alice, g.ID, chat.GroupPatch{RemoveMemberIDs: []string{"alice"}})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, err = f.svc.UpdateGroup(ctx, boss, g.ID, chat.GroupPatch{RemoveMemberIDs: []string{"alice", "bob"}})
	requireType(t, err, platformerrors.ErrorTypeValidation)
	_, err = f.store.Members().Find(ctx, g.ID, "bob")
	assert.NoError(t, err, "a rejected patch writes nothing")

	name := "renamed"
	updated, err := f.svc.UpdateGroup(ctx, boss, g.ID, chat.GroupPatch{Name: &name, RemoveMemberIDs: []string{"bob"}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", *updated.Name)
	_, err = f.store.Members().Find(ctx, g.ID, "bob")
	requireType(t, err, platformerrors.ErrorTypeNotFound)
}

func TestUpdateGroupByChatManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "team"})
	require.NoError(t, err)
	_, err = f.store.Members().Add(ctx, &chat.Member{ChatID: g.ID, UserID: "bob", Role: permission.ChatRoleManager, LastRead: clock(), JoinedAt: clock()})
	require.NoError(t, err)

	image := "https://img.example.test/team.png"
	updated, err := f.svc.UpdateGroup(ctx, bob, g.ID, chat.GroupPatch{ImageURL: &image})
	require.NoError(t, err)
	assert.Equal(t, image, *updated.ImageURL)

	err = f.svc.DeleteGroup(ctx, bob, g.ID)
	requireType(t, err, platformerrors.ErrorTypeForbidden)
}

func TestUpdateGroupRejectsOtherKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	direct, _, err := f.svc.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)

	name := "x"
	_, err = f.svc.UpdateGroup(ctx, boss, direct.ID, chat.GroupPatch{Name: &name})
	requireType(t, err, platformerrors.ErrorTypeValidation)

	err = f.svc.DeleteGroup(ctx, boss, direct.ID)
	requireType(t, err, platformerrors.ErrorTypeValidation)

	_, err = f.svc.UpdateGroup(ctx, boss, "chat_missing", chat.GroupPatch{Name: &name})
	requireType(t, err, platformerrors.ErrorTypeNotFound)
}

func seedMessage(t *testing.T, store *inmemory.Store, chatID, id string) {
	t.Helper()
	require.NoError(t, store.Messages().Create(context.Background(), &message.Message{
		ID: id, ChatID: chatID, AuthorID: "alice", Content: "hi", CreatedAt: clock(), UpdatedAt: clock(),
	}))
}

func TestDeleteGroupRemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)
	seedMessage(t, f.store, g.ID, "msg_1")

	err = f.svc.DeleteGroup(ctx, alice, g.ID)
	requireType(t, err, platformerrors.ErrorTypeForbidden)

	require.NoError(t, f.svc.DeleteGroup(ctx, boss, g.ID))

	_, err = f.store.Chats().FindByID(ctx, g.ID)
	requireType(t, err, platformerrors.ErrorTypeNotFound)
	_, err = f.store.Messages().FindByID(ctx, "msg_1")
	requireType(t, err, platformerrors.ErrorTypeNotFound)
	members, err := f.store.Members().ListByChat(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

type failingChats struct {
	*inmemory.ChatRepository
}

func (failingChats) Delete(context.Context, string) error { return errors.New("disk on fire") }

func TestDeleteGroupIsAtomic(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	svc := chat.NewService(failingChats{store.Chats()}, store.Members(), store.Messages(), store, chat.Options{Now: clock}, zerolog.Nop())

	g, err := svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)
	seedMessage(t, store, g.ID, "msg_1")

	require.Error(t, svc.DeleteGroup(ctx, boss, g.ID))

	_, err = store.Messages().FindByID(ctx, "msg_1")
	assert.NoError(t, err)
	members, err := store.Members().ListByChat(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, _, err := f.svc.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)

	m, err := f.svc.ToggleFavorite(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.True(t, m.IsFavorite)

	m, err = f.svc.ToggleFavorite(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.False(t, m.IsFavorite)

	other, err := f.store.Members().Find(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.False(t, other.IsFavorite)

	_, err = f.svc.ToggleFavorite(ctx, carol, c.ID)
	requireType(t, err, platformerrors.ErrorTypeNotAMember)
}

func TestGetInfoAndRequireMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.CreateGroup(ctx, alice, chat.CreateGroupInput{Name: "team", MemberIDs: []string{"bob"}})
	require.NoError(t, err)

	info, err := f.svc.GetInfo(ctx, bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, info.Chat.ID)
	assert.Len(t, info.Members, 2)
	assert.Equal(t, "bob", info.Self.UserID)

	_, err = f.svc.GetInfo(ctx, carol, g.ID)
	requireType(t, err, platformerrors.ErrorTypeNotAMember)

	_, err = f.svc.RequireMember(ctx, "chat_unknown", "alice")
	requireType(t, err, platformerrors.ErrorTypeNotFound)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, _, err := f.svc.GetOrCreateDirect(ctx, alice, "bob")
	require.NoError(t, err)
	newer, _, err := f.svc.GetOrCreateDirect(ctx, alice, "carol")
	require.NoError(t, err)
	require.NoError(t, f.svc.Touch(ctx, older.ID, clock().Add(time.Minute)))

	list, err := f.svc.ListForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].Chat.ID)
	assert.Equal(t, newer.ID, list[1].Chat.ID)
}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, chat.DirectKey("a", "b"), chat.DirectKey("b", "a"))
	assert.NotEqual(t, chat.DirectKey("a|b", "c"), chat.DirectKey("a", "b|c"))
}
