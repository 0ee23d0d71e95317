// Package inmemory is a thread-safe store implementing every repository of the
// service. It backs local development when no database is configured, and tests.
package inmemory

import (
	"context"
	"sync"

	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type memberKey struct {
	chatID string
	userID string
}

type state struct {
	chats      map[string]*chat.Chat
	directIdx  map[string]string
	projectIdx map[string]string
	members    map[memberKey]*chat.Member
	messages   map[string]*message.Message
	users      map[string]*user.User
}

func newState() state {
	return state{
		chats:      make(map[string]*chat.Chat),
		directIdx:  make(map[string]string),
		projectIdx: make(map[string]string),
		members:    make(map[memberKey]*chat.Member),
		messages:   make(map[string]*message.Message),
		users:      make(map[string]*user.User),
	}
}

// Store holds all data behind one lock. Transactions are serialized with each
// other and keep an undo log of the rows they touch, so a rollback restores
// those rows only and leaves concurrent writes elsewhere in place.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

type undoKey struct{}

type undoLog struct {
	steps []func()
}

// WithinTransaction runs fn and undoes its writes when it fails. A nested
// call joins the enclosing transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, log)); err != nil {
		s.mu.Lock()
		for i := len(log.steps) - 1; i >= 0; i-- {
			log.steps[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// remember records how to restore m[key] if the transaction in ctx rolls
// back. Callers hold s.mu for writing.
func remember[K comparable, V any](ctx context.Context, m map[K]V, key K, clone func(V) V) {
	log, ok := ctx.Value(undoKey{}).(*undoLog)
	if !ok {
		return
	}
	prev, existed := m[key]
	if existed {
		prev = clone(prev)
	}
	log.steps = append(log.steps, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Chats returns the chat repository view.
func (s *Store) Chats() *ChatRepository { return &ChatRepository{store: s} }

// Members returns the membership repository view.
func (s *Store) Members() *MemberRepository { return &MemberRepository{store: s} }

// Messages returns the message repository view.
func (s *Store) Messages() *MessageRepository { return &MessageRepository{store: s} }

// ReadState returns the read cursor repository view.
func (s *Store) ReadState() *ReadStateRepository { return &ReadStateRepository{store: s} }

// Users returns the user directory view.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

func cloneChat(c *chat.Chat) *chat.Chat {
	out := *c
	out.Name = cloneString(c.Name)
	out.ImageURL = cloneString(c.ImageURL)
	out.ProjectID = cloneString(c.ProjectID)
	out.DirectKey = cloneString(c.DirectKey)
	return &out
}

func cloneMessage(m *message.Message) *message.Message {
	out := *m
	out.Attachments = append([]attachment.Descriptor{}, m.Attachments...)
	out.Mentions = append([]string{}, m.Mentions...)
	out.ReplyToID = cloneString(m.ReplyToID)
	if m.DeletedAt != nil {
		at := *m.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}

func cloneMember(m *chat.Member) *chat.Member {
	out := *m
	return &out
}

func cloneUser(u *user.User) *user.User {
	out := *u
	return &out
}

func same(v string) string { return v }

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func notFound(ctx context.Context, what, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		what+" not found", nil, code)
}
