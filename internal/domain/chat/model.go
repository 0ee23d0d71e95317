package chat

import (
	"strconv"
	"time"

	"github.com/worknest/messaging-api/internal/domain/permission"
)

// Kind distinguishes the three chat flavours.
type Kind string

const (
	KindProject Kind = "PROJECT"
	KindDirect  Kind = "DIRECT"
	KindGroup   Kind = "GROUP"
)

// Chat is a conversation container.
type Chat struct {
	ID        string
	Kind      Kind
	Name      *string
	ImageURL  *string
	ProjectID *string
	// DirectKey identifies the unordered member pair of a DIRECT chat.
	DirectKey *string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member binds a user to a chat.
type Member struct {
	ChatID     string
	UserID     string
	Role       permission.ChatRole
	IsFavorite bool
	LastRead   time.Time
	JoinedAt   time.Time
}

// Overview is one row of a user's chat list.
type Overview struct {
	Chat       *Chat
	Membership *Member
}

// Info is the detail view of a chat as seen by one of its members.
type Info struct {
	Chat    *Chat
	Members []*Member
	Self    *Member
}

// CreateGroupInput holds the parameters for a new group chat.
type CreateGroupInput struct {
	Name      string
	ImageURL  *string
	MemberIDs []string
}

// GroupPatch describes a partial group update. Nil fields are left untouched.
type GroupPatch struct {
	Name            *string
	ImageURL        *string
	AddMemberIDs    []string
	RemoveMemberIDs []string
}

// IsEmpty reports whether the patch changes nothing.
func (p GroupPatch) IsEmpty() bool {
	return p.Name == nil && p.ImageURL == nil && len(p.AddMemberIDs) == 0 && len(p.RemoveMemberIDs) == 0
}

// DirectKey returns the order-independent identity of a user pair. The length
// prefix keeps keys unambiguous whatever characters the IDs contain.
func DirectKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + a + "|" + b
}
