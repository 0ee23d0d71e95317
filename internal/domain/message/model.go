package message

import (
	"regexp"
	"time"

	"github.com/worknest/messaging-api/internal/domain/attachment"
)

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message was deleted"

// Message is a single chat message. Deleted messages keep their row, identity
// and position; only content, attachments and mentions are cleared.
type Message struct {
	ID          string
	ChatID      string
	AuthorID    string
	Content     string
	Attachments []attachment.Descriptor
	Mentions    []string
	ReplyToID   *string
	IsEdited    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// IsDeleted reports whether the message is a tombstone.
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// SendInput carries a new message.
type SendInput struct {
	Content     string
	Attachments []attachment.Descriptor `validate:"dive"`
	ReplyToID   *string
}

// Page selects a window of a chat's history.
type Page struct {
	Limit    int
	BeforeID *string
}

// Cursor is a (createdAt, id) position used for keyset paging.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// SyncPosition is an (updatedAt, id) position in a chat's change feed. An
// empty ID sorts before every message updated at the same instant.
type SyncPosition struct {
	UpdatedAt time.Time
	ID        string
}

// Before reports whether p sorts strictly before o.
func (p SyncPosition) Before(o SyncPosition) bool {
	if !p.UpdatedAt.Equal(o.UpdatedAt) {
		return p.UpdatedAt.Before(o.UpdatedAt)
	}
	return p.ID < o.ID
}

// Position is where m sits in its chat's change feed.
func (m *Message) Position() SyncPosition {
	return SyncPosition{UpdatedAt: m.UpdatedAt, ID: m.ID}
}

// EditParams is a conditional content update. It only applies when the
// message exists, belongs to AuthorID and is not deleted.
type EditParams struct {
	ID       string
	AuthorID string
	Content  string
	Mentions []string
	At       time.Time
}

// ChatAttachment is one attachment together with the message that carried it.
type ChatAttachment struct {
	MessageID  string
	AuthorID   string
	CreatedAt  time.Time
	Descriptor attachment.Descriptor
}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns every @word token in content, in order and with
// duplicates kept. The tokens are raw text and are not matched to users.
func ExtractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	mentions := make([]string, 0, len(matches))
	for _, match := range matches {
		mentions = append(mentions, match[1])
	}
	return mentions
}
