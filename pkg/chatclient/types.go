package chatclient

import "time"

type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type ReplyPreview struct {
	ID        string       `json:"id"`
	AuthorID  string       `json:"authorId"`
	Author    *UserSummary `json:"author,omitempty"`
	Content   string       `json:"content"`
	IsDeleted bool         `json:"isDeleted"`
}

type Message struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chatId"`
	AuthorID    string        `json:"authorId"`
	Author      *UserSummary  `json:"author,omitempty"`
	Content     string        `json:"content"`
	Attachments []Attachment  `json:"attachments"`
	Mentions    []string      `json:"mentions"`
	ReplyToID   *string       `json:"replyToId,omitempty"`
	ReplyTo     *ReplyPreview `json:"replyTo,omitempty"`
	IsEdited    bool          `json:"isEdited"`
	IsDeleted   bool          `json:"isDeleted"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	DeletedAt   *time.Time    `json:"deletedAt,omitempty"`
}

type Chat struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      *string   `json:"name,omitempty"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	ProjectID *string   `json:"projectId,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResolvedChat is the result of a get-or-create call.
type ResolvedChat struct {
	Chat
	Created bool `json:"created"`
}

type Member struct {
	UserID     string       `json:"userId"`
	User       *UserSummary `json:"user,omitempty"`
	Role       string       `json:"role"`
	IsFavorite bool         `json:"isFavorite"`
	LastRead   time.Time    `json:"lastRead"`
	JoinedAt   time.Time    `json:"joinedAt"`
}

type ChatInfo struct {
	Chat
	Members []Member `json:"members"`
	Self    Member   `json:"self"`
}

type ChatListItem struct {
	Chat
	Role        string    `json:"role"`
	IsFavorite  bool      `json:"isFavorite"`
	LastRead    time.Time `json:"lastRead"`
	UnreadCount int64     `json:"unreadCount"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
}

type MessagePage struct {
	Data       []Message `json:"data"`
	HasMore    bool      `json:"hasMore"`
	NextBefore *string   `json:"nextBefore,omitempty"`
}

type Typist struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	LastSignal  time.Time `json:"lastSignal"`
}

// Snapshot is one poll result. Feed Next() back into the following Sync.
type Snapshot struct {
	ChatID     string    `json:"chatId"`
	Messages   []Message `json:"messages"`
	Typing     []Typist  `json:"typing"`
	Unread     int64     `json:"unread"`
	Cursor     time.Time `json:"cursor"`
	CursorID   string    `json:"cursorId,omitempty"`
	ServerTime time.Time `json:"serverTime"`
	HasMore    bool      `json:"hasMore"`
}

// Next is the position the following poll should start after.
func (s *Snapshot) Next() Position {
	return Position{Time: s.Cursor, ID: s.CursorID}
}

// Position is an (updatedAt, id) point in a chat's change feed. The zero
// value is the beginning of the chat.
type Position struct {
	Time time.Time
	ID   string
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if !p.Time.Equal(o.Time) {
		return p.Time.Before(o.Time)
	}
	return p.ID < o.ID
}

func (p Position) IsZero() bool { return p.Time.IsZero() && p.ID == "" }

type SendInput struct {
	Content     string       `json:"content,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyToID   *string      `json:"replyToId,omitempty"`
}

type GroupInput struct {
	Name      string   `json:"name"`
	ImageURL  *string  `json:"imageUrl,omitempty"`
	MemberIDs []string `json:"memberIds,omitempty"`
}
