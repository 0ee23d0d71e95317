package chatres

import (
	"time"

	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses/messageres"
)

type ChatResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      *string   `json:"name,omitempty"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	ProjectID *string   `json:"projectId,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewChatResponse(c *chat.Chat) ChatResponse {
	return ChatResponse{
		ID:        c.ID,
		Kind:      string(c.Kind),
		Name:      c.Name,
		ImageURL:  c.ImageURL,
		ProjectID: c.ProjectID,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ResolvedChatResponse is returned by get-or-create endpoints.
type ResolvedChatResponse struct {
	ChatResponse
	Created bool `json:"created"`
}

type MemberResponse struct {
	UserID     string                  `json:"userId"`
	User       *messageres.UserSummary `json:"user,omitempty"`
	Role       string                  `json:"role"`
	IsFavorite bool                    `json:"isFavorite"`
	LastRead   time.Time               `json:"lastRead"`
	JoinedAt   time.Time               `json:"joinedAt"`
}

func NewMemberResponse(m *chat.Member, users map[string]*user.User) MemberResponse {
	return MemberResponse{
		UserID:     m.UserID,
		User:       messageres.NewUserSummary(users[m.UserID]),
		Role:       string(m.Role),
		IsFavorite: m.IsFavorite,
		LastRead:   m.LastRead,
		JoinedAt:   m.JoinedAt,
	}
}

type ChatInfoResponse struct {
	ChatResponse
	Members []MemberResponse `json:"members"`
	Self    MemberResponse   `json:"self"`
}

func NewChatInfoResponse(info *chat.Info, users map[string]*user.User) ChatInfoResponse {
	members := make([]MemberResponse, 0, len(info.Members))
	for _, m := range info.Members {
		members = append(members, NewMemberResponse(m, users))
	}
	return ChatInfoResponse{
		ChatResponse: NewChatResponse(info.Chat),
		Members:      members,
		Self:         NewMemberResponse(info.Self, users),
	}
}

// ChatListItem is one row of the caller's chat list.
type ChatListItem struct {
	ChatResponse
	Role        string                      `json:"role"`
	IsFavorite  bool                        `json:"isFavorite"`
	LastRead    time.Time                   `json:"lastRead"`
	UnreadCount int64                       `json:"unreadCount"`
	LastMessage *messageres.MessageResponse `json:"lastMessage,omitempty"`
}

type ChatListResponse struct {
	Data []ChatListItem `json:"data"`
}

type FavoriteResponse struct {
	ChatID     string `json:"chatId"`
	IsFavorite bool   `json:"isFavorite"`
}

type UnreadSummaryResponse struct {
	HasUnread       bool `json:"hasUnread"`
	ChatsWithUnread int  `json:"chatsWithUnread"`
}

type DeletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
