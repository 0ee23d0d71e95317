package chatreq

import "github.com/worknest/messaging-api/internal/domain/chat"

type DirectChatRequest struct {
	UserID string `json:"userId" binding:"required,max=128"`
}

type ProjectChatRequest struct {
	ProjectID string `json:"projectId" binding:"required,max=128"`
}

type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required,max=120"`
	ImageURL  *string  `json:"imageUrl" binding:"omitempty,max=2048"`
	MemberIDs []string `json:"memberIds" binding:"omitempty,dive,required,max=128"`
}

func (r CreateGroupRequest) ToInput() chat.CreateGroupInput {
	return chat.CreateGroupInput{Name: r.Name, ImageURL: r.ImageURL, MemberIDs: r.MemberIDs}
}

// UpdateGroupRequest is a partial update; omitted fields are left unchanged.
type UpdateGroupRequest struct {
	Name            *string  `json:"name" binding:"omitempty,max=120"`
	ImageURL        *string  `json:"imageUrl" binding:"omitempty,max=2048"`
	AddMemberIDs    []string `json:"addMemberIds" binding:"omitempty,dive,required,max=128"`
	RemoveMemberIDs []string `json:"removeMemberIds" binding:"omitempty,dive,required,max=128"`
}

func (r UpdateGroupRequest) ToPatch() chat.GroupPatch {
	return chat.GroupPatch{
		Name:            r.Name,
		ImageURL:        r.ImageURL,
		AddMemberIDs:    r.AddMemberIDs,
		RemoveMemberIDs: r.RemoveMemberIDs,
	}
}
