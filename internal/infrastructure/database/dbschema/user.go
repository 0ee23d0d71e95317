package dbschema

import (
	"time"

	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/domain/user"
)

// TableName specifies the table name for User.
func (User) TableName() string {
	return "users"
}

// User is the persisted directory entry.
type User struct {
	ID          string  `gorm:"primaryKey;size:128"`
	DisplayName string  `gorm:"size:255;not null"`
	Email       *string `gorm:"size:320"`
	AvatarURL   *string `gorm:"type:text"`
	SystemRole  string  `gorm:"size:16;not null"`
	UpdatedAt   time.Time
}

// NewSchemaUser converts a domain user into a schema instance.
func NewSchemaUser(u *user.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       optional(u.Email),
		AvatarURL:   optional(u.AvatarURL),
		SystemRole:  string(u.SystemRole),
		UpdatedAt:   u.UpdatedAt,
	}
}

// EtoD converts a schema user back to the domain representation.
func (u *User) EtoD() *user.User {
	if u == nil {
		return nil
	}
	out := &user.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		SystemRole:  permission.SystemRole(u.SystemRole),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
	if u.Email != nil {
		out.Email = *u.Email
	}
	if u.AvatarURL != nil {
		out.AvatarURL = *u.AvatarURL
	}
	return out
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
