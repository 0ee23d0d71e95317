// Package permission evaluates group administration rights from a caller's
// organization-wide role and their role inside a chat.
package permission

import "strings"

// SystemRole is the caller's authority level across the whole organization.
type SystemRole string

const (
	SystemRoleSuperAdmin SystemRole = "SUPERADMIN"
	SystemRoleAdmin      SystemRole = "ADMIN"
	SystemRoleManager    SystemRole = "MANAGER"
	SystemRoleEmployee   SystemRole = "EMPLOYEE"
)

// ChatRole is a member's role inside a single chat. It only matters for GROUP chats.
type ChatRole string

const (
	ChatRoleAdmin   ChatRole = "ADMIN"
	ChatRoleManager ChatRole = "MANAGER"
	ChatRoleMember  ChatRole = "MEMBER"
	// ChatRoleNone is used for callers without a membership row.
	ChatRoleNone ChatRole = ""
)

// CanEditGroup reports whether the caller may rename a group, change its image
// or change its members.
func CanEditGroup(systemRole SystemRole, chatRole ChatRole) bool {
	if isElevated(systemRole) {
		return true
	}
	return chatRole == ChatRoleAdmin || chatRole == ChatRoleManager
}

// CanDeleteGroup reports whether the caller may delete a group. Chat roles never grant this.
func CanDeleteGroup(systemRole SystemRole) bool {
	return isElevated(systemRole)
}

func isElevated(role SystemRole) bool {
	return role == SystemRoleSuperAdmin || role == SystemRoleAdmin
}

// SystemRoleFromClaims picks the highest system role named in the identity provider's roles.
// Unknown names are ignored and the default is EMPLOYEE.
func SystemRoleFromClaims(roles []string) SystemRole {
	best := SystemRoleEmployee
	for _, raw := range roles {
		role := ParseSystemRole(raw)
		if rank(role) > rank(best) {
			best = role
		}
	}
	return best
}

// ParseSystemRole maps a role name to a SystemRole, case-insensitively.
func ParseSystemRole(raw string) SystemRole {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUPERADMIN", "SUPER_ADMIN":
		return SystemRoleSuperAdmin
	case "ADMIN":
		return SystemRoleAdmin
	case "MANAGER":
		return SystemRoleManager
	default:
		return SystemRoleEmployee
	}
}

func rank(role SystemRole) int {
	switch role {
	case SystemRoleSuperAdmin:
		return 3
	case SystemRoleAdmin:
		return 2
	case SystemRoleManager:
		return 1
	default:
		return 0
	}
}

// IsValidChatRole reports whether role is one of the assignable chat roles.
func IsValidChatRole(role ChatRole) bool {
	switch role {
	case ChatRoleAdmin, ChatRoleManager, ChatRoleMember:
		return true
	default:
		return false
	}
}
