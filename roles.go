package auth

// UserRole is the user's role name
type UserRole = string

const (
	// RoleUser is the default role assigned at registration (i.e. view)
	RoleUser UserRole = "USER"
	// RoleEditor can manage published content (i.e. view, edit, create)
	RoleEditor UserRole = "EDITOR"
	// RoleAdmin administers users, roles, and privileges
	RoleAdmin UserRole = "ADMIN"
)

// DefaultRoleName is the role every registration requires to exist. A
// deployment missing it cannot accept registrations.
const DefaultRoleName = RoleUser

var roleHierarchy = map[UserRole]int{
	RoleUser:   0,
	RoleEditor: 1,
	RoleAdmin:  2,
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := roleHierarchy[r]
	return ok
}

// RoleRank returns the hierarchy level for a role, -1 for unknown roles.
func RoleRank(r UserRole) int {
	rank, ok := roleHierarchy[r]
	if !ok {
		return -1
	}
	return rank
}

// RoleIsAtLeast checks if a role meets the minimum required level
func RoleIsAtLeast(r, minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleEditor,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
