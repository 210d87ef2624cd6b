package identity

// AccountRole is the account's role
type AccountRole string

const (
	// RoleStudent can view their own records (courses, attendance, marks)
	RoleStudent AccountRole = "student"
	// RoleFaculty can manage course material, attendance, and marks
	RoleFaculty AccountRole = "faculty"
	// RoleAdmin administers accounts, registrations, and notices
	RoleAdmin AccountRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r AccountRole) IsAtLeast(minRole AccountRole) bool {
	roleHierarchy := map[AccountRole]int{
		RoleStudent: 0,
		RoleFaculty: 1,
		RoleAdmin:   2,
	}

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
func GetAllRoles() []AccountRole {
	return []AccountRole{
		RoleStudent,
		RoleFaculty,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into an AccountRole type
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, role.IsValid()
}
