package models

// UserRole is an employee's role in the directory. Users share the employee id
// space: an employee authenticates with their employee id as user id.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleHRManager  UserRole = "HR_MANAGER"
	RoleHR         UserRole = "HR"
	RoleManager    UserRole = "MANAGER"
	RoleEmployee   UserRole = "EMPLOYEE"
)

// ParseRoles converts raw role names, silently skipping blanks.
func ParseRoles(raw []string) []UserRole {
	roles := make([]UserRole, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		roles = append(roles, UserRole(r))
	}
	return roles
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
