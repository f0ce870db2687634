package domain

// Role is the position of a user in the organization.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleManager       Role = "manager"
	RoleMarketingLead Role = "marketing_lead"
	RoleMember        Role = "member"
)

// User is the person acting on the board.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
	// AllowedDepartments, when non-nil, overrides any table lookup.
	AllowedDepartments []Department `json:"allowedDepartments,omitempty"`
}
