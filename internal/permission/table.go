// Package permission maps users to the departments whose tasks they may see.
package permission

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mtlprog/taskboard/internal/domain"
)

// Config is the on-disk form of a permission table.
type Config struct {
	Users map[string][]domain.Department      `json:"users"`
	Roles map[domain.Role][]domain.Department `json:"roles"`
}

// Table resolves department access. It is immutable once built.
type Table struct {
	users map[string]domain.Access
	roles map[domain.Role]domain.Access
}

// New builds a table from cfg. Unknown departments are rejected.
func New(cfg Config) (*Table, error) {
	t := &Table{
		users: make(map[string]domain.Access, len(cfg.Users)),
		roles: make(map[domain.Role]domain.Access, len(cfg.Roles)),
	}
	for user, departments := range cfg.Users {
		if err := checkDepartments(departments); err != nil {
			return nil, fmt.Errorf("user %q: %w", user, err)
		}
		t.users[user] = domain.OnlyDepartments(departments...)
	}
	for role, departments := range cfg.Roles {
		if err := checkDepartments(departments); err != nil {
			return nil, fmt.Errorf("role %q: %w", role, err)
		}
		t.roles[role] = domain.OnlyDepartments(departments...)
	}
	return t, nil
}

// Default returns the built-in table: the marketing lead sees Marketing, managers see
// the commercial departments.
func Default() *Table {
	t, _ := New(Config{
		Roles: map[domain.Role][]domain.Department{
			domain.RoleMarketingLead: {domain.DepartmentMarketing},
			domain.RoleManager:       {domain.DepartmentMarketing, domain.DepartmentSales},
		},
	})
	return t
}

// LoadFile reads a JSON table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse permission file: %w", err)
	}

	t, err := New(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("permission table loaded", "path", path, "users", len(cfg.Users), "roles", len(cfg.Roles))

	return t, nil
}

// Allowed returns the departments user may view.
//
// Admins see everything. An explicit AllowedDepartments list on the user wins over any
// table entry. Otherwise the user id, then the user name, then the role is looked up.
// Users matching nothing only see tasks without a department.
func (t *Table) Allowed(user domain.User) domain.Access {
	if user.Role == domain.RoleAdmin {
		return domain.AllDepartments()
	}
	if user.AllowedDepartments != nil {
		return domain.OnlyDepartments(user.AllowedDepartments...)
	}
	if access, ok := t.users[user.ID]; ok {
		return access
	}
	if access, ok := t.users[user.Name]; ok {
		return access
	}
	if access, ok := t.roles[user.Role]; ok {
		return access
	}
	return domain.Access{}
}

func checkDepartments(departments []domain.Department) error {
	for _, d := range departments {
		if !d.IsValid() {
			return fmt.Errorf("%w: %q", domain.ErrInvalidDepartment, d)
		}
	}
	return nil
}
