package permission_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/permission"
)

func TestAllowed_AdminSeesEverything(t *testing.T) {
	table := permission.Default()

	access := table.Allowed(domain.User{ID: "u1", Role: domain.RoleAdmin, AllowedDepartments: []domain.Department{}})

	assert.True(t, access.All())
	for _, d := range domain.Departments {
		assert.True(t, access.Allows(d), d)
	}
}

func TestAllowed_ExplicitListWinsOverTable(t *testing.T) {
	table, err := permission.New(permission.Config{
		Users: map[string][]domain.Department{"lan": {domain.DepartmentHR}},
	})
	require.NoError(t, err)

	access := table.Allowed(domain.User{
		ID:                 "lan",
		Role:               domain.RoleMember,
		AllowedDepartments: []domain.Department{domain.DepartmentSales},
	})

	assert.True(t, access.Allows(domain.DepartmentSales))
	assert.False(t, access.Allows(domain.DepartmentHR))
}

func TestAllowed_LookupOrder(t *testing.T) {
	table, err := permission.New(permission.Config{
		Users: map[string][]domain.Department{
			"id-1":  {domain.DepartmentAccounting},
			"Hương": {domain.DepartmentDesign},
		},
		Roles: map[domain.Role][]domain.Department{
			domain.RoleMember: {domain.DepartmentEngineering},
		},
	})
	require.NoError(t, err)

	byID := table.Allowed(domain.User{ID: "id-1", Name: "Hương", Role: domain.RoleMember})
	assert.Equal(t, []domain.Department{domain.DepartmentAccounting}, byID.Departments())

	byName := table.Allowed(domain.User{ID: "id-2", Name: "Hương", Role: domain.RoleMember})
	assert.Equal(t, []domain.Department{domain.DepartmentDesign}, byName.Departments())

	byRole := table.Allowed(domain.User{ID: "id-3", Name: "Minh", Role: domain.RoleMember})
	assert.Equal(t, []domain.Department{domain.DepartmentEngineering}, byRole.Departments())
}

func TestAllowed_UnknownUserIsRestricted(t *testing.T) {
	access := permission.Default().Allowed(domain.User{ID: "ghost", Role: domain.RoleMember})

	assert.False(t, access.All())
	assert.Empty(t, access.Departments())

	open := domain.Task{Title: "chung"}
	scoped := domain.Task{Title: "riêng", Department: domain.DepartmentMarketing}
	assert.True(t, open.IsVisibleTo(access))
	assert.False(t, scoped.IsVisibleTo(access))
}

func TestNew_RejectsUnknownDepartment(t *testing.T) {
	_, err := permission.New(permission.Config{
		Roles: map[domain.Role][]domain.Department{domain.RoleManager: {"Pháp Chế"}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidDepartment)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":{"an":["Marketing","Kinh Doanh"]}}`), 0o600))

	table, err := permission.LoadFile(path)
	require.NoError(t, err)

	access := table.Allowed(domain.User{ID: "an", Role: domain.RoleMember})
	assert.Equal(t, []domain.Department{domain.DepartmentMarketing, domain.DepartmentSales}, access.Departments())
}
