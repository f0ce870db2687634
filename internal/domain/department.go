package domain

import "slices"

// Department is the organizational unit a task belongs to.
type Department string

const (
	DepartmentMarketing   Department = "Marketing"
	DepartmentSales       Department = "Kinh Doanh"
	DepartmentEngineering Department = "Kỹ Thuật"
	DepartmentAccounting  Department = "Kế Toán"
	DepartmentHR          Department = "Nhân Sự"
	DepartmentDesign      Department = "Thiết Kế"
)

// Departments lists every known department.
var Departments = []Department{
	DepartmentMarketing,
	DepartmentSales,
	DepartmentEngineering,
	DepartmentAccounting,
	DepartmentHR,
	DepartmentDesign,
}

// IsValid checks if the department is one of the known values.
func (d Department) IsValid() bool {
	return slices.Contains(Departments, d)
}

// Access is the set of departments a user may view.
// The zero value grants nothing beyond department-less tasks.
type Access struct {
	all         bool
	departments map[Department]struct{}
}

// AllDepartments grants visibility of every department.
func AllDepartments() Access {
	return Access{all: true}
}

// OnlyDepartments grants visibility of the listed departments.
func OnlyDepartments(departments ...Department) Access {
	set := make(map[Department]struct{}, len(departments))
	for _, d := range departments {
		set[d] = struct{}{}
	}
	return Access{departments: set}
}

// All reports whether the access covers every department.
func (a Access) All() bool {
	return a.all
}

// Allows reports whether tasks of the department are visible.
func (a Access) Allows(d Department) bool {
	if a.all {
		return true
	}
	_, ok := a.departments[d]
	return ok
}

// Departments returns the granted departments in canonical order.
// It returns every known department when the access is unrestricted.
func (a Access) Departments() []Department {
	out := make([]Department, 0, len(Departments))
	for _, d := range Departments {
		if a.Allows(d) {
			out = append(out, d)
		}
	}
	return out
}
