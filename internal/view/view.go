// Package view derives the ordered, permission-filtered board from a task collection.
package view

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/mtlprog/taskboard/internal/domain"
)

// Filters are the user's active board selections. Zero values disable a filter.
type Filters struct {
	Search     string
	Department domain.Department
	Status     domain.TaskStatus
	Priority   domain.TaskPriority
}

// Counts holds badge counts. Department and Status count every task the user may see;
// Priority counts only the tasks currently shown.
type Counts struct {
	Department map[domain.Department]int
	Status     map[domain.TaskStatus]int
	Priority   map[domain.TaskPriority]int
}

// View is the derived board.
type View struct {
	// Visible is the sorted, filtered list.
	Visible []domain.Task
	// New and Older split Visible for display sectioning, keeping its order.
	New    []domain.Task
	Older  []domain.Task
	Counts Counts
}

// Derive sorts tasks, applies visibility and filters, counts and buckets the result.
// tasks is not modified.
func Derive(tasks []domain.Task, access domain.Access, filters Filters, now time.Time) View {
	sorted := Sort(tasks)

	permitted := make([]domain.Task, 0, len(sorted))
	for _, t := range sorted {
		if t.IsVisibleTo(access) {
			permitted = append(permitted, t)
		}
	}

	m := newMatcher(filters)
	visible := make([]domain.Task, 0, len(permitted))
	for _, t := range permitted {
		if m.match(&t) {
			visible = append(visible, t)
		}
	}

	v := View{
		Visible: visible,
		Counts: Counts{
			Department: make(map[domain.Department]int),
			Status:     make(map[domain.TaskStatus]int),
			Priority:   make(map[domain.TaskPriority]int),
		},
	}

	for _, t := range permitted {
		if t.Department != "" {
			v.Counts.Department[t.Department]++
		}
		v.Counts.Status[t.Status]++
	}
	for _, t := range visible {
		v.Counts.Priority[t.Priority]++
	}

	v.New, v.Older = Bucket(visible, now)

	return v
}

// Sort returns a copy of tasks ordered by priority, then status, then newest first.
// Ties keep their input order.
func Sort(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if pa, pb := a.Priority.Rank(), b.Priority.Rank(); pa != pb {
			return pa < pb
		}
		if sa, sb := a.Status.Rank(), b.Status.Rank(); sa != sb {
			return sa < sb
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

// Bucket splits tasks into those created today or yesterday (calendar days in now's
// location) and the rest.
func Bucket(tasks []domain.Task, now time.Time) (recent, older []domain.Task) {
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d-1, 0, 0, 0, 0, now.Location())

	recent = make([]domain.Task, 0)
	older = make([]domain.Task, 0)
	for _, t := range tasks {
		if !t.CreatedAt.In(now.Location()).Before(cutoff) {
			recent = append(recent, t)
		} else {
			older = append(older, t)
		}
	}
	return recent, older
}

type matcher struct {
	filters Filters
	fold    cases.Caser
	query   string
}

func newMatcher(filters Filters) *matcher {
	m := &matcher{filters: filters, fold: cases.Fold()}
	m.query = m.fold.String(strings.TrimSpace(filters.Search))
	return m
}

func (m *matcher) match(t *domain.Task) bool {
	if m.filters.Department != "" && t.Department != m.filters.Department {
		return false
	}
	if m.filters.Status != "" && t.Status != m.filters.Status {
		return false
	}
	if m.filters.Priority != "" && t.Priority != m.filters.Priority {
		return false
	}
	if m.query == "" {
		return true
	}
	for _, field := range []string{t.Title, t.Description, string(t.Department), string(t.Status)} {
		if strings.Contains(m.fold.String(field), m.query) {
			return true
		}
	}
	return false
}
