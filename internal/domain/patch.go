package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// OptionalDate is a patch field that distinguishes "absent" from "set to null".
type OptionalDate struct {
	Set  bool
	Time *time.Time
}

// SetDate returns a patch value that sets the date.
func SetDate(t time.Time) OptionalDate {
	return OptionalDate{Set: true, Time: &t}
}

// ClearDate returns a patch value that removes the date.
func ClearDate() OptionalDate {
	return OptionalDate{Set: true}
}

// IsZero makes omitzero skip absent values.
func (o OptionalDate) IsZero() bool {
	return !o.Set
}

// MarshalJSON writes the date or null.
func (o OptionalDate) MarshalJSON() ([]byte, error) {
	if o.Time == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Time)
}

// UnmarshalJSON marks the field present; null clears.
func (o *OptionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Time = &t
	return nil
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
// An empty Department clears the department.
type TaskPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	Department  *Department   `json:"department,omitempty"`
	StartDate   OptionalDate  `json:"startDate,omitzero"`
	DueDate     OptionalDate  `json:"dueDate,omitzero"`
	IsRead      *bool         `json:"isRead,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.Department == nil && !p.StartDate.Set && !p.DueDate.Set && p.IsRead == nil
}

// Validate checks the supplied fields.
func (p TaskPatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return ErrEmptyTitle
	}
	if p.Status != nil && !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if p.Department != nil && *p.Department != "" && !p.Department.IsValid() {
		return ErrInvalidDepartment
	}
	return nil
}

// Apply writes the supplied fields into t and bumps UpdatedAt.
func (p TaskPatch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Department != nil {
		t.Department = *p.Department
	}
	if p.StartDate.Set {
		t.StartDate = p.StartDate.Time
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Time
	}
	if p.IsRead != nil {
		t.IsRead = *p.IsRead
	}
	t.UpdatedAt = now
}

// Merge returns p overlaid with the fields set in next.
func (p TaskPatch) Merge(next TaskPatch) TaskPatch {
	if next.Title != nil {
		p.Title = next.Title
	}
	if next.Description != nil {
		p.Description = next.Description
	}
	if next.Status != nil {
		p.Status = next.Status
	}
	if next.Priority != nil {
		p.Priority = next.Priority
	}
	if next.Department != nil {
		p.Department = next.Department
	}
	if next.StartDate.Set {
		p.StartDate = next.StartDate
	}
	if next.DueDate.Set {
		p.DueDate = next.DueDate
	}
	if next.IsRead != nil {
		p.IsRead = next.IsRead
	}
	return p
}

// Snapshot returns a patch that would restore the fields p touches to their values in t.
func (p TaskPatch) Snapshot(t Task) TaskPatch {
	var prev TaskPatch
	if p.Title != nil {
		prev.Title = &t.Title
	}
	if p.Description != nil {
		prev.Description = &t.Description
	}
	if p.Status != nil {
		prev.Status = &t.Status
	}
	if p.Priority != nil {
		prev.Priority = &t.Priority
	}
	if p.Department != nil {
		prev.Department = &t.Department
	}
	if p.StartDate.Set {
		prev.StartDate = OptionalDate{Set: true, Time: t.StartDate}
	}
	if p.DueDate.Set {
		prev.DueDate = OptionalDate{Set: true, Time: t.DueDate}
	}
	if p.IsRead != nil {
		prev.IsRead = &t.IsRead
	}
	return prev
}

// Fields names the fields the patch touches, in a fixed order.
func (p TaskPatch) Fields() []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.Department != nil {
		fields = append(fields, "department")
	}
	if p.StartDate.Set {
		fields = append(fields, "startDate")
	}
	if p.DueDate.Set {
		fields = append(fields, "dueDate")
	}
	if p.IsRead != nil {
		fields = append(fields, "isRead")
	}
	return fields
}
