package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
)

// DecodeError describes why a spreadsheet row could not become a task.
type DecodeError struct {
	Row   int
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("row %d: field %q: %v", e.Row, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	errMissing   = errors.New("missing")
	errWrongType = errors.New("wrong type")
)

// rowTimeLayouts are the timestamp shapes the sheet is known to produce.
var rowTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeRows decodes every row, skipping and logging the ones that fail.
func DecodeRows(rows []map[string]any) []domain.Task {
	tasks := make([]domain.Task, 0, len(rows))
	for i, row := range rows {
		task, err := DecodeRow(i, row)
		if err != nil {
			slog.Warn("skipping task row", "row", i, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// DecodeRow turns one loosely typed sheet row into a task. Missing optional columns take
// their defaults; present columns with bad values fail the row.
func DecodeRow(index int, row map[string]any) (domain.Task, error) {
	fail := func(field string, err error) (domain.Task, error) {
		return domain.Task{}, &DecodeError{Row: index, Field: field, Err: err}
	}

	var task domain.Task
	var err error

	if task.ID, err = requiredString(row, "id"); err != nil {
		return fail("id", err)
	}
	if task.Title, err = requiredString(row, "title"); err != nil {
		return fail("title", err)
	}
	if task.Description, err = optionalString(row, "description"); err != nil {
		return fail("description", err)
	}

	status, err := optionalString(row, "status")
	if err != nil {
		return fail("status", err)
	}
	task.Status = domain.TaskStatus(status)
	if task.Status == "" {
		task.Status = domain.TaskStatusNotStarted
	} else if !task.Status.IsValid() {
		return fail("status", domain.ErrInvalidStatus)
	}

	priority, err := optionalString(row, "priority")
	if err != nil {
		return fail("priority", err)
	}
	task.Priority = domain.TaskPriority(priority)
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	} else if !task.Priority.IsValid() {
		return fail("priority", domain.ErrInvalidPriority)
	}

	department, err := optionalString(row, "department")
	if err != nil {
		return fail("department", err)
	}
	task.Department = domain.Department(department)
	if task.Department != "" && !task.Department.IsValid() {
		return fail("department", domain.ErrInvalidDepartment)
	}

	task.Subtasks = []domain.Subtask{}
	if err := nestedJSON(row, "subtasks", &task.Subtasks); err != nil {
		return fail("subtasks", err)
	}
	task.Comments = []domain.Comment{}
	if err := nestedJSON(row, "comments", &task.Comments); err != nil {
		return fail("comments", err)
	}
	for i := range task.Comments {
		c := &task.Comments[i]
		if c.LikedBy == nil {
			c.LikedBy = []string{}
		}
		c.Likes = len(c.LikedBy)
	}
	task.LikedBy = []string{}
	if err := nestedJSON(row, "likedBy", &task.LikedBy); err != nil {
		return fail("likedBy", err)
	}
	task.Likes = len(task.LikedBy)

	if task.IsRead, err = optionalBool(row, "isRead"); err != nil {
		return fail("isRead", err)
	}

	if task.CreatedAt, err = requiredTime(row, "createdAt"); err != nil {
		return fail("createdAt", err)
	}
	if task.UpdatedAt, err = requiredTime(row, "updatedAt"); err != nil {
		if !errors.Is(err, errMissing) {
			return fail("updatedAt", err)
		}
		task.UpdatedAt = task.CreatedAt
	}
	if task.StartDate, err = optionalTime(row, "startDate"); err != nil {
		return fail("startDate", err)
	}
	if task.DueDate, err = optionalTime(row, "dueDate"); err != nil {
		return fail("dueDate", err)
	}

	return task, nil
}

func optionalString(row map[string]any, key string) (string, error) {
	switch v := row[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %T", errWrongType, v)
	}
}

func requiredString(row map[string]any, key string) (string, error) {
	s, err := optionalString(row, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errMissing
	}
	return s, nil
}

func optionalBool(row map[string]any, key string) (bool, error) {
	switch v := row[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return false, fmt.Errorf("%w: %q", errWrongType, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %T", errWrongType, v)
	}
}

func requiredTime(row map[string]any, key string) (time.Time, error) {
	t, err := optionalTime(row, key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, errMissing
	}
	return *t, nil
}

func optionalTime(row map[string]any, key string) (*time.Time, error) {
	s, err := optionalString(row, key)
	if err != nil || s == "" {
		return nil, err
	}
	for _, layout := range rowTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unparsable time %q", errWrongType, s)
}

// nestedJSON decodes a column holding either a JSON value or a JSON-encoded string.
func nestedJSON(row map[string]any, key string, out any) error {
	var raw []byte
	switch v := row[key].(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, out)
}
