package optimistic

import (
	"context"
	"errors"
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
)

// ErrEditNotFound is returned for unknown or already dismissed edit ids.
var ErrEditNotFound = errors.New("edit not found")

// EditState tracks a task edit from local apply to remote acknowledgement.
type EditState int

const (
	Pending EditState = iota
	Confirmed
	Failed
)

func (s EditState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Edit is one optimistic change to a task.
type Edit struct {
	ID     uint64
	TaskID string
	Fields []string
	Patch  domain.TaskPatch
	// Prev holds the values the touched fields had before the edit.
	Prev      domain.TaskPatch
	State     EditState
	Err       error
	At        time.Time
	Dismissed bool
}

func (c *Coordinator) recordLocked(taskID string, patch, prev domain.TaskPatch) *Edit {
	c.nextEdit++
	e := &Edit{
		ID:     c.nextEdit,
		TaskID: taskID,
		Fields: patch.Fields(),
		Patch:  patch,
		Prev:   prev,
		State:  Pending,
		At:     c.opts.Now(),
	}
	for _, field := range e.Fields {
		c.latest[fieldKey{taskID: taskID, field: field}] = e.ID
	}
	c.edits = append(c.edits, e)
	c.pruneLocked()
	return e
}

// pruneLocked forgets confirmed and dismissed edits; only pending and reportable
// failures are kept.
func (c *Coordinator) pruneLocked() {
	kept := c.edits[:0]
	for _, e := range c.edits {
		if e.State == Confirmed || e.Dismissed {
			continue
		}
		kept = append(kept, e)
	}
	clear(c.edits[len(kept):])
	c.edits = kept
}

// Edits returns a copy of the edits that are pending or failed.
func (c *Coordinator) Edits() []Edit {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()

	out := make([]Edit, 0, len(c.edits))
	for _, e := range c.edits {
		out = append(out, *e)
	}
	return out
}

// Errors returns failed edits that have not been dismissed, oldest first.
func (c *Coordinator) Errors() []Edit {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Edit
	for _, e := range c.edits {
		if e.State == Failed && !e.Dismissed {
			out = append(out, *e)
		}
	}
	return out
}

// Dismiss hides a failed edit from Errors.
func (c *Coordinator) Dismiss(editID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.findLocked(editID)
	if e == nil || e.State != Failed {
		return ErrEditNotFound
	}
	e.Dismissed = true
	c.pruneLocked()
	return nil
}

// Retry re-applies a failed edit locally and sends it again, waiting for the result.
func (c *Coordinator) Retry(ctx context.Context, editID uint64) error {
	c.mu.Lock()
	e := c.findLocked(editID)
	if e == nil || e.State != Failed {
		c.mu.Unlock()
		return ErrEditNotFound
	}
	if i := c.indexLocked(e.TaskID); i >= 0 {
		e.Patch.Apply(&c.tasks[i], c.opts.Now())
	}
	for _, field := range e.Fields {
		c.latest[fieldKey{taskID: e.TaskID, field: field}] = e.ID
	}
	e.State = Pending
	e.Err = nil
	c.inflight.Add(1)
	c.mu.Unlock()

	c.notify()
	defer c.inflight.Done()
	c.send(ctx, e)

	c.mu.Lock()
	defer c.mu.Unlock()
	return e.Err
}

func (c *Coordinator) findLocked(editID uint64) *Edit {
	for _, e := range c.edits {
		if e.ID == editID && !e.Dismissed {
			return e
		}
	}
	return nil
}
