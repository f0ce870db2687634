package optimistic

// ArmedSend returns the send that the debounce timer of field on task id would run now.
func (c *Coordinator) ArmedSend(id, field string) func() {
	key := fieldKey{taskID: id, field: field}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[key]
	if !ok {
		return func() {}
	}
	return func() { c.fire(key, p) }
}
