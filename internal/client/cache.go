package client

import (
	"sync"
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
)

// DefaultCacheTTL is how long a fetched list is served without a network call.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds the last successful list for a single user. The payload is only ever
// replaced as a whole.
type Cache struct {
	mu        sync.Mutex
	ttl       time.Duration
	userID    string
	expiresAt time.Time
	tasks     []domain.Task
}

// NewCache creates an empty cache.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl}
}

// Get returns a copy of the cached list if it belongs to userID and has not expired.
func (c *Cache) Get(userID string, now time.Time) ([]domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tasks == nil || c.userID != userID || !now.Before(c.expiresAt) {
		return nil, false
	}
	return domain.CloneTasks(c.tasks), true
}

// Put replaces the payload and restarts the TTL.
func (c *Cache) Put(userID string, tasks []domain.Task, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userID = userID
	c.tasks = domain.CloneTasks(tasks)
	if c.tasks == nil {
		c.tasks = []domain.Task{}
	}
	c.expiresAt = now.Add(c.ttl)
}

// Replace swaps the payload for userID without touching the expiry. It reports false
// when nothing is cached for userID.
func (c *Cache) Replace(userID string, tasks []domain.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tasks == nil || c.userID != userID {
		return false
	}
	c.tasks = domain.CloneTasks(tasks)
	return true
}

// Invalidate drops the payload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userID = ""
	c.tasks = nil
	c.expiresAt = time.Time{}
}
