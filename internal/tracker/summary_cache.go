package tracker

import (
	"sync"
	"time"
)

// summaryCache keeps recently fetched project summaries so the host can
// re-open a project panel without a network round trip. Entries expire after
// a TTL and the least recently used entry is evicted at capacity.
type summaryCache struct {
	mu  sync.Mutex
	cap int
	ttl time.Duration

	entries map[string]*summaryNode
	head    *summaryNode // most recently used sentinel
	tail    *summaryNode // least recently used sentinel

	now func() time.Time
}

type summaryNode struct {
	projectID string
	summary   ProjectSummary
	storedAt  time.Time
	prev      *summaryNode
	next      *summaryNode
}

func newSummaryCache(capacity int, ttl time.Duration) *summaryCache {
	if capacity < 1 {
		capacity = 1
	}
	head := &summaryNode{}
	tail := &summaryNode{}
	head.next = tail
	tail.prev = head
	return &summaryCache{
		cap:     capacity,
		ttl:     ttl,
		entries: make(map[string]*summaryNode, capacity),
		head:    head,
		tail:    tail,
		now:     time.Now,
	}
}

// get returns the summary for a project if present and not expired. An
// expired entry is dropped on access.
func (c *summaryCache) get(projectID string) (ProjectSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[projectID]
	if !ok {
		return ProjectSummary{}, false
	}
	if c.ttl > 0 && c.now().Sub(n.storedAt) > c.ttl {
		c.unlink(n)
		delete(c.entries, projectID)
		return ProjectSummary{}, false
	}
	c.unlink(n)
	c.pushFront(n)
	return n.summary, true
}

// put stores a summary, evicting the least recently used entry at capacity.
func (c *summaryCache) put(projectID string, s ProjectSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[projectID]; ok {
		n.summary = s
		n.storedAt = c.now()
		c.unlink(n)
		c.pushFront(n)
		return
	}

	if len(c.entries) >= c.cap {
		victim := c.tail.prev
		c.unlink(victim)
		delete(c.entries, victim.projectID)
	}

	n := &summaryNode{projectID: projectID, summary: s, storedAt: c.now()}
	c.entries[projectID] = n
	c.pushFront(n)
}

// remove drops a project's summary, if cached. Called when a session ends
// so the next summary fetch reflects the new totals.
func (c *summaryCache) remove(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[projectID]; ok {
		c.unlink(n)
		delete(c.entries, projectID)
	}
}

func (c *summaryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *summaryCache) unlink(n *summaryNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}

func (c *summaryCache) pushFront(n *summaryNode) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}
