package overlay

import (
	"container/list"
	"sync"

	"github.com/tessro/dbxlink/internal/daemon"
)

// cacheKey separates directory lookups, which carry a folder tag, from
// plain file lookups of the same path.
type cacheKey struct {
	path  string
	isDir bool
}

// statusCache is a bounded LRU of file statuses. Every remove or clear
// bumps the epoch so an answer fetched across an invalidation is dropped.
type statusCache struct {
	mu sync.Mutex
	// +checklocks:mu
	order *list.List
	// +checklocks:mu
	items map[cacheKey]*list.Element
	// +checklocks:mu
	epoch uint64
	size  int
}

type cacheEntry struct {
	key  cacheKey
	info *daemon.FileInfo
}

func newStatusCache(size int) *statusCache {
	if size <= 0 {
		size = 1
	}
	return &statusCache{
		order: list.New(),
		items: make(map[cacheKey]*list.Element),
		size:  size,
	}
}

// get returns the cached status and the current epoch, which a miss
// passes back to putAt.
func (c *statusCache) get(key cacheKey) (*daemon.FileInfo, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, c.epoch, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).info, c.epoch, true
}

// putAt stores info only if nothing was invalidated since epoch.
func (c *statusCache) putAt(key cacheKey, info *daemon.FileInfo, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).info = info
		c.order.MoveToFront(el)
		return true
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, info: info})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
	return true
}

// remove drops both lookups of path and reports whether either was cached.
func (c *statusCache) remove(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	found := false
	for _, key := range []cacheKey{{path, false}, {path, true}} {
		if el, ok := c.items[key]; ok {
			c.order.Remove(el)
			delete(c.items, key)
			found = true
		}
	}
	return found
}

func (c *statusCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.order.Init()
	clear(c.items)
}

func (c *statusCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
