package cache

import (
	"context"
	"sync"
	"time"

	"quarry.dev/asana-task-bridge/internal/asana"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	task      *asana.Task
	fetchedAt time.Time
}

type TaskFetcher interface {
	FetchTask(ctx context.Context, gid string) (*asana.Task, error)
}

// Cache memoizes task fetches for the webhook server, so an edit storm on one
// pull request does not re-fetch the same task on every delivery.
type Cache struct {
	fetcher TaskFetcher
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
}

func New(fetcher TaskFetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

func (c *Cache) Get(ctx context.Context, gid string) (*asana.Task, error) {
	c.mu.RLock()
	e, ok := c.entries[gid]
	c.mu.RUnlock()

	if ok && time.Since(e.fetchedAt) < c.ttl {
		return e.task, nil
	}

	task, err := c.fetcher.FetchTask(ctx, gid)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[gid] = &entry{
		task:      task,
		fetchedAt: time.Now(),
	}
	c.mu.Unlock()

	return task, nil
}
