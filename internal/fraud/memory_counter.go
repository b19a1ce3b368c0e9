// internal/fraud/memory_counter.go
package fraud

import (
	"context"
	"sync"
	"time"
)

// MemoryVelocityCounter is a single-process VelocityCounter.
type MemoryVelocityCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]memoryBucket
}

type memoryBucket struct {
	window int64
	count  int64
}

// NewMemoryVelocityCounter creates an empty counter.
func NewMemoryVelocityCounter() *MemoryVelocityCounter {
	return &MemoryVelocityCounter{now: time.Now, buckets: make(map[string]memoryBucket)}
}

func (c *MemoryVelocityCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.now().UnixNano() / int64(window)
	b := c.buckets[key]
	if b.window != current {
		b = memoryBucket{window: current}
	}
	b.count++
	c.buckets[key] = b
	return b.count, nil
}
