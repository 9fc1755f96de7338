package request

import (
	"strconv"
	"sync"
	"time"
)

// idGenerator produces strictly increasing hexadecimal request IDs
// based on the wall clock in milliseconds. On a clock regression or
// two calls inside one millisecond the candidate is bumped past the
// last issued value so IDs never repeat.
type idGenerator struct {
	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{now: time.Now}
}

// Next returns a fresh request ID.
func (g *idGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uint64(g.now().UnixMilli())
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return strconv.FormatUint(id, 16)
}
