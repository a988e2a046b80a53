package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces collision-resistant identifiers for leases. It is
// injected rather than called directly so tests can run with predictable ids.
type Generator interface {
	NewID() string
}

// UUIDGenerator backs ids with random 128-bit UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Sequential hands out "<prefix>-1", "<prefix>-2", ... in order. Tests only.
type Sequential struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (g *Sequential) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}
