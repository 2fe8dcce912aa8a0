package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates predictable job ids: "<prefix>-1",
// "<prefix>-2", and so on.
//
// Implements jobs.IDGenerator. Deterministic ids let tests assert on
// responses and logs byte for byte.
//
// Thread-safety: safe for concurrent use via internal mutex. Concurrent
// callers always receive distinct ids.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "job".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "job"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
