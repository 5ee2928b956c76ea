package machine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator generates unique transaction tokens.
//
// The engine assigns a token when a transaction opens (first coin after
// baseline); every history record of that transaction carries it, so a
// whole transaction can be pulled out of the log by token.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 transaction tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time - convenient when scanning a long history log.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CounterGenerator returns "prefix-1", "prefix-2", ... in order.
//
// Used in tests and scenario runs where traces are compared against golden
// files: tokens must be identical across runs, and the number of
// transactions is not known up front.
//
// Thread-safety: safe for concurrent use via internal mutex.
type CounterGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCounterGenerator creates a deterministic sequential token generator.
func NewCounterGenerator(prefix string) *CounterGenerator {
	return &CounterGenerator{prefix: prefix}
}

// Generate returns the next sequential token.
func (g *CounterGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedGenerator returns predetermined tokens for tests that assert on
// exact token values.
//
// Panics once all tokens are consumed - fail-fast for test
// misconfiguration (the test opened more transactions than expected).
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
