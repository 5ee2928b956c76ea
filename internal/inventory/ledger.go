package inventory

import (
	"fmt"
	"sort"
	"sync"
)

// ErrDepleted is returned by Decrement when an item's counter is already 0.
type ErrDepleted struct {
	ItemID string
}

func (e *ErrDepleted) Error() string {
	return fmt.Sprintf("item %q is depleted", e.ItemID)
}

// ErrUnknownItem is returned for identifiers outside the configured catalog.
type ErrUnknownItem struct {
	ItemID string
}

func (e *ErrUnknownItem) Error() string {
	return fmt.Sprintf("item %q is not in the catalog", e.ItemID)
}

// Ledger holds one bounded stock counter per catalog item.
//
// Thread-safety: all methods are safe for concurrent use. The mutex
// serializes Decrement against SetStock so two callers can never dispense
// the last unit of the same item.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	counts   map[string]int
	items    []string // catalog in sorted order, fixed at construction
}

// New creates a ledger for the given catalog with every counter set to
// initial (clamped to [0, capacity]). The catalog is fixed for the life of
// the ledger; identifiers outside it are rejected by every method.
func New(catalog []string, initial, capacity int) *Ledger {
	items := make([]string, len(catalog))
	copy(items, catalog)
	sort.Strings(items)

	counts := make(map[string]int, len(items))
	for _, id := range items {
		counts[id] = clamp(initial, capacity)
	}

	return &Ledger{
		capacity: capacity,
		counts:   counts,
		items:    items,
	}
}

// Stock returns the current counter for an item.
func (l *Ledger) Stock(itemID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.counts[itemID]
	if !ok {
		return 0, &ErrUnknownItem{ItemID: itemID}
	}
	return n, nil
}

// Decrement reduces an item's counter by one.
// Fails with *ErrDepleted if the counter is already 0 - a counter never
// goes negative.
func (l *Ledger) Decrement(itemID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.counts[itemID]
	if !ok {
		return &ErrUnknownItem{ItemID: itemID}
	}
	if n <= 0 {
		return &ErrDepleted{ItemID: itemID}
	}
	l.counts[itemID] = n - 1
	return nil
}

// SetStock sets an item's counter, clamped to [0, capacity].
// Used by administrative restock; it bypasses the transaction engine, which
// is why the engine re-validates stock at commit time.
func (l *Ledger) SetStock(itemID string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.counts[itemID]; !ok {
		return &ErrUnknownItem{ItemID: itemID}
	}
	l.counts[itemID] = clamp(n, l.capacity)
	return nil
}

// DecrementBatch reduces counters for every identifier in itemIDs
// (duplicates count once each), all-or-nothing under a single lock.
//
// If any unit cannot be covered, nothing is decremented and the error names
// the first identifier (in slice order) whose stock falls short. The lock
// spans the whole batch so a concurrent SetStock can never split it.
func (l *Ledger) DecrementBatch(itemIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Availability pass: walk in order, counting units already claimed by
	// earlier entries of the same item.
	claimed := make(map[string]int, len(itemIDs))
	for _, id := range itemIDs {
		n, ok := l.counts[id]
		if !ok {
			return &ErrUnknownItem{ItemID: id}
		}
		if claimed[id]+1 > n {
			return &ErrDepleted{ItemID: id}
		}
		claimed[id]++
	}

	for id, n := range claimed {
		l.counts[id] -= n
	}
	return nil
}

// RefillAll sets every counter to capacity.
func (l *Ledger) RefillAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.counts {
		l.counts[id] = l.capacity
	}
}

// TotalStock returns the sum of all counters.
// A total of 0 is what forces the machine into the OutOfStock phase.
func (l *Ledger) TotalStock() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, n := range l.counts {
		total += n
	}
	return total
}

// Items returns the catalog identifiers in sorted order.
// The returned slice is a copy; callers may not mutate the catalog.
func (l *Ledger) Items() []string {
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// Capacity returns the configured per-item maximum.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Snapshot returns a copy of all counters keyed by item identifier.
func (l *Ledger) Snapshot() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]int, len(l.counts))
	for id, n := range l.counts {
		out[id] = n
	}
	return out
}

func clamp(n, capacity int) int {
	if n < 0 {
		return 0
	}
	if n > capacity {
		return capacity
	}
	return n
}
