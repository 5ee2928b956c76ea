package harness

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/vendo/internal/machine"
)

// Assertion type constants.
const (
	AssertBalance      = "balance"
	AssertPhase        = "phase"
	AssertStock        = "stock"
	AssertSelection    = "selection"
	AssertHistoryCount = "history_count"
)

// Assertion validates one aspect of the final machine state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Value is the expected balance or history record count.
	Value int `yaml:"value"`

	// Phase is the expected phase (type "phase").
	Phase string `yaml:"phase,omitempty"`

	// Item and Count are the expected stock counter (type "stock").
	Item  string `yaml:"item,omitempty"`
	Count int    `yaml:"count"`

	// Items is the expected selection, in order (type "selection").
	// Empty means the selection must be empty.
	Items []string `yaml:"items,omitempty"`
}

func (a Assertion) validate() error {
	switch a.Type {
	case AssertBalance, AssertPhase, AssertSelection, AssertHistoryCount:
		return nil
	case AssertStock:
		if a.Item == "" {
			return fmt.Errorf("stock assertion requires an item")
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// check evaluates the assertion against the machine, accumulating failures
// into the result.
func (a Assertion) check(ctx context.Context, m *machine.Machine, result *Result) {
	snap := m.Snapshot()

	switch a.Type {
	case AssertBalance:
		if snap.Balance != a.Value {
			result.AddError("balance: got %d, want %d", snap.Balance, a.Value)
		}

	case AssertPhase:
		if string(snap.Phase) != a.Phase {
			result.AddError("phase: got %s, want %s", snap.Phase, a.Phase)
		}

	case AssertStock:
		n, err := m.Ledger().Stock(a.Item)
		if err != nil {
			result.AddError("stock %s: %v", a.Item, err)
			return
		}
		if n != a.Count {
			result.AddError("stock %s: got %d, want %d", a.Item, n, a.Count)
		}

	case AssertSelection:
		if !slices.Equal(snap.Selection, a.Items) && !(len(snap.Selection) == 0 && len(a.Items) == 0) {
			result.AddError("selection: got %v, want %v", snap.Selection, a.Items)
		}

	case AssertHistoryCount:
		n, err := m.History().Count(ctx)
		if err != nil {
			result.AddError("history count: %v", err)
			return
		}
		if n != a.Value {
			result.AddError("history count: got %d, want %d", n, a.Value)
		}
	}
}
