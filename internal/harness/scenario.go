package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vendo/internal/machine"
)

// Scenario defines one conformance test: a machine configuration, a
// sequence of operations with optional per-step expectations, and
// assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Config overrides fields of the default machine configuration.
	Config *ConfigOverride `yaml:"config,omitempty"`

	// Steps is the operation sequence to execute, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final machine state after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ConfigOverride selectively overrides machine.DefaultConfig.
// Nil pointers and empty slices keep the default.
type ConfigOverride struct {
	UnitPrice     *int     `yaml:"unit_price,omitempty"`
	Denominations []int    `yaml:"denominations,omitempty"`
	Catalog       []string `yaml:"catalog,omitempty"`
	InitialStock  *int     `yaml:"initial_stock,omitempty"`
	Capacity      *int     `yaml:"capacity,omitempty"`
}

// Step operation names.
const (
	OpInsert       = "insert"
	OpSelect       = "select"
	OpCommit       = "commit"
	OpCancel       = "cancel"
	OpRestock      = "restock"
	OpRefill       = "refill"
	OpClearHistory = "clear_history"
)

// Step is one machine operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Denomination is the coin value for insert.
	Denomination int `yaml:"denomination,omitempty"`

	// Item is the catalog identifier for select and restock.
	Item string `yaml:"item,omitempty"`

	// Count is the new stock level for restock.
	Count int `yaml:"count"`

	// Expect optionally validates the step's outcome.
	// A step without an expect clause is assumed to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
// Only set fields are validated.
type Expect struct {
	// Error is the expected machine error code (e.g. "INSUFFICIENT_FUNDS").
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Balance is the expected balance after the step.
	Balance *int `yaml:"balance,omitempty"`

	// Phase is the expected phase after the step.
	Phase string `yaml:"phase,omitempty"`

	// Change is the expected change from a commit.
	Change *int `yaml:"change,omitempty"`

	// Dispensed is the expected dispensed item list from a commit.
	Dispensed []string `yaml:"dispensed,omitempty"`

	// Refund is the expected refund from a cancel.
	Refund *int `yaml:"refund,omitempty"`
}

// Load reads and validates a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}

	return &sc, nil
}

// Validate checks structural constraints on the scenario.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpInsert:
			if step.Denomination == 0 {
				return fmt.Errorf("step %d: insert requires a denomination", i+1)
			}
		case OpSelect:
			if step.Item == "" {
				return fmt.Errorf("step %d: select requires an item", i+1)
			}
		case OpRestock:
			if step.Item == "" {
				return fmt.Errorf("step %d: restock requires an item", i+1)
			}
		case OpCommit, OpCancel, OpRefill, OpClearHistory:
			// No arguments.
		default:
			return fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}

	return nil
}

// buildConfig applies the scenario's overrides to the default config.
func (s *Scenario) buildConfig() machine.Config {
	cfg := machine.DefaultConfig()
	o := s.Config
	if o == nil {
		return cfg
	}
	if o.UnitPrice != nil {
		cfg.UnitPrice = *o.UnitPrice
	}
	if len(o.Denominations) > 0 {
		cfg.Denominations = o.Denominations
	}
	if len(o.Catalog) > 0 {
		cfg.Catalog = o.Catalog
	}
	if o.InitialStock != nil {
		cfg.InitialStock = *o.InitialStock
	}
	if o.Capacity != nil {
		cfg.Capacity = *o.Capacity
	}
	return cfg
}
