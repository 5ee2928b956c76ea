package machine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config fixes a machine's commercial parameters at construction time.
//
// Pricing is uniform: every catalog item costs UnitPrice. The catalog,
// accepted denominations, and price never change for the life of a Machine;
// only stock counters move.
type Config struct {
	// Currency is a display label only (e.g. "KShs").
	Currency string `yaml:"currency"`

	// UnitPrice is the cost of one item, in currency units.
	UnitPrice int `yaml:"unit_price"`

	// Denominations is the accepted coin set, ascending.
	Denominations []int `yaml:"denominations"`

	// Catalog lists the item identifiers this machine carries.
	Catalog []string `yaml:"catalog"`

	// InitialStock is the per-item counter at machine start.
	InitialStock int `yaml:"initial_stock"`

	// Capacity is the per-item counter maximum; SetStock clamps to it.
	Capacity int `yaml:"capacity"`

	// AdminSecret is the shared secret for the administrative surface.
	AdminSecret string `yaml:"admin_secret"`
}

// DefaultConfig returns the stock soft-drink machine configuration.
func DefaultConfig() Config {
	return Config{
		Currency:      "KShs",
		UnitPrice:     50,
		Denominations: []int{10, 20, 40, 50, 100, 200, 500, 1000},
		Catalog:       []string{"Cola", "Sprite", "Fanta", "Pepsi", "Dew", "7Up"},
		InitialStock:  5,
		Capacity:      5,
		AdminSecret:   "admin123",
	}
}

// LoadConfig reads a YAML config file over the defaults: fields absent from
// the file keep their default values. The result is validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c Config) Validate() error {
	if c.UnitPrice <= 0 {
		return fmt.Errorf("unit_price must be positive, got %d", c.UnitPrice)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.InitialStock < 0 || c.InitialStock > c.Capacity {
		return fmt.Errorf("initial_stock %d outside [0, %d]", c.InitialStock, c.Capacity)
	}

	if len(c.Denominations) == 0 {
		return fmt.Errorf("at least one denomination is required")
	}
	prev := 0
	for _, d := range c.Denominations {
		if d <= prev {
			return fmt.Errorf("denominations must be ascending and positive, got %v", c.Denominations)
		}
		prev = d
	}

	if len(c.Catalog) == 0 {
		return fmt.Errorf("catalog must not be empty")
	}
	seen := make(map[string]bool, len(c.Catalog))
	for _, id := range c.Catalog {
		if id == "" {
			return fmt.Errorf("catalog contains an empty item identifier")
		}
		if seen[id] {
			return fmt.Errorf("duplicate catalog item %q", id)
		}
		seen[id] = true
	}

	return nil
}
