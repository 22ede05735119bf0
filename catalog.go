package backtest

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// UnknownSector is the sector of tickers registered without one.
const UnknownSector = "Unknown"

// Metadata describes a ticker of the catalog.
type Metadata struct {
	Ticker string `yaml:"ticker" json:"ticker"`
	Name   string `yaml:"name" json:"name"`
	Sector string `yaml:"sector" json:"sector"`
}

// Catalog is a registry of tickers and their sectors. It is safe for
// concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Metadata
	order   []string
}

// NewCatalog returns a catalog holding entries.
func NewCatalog(entries ...Metadata) *Catalog {
	c := &Catalog{entries: make(map[string]Metadata)}
	for _, m := range entries {
		c.Register(m.Ticker, m)
	}
	return c
}

// normalize returns the canonical form of a ticker.
func normalize(ticker string) string { return strings.ToUpper(strings.TrimSpace(ticker)) }

// Register adds or replaces ticker. Missing name and sector default to the
// ticker and UnknownSector.
func (c *Catalog) Register(ticker string, m Metadata) Metadata {
	m.Ticker = normalize(ticker)
	if m.Name == "" {
		m.Name = m.Ticker
	}
	if m.Sector == "" {
		m.Sector = UnknownSector
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[m.Ticker]; !exists {
		c.order = append(c.order, m.Ticker)
	}
	c.entries[m.Ticker] = m
	return m
}

// Lookup returns the metadata of ticker.
func (c *Catalog) Lookup(ticker string) (Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[normalize(ticker)]
	return m, ok
}

// Len returns the number of registered tickers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Tickers returns every ticker, in registration order.
func (c *Catalog) Tickers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Entries returns the metadata of every ticker, in registration order.
func (c *Catalog) Entries() []Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Metadata, len(c.order))
	for i, t := range c.order {
		out[i] = c.entries[t]
	}
	return out
}

// Sectors returns the sorted list of sectors.
func (c *Catalog) Sectors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, m := range c.entries {
		if !slices.Contains(out, m.Sector) {
			out = append(out, m.Sector)
		}
	}
	slices.Sort(out)
	return out
}

// BySector returns the tickers of sector, in registration order.
func (c *Catalog) BySector(sector string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, t := range c.order {
		if c.entries[t].Sector == sector {
			out = append(out, t)
		}
	}
	return out
}

// Resolve normalizes tickers, drops duplicates keeping the first occurrence,
// and registers unknown tickers in the UnknownSector.
func (c *Catalog) Resolve(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = normalize(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		if _, ok := c.Lookup(t); !ok {
			c.Register(t, Metadata{})
		}
		out = append(out, t)
	}
	return out
}

// LoadCatalog reads a yaml list of ticker metadata.
// A missing file is an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog %q: %w", path, err)
	}
	var entries []Metadata
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("cannot parse catalog %q: %w", path, err)
	}
	return NewCatalog(entries...), nil
}

// Save writes the catalog as a yaml list.
func (c *Catalog) Save(path string) error {
	data, err := yaml.Marshal(c.Entries())
	if err != nil {
		return fmt.Errorf("cannot encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write catalog %q: %w", path, err)
	}
	return nil
}
