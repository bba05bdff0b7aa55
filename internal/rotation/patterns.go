package rotation

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Style tokens used by the standard patterns.
const (
	StyleTease    = "tease"
	StyleDirect   = "direct"
	StyleBundle   = "bundle"
	StylePersonal = "personal"
	StyleUrgency  = "urgency"
	StyleReveal   = "reveal"
)

// Catalog holds the named standard patterns a tracker can rotate onto.
type Catalog struct {
	patterns map[string][]string
	names    []string
}

// defaultPatterns ship embedded so the tracker works without any config file.
var defaultPatterns = map[string][]string{
	"classic":    {StyleTease, StyleReveal, StyleDirect, StylePersonal},
	"soft_sell":  {StylePersonal, StyleTease, StyleBundle},
	"hard_push":  {StyleDirect, StyleUrgency, StyleBundle, StyleUrgency, StyleTease},
	"slow_burn":  {StyleTease, StylePersonal, StyleTease, StyleReveal},
	"mix_weekly": {StyleBundle, StyleDirect, StyleTease, StylePersonal, StyleReveal},
}

func NewDefaultCatalog() *Catalog {
	c, err := newCatalog(defaultPatterns)
	if err != nil {
		// The embedded set is validated by tests; a bad entry is a programming error.
		panic(err)
	}
	return c
}

// LoadCatalog reads a yaml pattern file of the form `name: [style, ...]`.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern catalog: %w", err)
	}
	var parsed map[string][]string
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse pattern catalog: %w", err)
	}
	return newCatalog(parsed)
}

func newCatalog(patterns map[string][]string) (*Catalog, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("pattern catalog is empty")
	}
	for name, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", name, err)
		}
	}
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Catalog{patterns: patterns, names: names}, nil
}

// ValidatePattern enforces the structural rules every pattern must satisfy:
// at least two tokens and no identical adjacent tokens.
func ValidatePattern(p []string) error {
	if len(p) < 2 {
		return fmt.Errorf("pattern must have at least 2 styles, has %d", len(p))
	}
	for i := 1; i < len(p); i++ {
		if p[i] == p[i-1] {
			return fmt.Errorf("pattern has identical adjacent styles at %d (%s)", i, p[i])
		}
	}
	return nil
}

// Names returns the pattern names in stable sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Pattern returns a copy of the named pattern.
func (c *Catalog) Pattern(name string) ([]string, bool) {
	p, ok := c.patterns[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), p...), true
}

// NameOf returns the catalog name whose pattern matches p exactly, if any.
func (c *Catalog) NameOf(p []string) (string, bool) {
	for _, name := range c.names {
		cand := c.patterns[name]
		if len(cand) != len(p) {
			continue
		}
		match := true
		for i := range cand {
			if cand[i] != p[i] {
				match = false
				break
			}
		}
		if match {
			return name, true
		}
	}
	return "", false
}
