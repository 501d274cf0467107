// Package catalog holds the read-only model tables of every provider.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// Capability selects one of a provider's model tables.
type Capability string

const (
	Chat      Capability = "chat"
	Embedding Capability = "embedding"
	Imagine   Capability = "imagine"
)

// Table lists the models of one capability.
type Table struct {
	Default string   `yaml:"default"`
	Models  []string `yaml:"models"`
	// Vision patterns name chat models that accept image input.
	Vision []string `yaml:"vision"`
}

// Provider is the catalog entry of one provider.
type Provider struct {
	Name      string `yaml:"name"`
	Chat      *Table `yaml:"chat"`
	Embedding *Table `yaml:"embedding"`
	Imagine   *Table `yaml:"imagine"`
}

// Catalog is the parsed model table set. It is never mutated after Parse.
type Catalog struct {
	Providers []Provider `yaml:"providers"`
	index     map[string]int
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}

	c.index = make(map[string]int, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("model catalog: provider %d has no name", i)
		}
		if _, dup := c.index[p.Name]; dup {
			return nil, fmt.Errorf("model catalog: duplicate provider %q", p.Name)
		}
		c.index[p.Name] = i
	}
	return &c, nil
}

//nolint:gochecknoglobals // parsed once from embedded data
var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(modelsYAML)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the embedded catalog.
func Default() *Catalog {
	return defaultCatalog()
}

// Lookup returns the entry of a provider.
func (c *Catalog) Lookup(provider string) (Provider, bool) {
	i, ok := c.index[provider]
	if !ok {
		return Provider{}, false
	}
	return c.Providers[i], true
}

func (p Provider) table(capability Capability) *Table {
	switch capability {
	case Chat:
		return p.Chat
	case Embedding:
		return p.Embedding
	case Imagine:
		return p.Imagine
	default:
		return nil
	}
}

// DefaultModel returns the default model of a provider capability, or "".
func (c *Catalog) DefaultModel(provider string, capability Capability) string {
	p, ok := c.Lookup(provider)
	if !ok {
		return ""
	}
	if t := p.table(capability); t != nil {
		return t.Default
	}
	return ""
}

// ModelOr returns model, or the capability default when model is empty.
func (c *Catalog) ModelOr(provider string, capability Capability, model string) string {
	if model != "" {
		return model
	}
	return c.DefaultModel(provider, capability)
}

// Models returns the ordered model list of a provider capability.
func (c *Catalog) Models(provider string, capability Capability) []string {
	p, ok := c.Lookup(provider)
	if !ok {
		return nil
	}
	if t := p.table(capability); t != nil {
		return t.Models
	}
	return nil
}

// SupportsVision reports whether a provider's chat model accepts image input.
func (c *Catalog) SupportsVision(provider, model string) bool {
	p, ok := c.Lookup(provider)
	if !ok || p.Chat == nil {
		return false
	}
	for _, pattern := range p.Chat.Vision {
		if prefix, wildcard := strings.CutSuffix(pattern, "*"); wildcard {
			if strings.HasPrefix(model, prefix) {
				return true
			}
			continue
		}
		if pattern == model {
			return true
		}
	}
	return false
}

// Row is one line of the flattened listing.
type Row struct {
	Provider   string
	Capability Capability
	Model      string
	Default    bool
}

// Rows flattens the catalog in document order.
func (c *Catalog) Rows() []Row {
	var rows []Row
	for _, p := range c.Providers {
		for _, capability := range []Capability{Chat, Embedding, Imagine} {
			t := p.table(capability)
			if t == nil {
				continue
			}
			models := t.Models
			if len(models) == 0 && t.Default != "" {
				models = []string{t.Default}
			}
			for _, m := range models {
				rows = append(rows, Row{
					Provider:   p.Name,
					Capability: capability,
					Model:      m,
					Default:    m == t.Default,
				})
			}
		}
	}
	return rows
}
