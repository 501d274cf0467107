// Package credential picks one secret from a provider's configured pool.
package credential

import (
	"math/rand/v2"
	"strings"

	"github.com/davidbz/uniai/internal/domain"
)

// Pool is an immutable set of interchangeable credentials for one provider.
type Pool struct {
	provider string
	keys     []string
}

// NewPool builds a pool from configured values. Each value may itself hold a
// comma separated list; blanks are ignored.
func NewPool(provider string, values ...string) *Pool {
	keys := make([]string, 0, len(values))
	for _, v := range values {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return &Pool{provider: provider, keys: keys}
}

// Pick returns one credential chosen uniformly at random. Every call is an
// independent draw.
func (p *Pool) Pick() (string, error) {
	if p == nil || len(p.keys) == 0 {
		name := ""
		if p != nil {
			name = p.provider
		}
		return "", domain.ConfigurationError(name, "credential not set")
	}
	if len(p.keys) == 1 {
		return p.keys[0], nil
	}
	return p.keys[rand.IntN(len(p.keys))], nil
}

// Len reports the pool size.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}
