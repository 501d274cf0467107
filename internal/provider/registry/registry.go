package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/uniai/internal/domain"
)

// Registry implements the ProviderRegistry interface.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		providers: make(map[string]domain.Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(_ context.Context, provider domain.Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[providerName]
	if !exists {
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotFound, providerName)
	}

	return provider, nil
}

// List returns all available providers in name order.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Capabilities reports which operations each registered provider serves.
func (r *Registry) Capabilities(ctx context.Context) (map[string][]string, error) {
	names, err := r.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(names))
	for _, name := range names {
		out[name] = capabilities(r.providers[name])
	}
	return out, nil
}

func capabilities(p domain.Provider) []string {
	ops := []string{}
	if _, ok := p.(domain.ChatProvider); ok {
		ops = append(ops, "chat")
	}
	if _, ok := p.(domain.EmbeddingProvider); ok {
		ops = append(ops, "embedding")
	}
	if _, ok := p.(domain.ImagineProvider); ok {
		ops = append(ops, "imagine", "task")
	}
	if _, ok := p.(domain.TaskChanger); ok {
		ops = append(ops, "change")
	}
	return ops
}
