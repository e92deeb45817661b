package provider

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds the configured providers.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]Provider
	defaultModel string // "provider/model"
}

// NewRegistry creates a registry. defaultModel is a "provider/model"
// string and may be empty, in which case the first registered model wins.
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		providers:    make(map[string]Provider),
		defaultModel: defaultModel,
	}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return p, nil
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// GetModel retrieves one model from one provider.
func (r *Registry) GetModel(providerID, modelID string) (*Model, error) {
	p, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}
	for _, m := range p.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// DefaultModel resolves the configured default model, falling back to the
// first model of any provider.
func (r *Registry) DefaultModel() (*Model, error) {
	if r.defaultModel != "" {
		providerID, modelID := ParseModelString(r.defaultModel)
		if providerID != "" {
			return r.GetModel(providerID, modelID)
		}
	}

	for _, p := range r.List() {
		models := p.Models()
		if len(models) > 0 {
			return &models[0], nil
		}
	}
	return nil, fmt.Errorf("no models available")
}

// ParseModelString splits a "provider/model" string.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}
