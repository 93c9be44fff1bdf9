package quality

import (
	"fmt"
	"sync"
)

// Registry holds validators indexed by entity kind.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
	thresholds map[string]int
}

// NewRegistry creates an empty validator registry.
func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[string]Validator),
		thresholds: make(map[string]int),
	}
}

// Register adds a validator for the given entity kind.
// Panics if the kind is already registered.
func (r *Registry) Register(kind string, threshold int, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.validators[kind]; exists {
		panic(fmt.Sprintf("validator already registered: %s", kind))
	}
	r.validators[kind] = v
	r.thresholds[kind] = threshold
}

// Get returns the validator for the given entity kind.
func (r *Registry) Get(kind string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.validators[kind]
	return v, ok
}

// Threshold returns the validity threshold for the given entity kind.
func (r *Registry) Threshold(kind string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.thresholds[kind]
	return t, ok
}

// List returns all registered entity kinds.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.validators))
	for kind := range r.validators {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Validate checks that every expected entity kind has a validator. Called once
// at startup so a miswired job fails fast instead of at first record.
func (r *Registry) Validate(kinds ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, kind := range kinds {
		if _, ok := r.validators[kind]; !ok {
			return fmt.Errorf("no validator registered for entity kind %q", kind)
		}
	}
	return nil
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global validator registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
