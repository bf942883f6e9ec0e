package plugin

import (
	"reflect"
	"slices"
	"sync"
)

// Registry holds the loaded plugins in initialization order, indexed by id
// and by concrete type. All views are updated under one lock so readers
// never observe them out of step.
type Registry struct {
	mu     sync.RWMutex
	list   []Plugin
	byID   map[string]Plugin
	byType map[reflect.Type]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]Plugin),
		byType: make(map[reflect.Type]Plugin),
	}
}

// Add appends p to the ordered list and indexes it. A later plugin with the
// same id or concrete type replaces the earlier one in that index.
func (r *Registry) Add(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.list = append(r.list, p)
	r.byID[pluginID(p)] = p
	r.byType[reflect.TypeOf(p)] = p
	return nil
}

// Contains reports whether a plugin with id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// ByType returns the plugin whose concrete type is t.
func (r *Registry) ByType(t reflect.Type) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byType[t]
	return p, ok
}

// List returns a copy of the ordered list.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.list)
}

// Count returns the number of loaded plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// Reorder replaces the ordered list with Order applied to it and returns
// the new order.
func (r *Registry) Reorder() []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = Order(r.list)
	return slices.Clone(r.list)
}
