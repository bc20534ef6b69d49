package security

import (
	"fmt"
	"sync"
)

// StoreFactory builds an IdentityStore from configuration. Factories run
// once, at process startup, when the backend named in the configuration is
// selected.
type StoreFactory func(cfg Config) (IdentityStore, error)

var storeRegistry = struct {
	mu        sync.RWMutex
	factories map[string]StoreFactory
}{factories: map[string]StoreFactory{}}

// RegisterStore makes a store backend selectable by name. Registration is
// expected during init or startup; re-registering a name replaces the
// previous factory.
func RegisterStore(name string, factory StoreFactory) {
	if name == "" || factory == nil {
		return
	}
	storeRegistry.mu.Lock()
	defer storeRegistry.mu.Unlock()
	storeRegistry.factories[name] = factory
}

// CreateStore builds the IdentityStore named by the configuration. An
// empty store name selects the reference in-memory backend.
func CreateStore(cfg Config) (IdentityStore, error) {
	name := cfg.GetStoreName()
	if name == "" {
		name = MemoryStoreName
	}

	storeRegistry.mu.RLock()
	factory, ok := storeRegistry.factories[name]
	storeRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown identity store: %q", name)
	}

	return factory(cfg)
}
