package security

import "sync"

// ClaimsLoader contributes extra claims for a user at mint time. Loaders
// must be pure: same user in, same mapping out, no writes to the user.
type ClaimsLoader func(user *User) map[string]any

// claimsLoaderRegistry is an ordered, append-only list of loaders. It is
// expected to be populated during startup or test setup, but registration
// is guarded so late additions do not race mint.
type claimsLoaderRegistry struct {
	mu      sync.RWMutex
	loaders []ClaimsLoader
}

func (r *claimsLoaderRegistry) register(loader ClaimsLoader) {
	if loader == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders = append(r.loaders, loader)
}

// apply invokes every loader in registration order and merges the results.
// Later loaders overwrite colliding keys.
func (r *claimsLoaderRegistry) apply(user *User) map[string]any {
	r.mu.RLock()
	loaders := make([]ClaimsLoader, len(r.loaders))
	copy(loaders, r.loaders)
	r.mu.RUnlock()

	if len(loaders) == 0 {
		return nil
	}

	merged := make(map[string]any)
	for _, loader := range loaders {
		for key, val := range loader(user) {
			merged[key] = val
		}
	}
	return merged
}
