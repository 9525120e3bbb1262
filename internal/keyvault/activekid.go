package keyvault

import "sync"

// ActiveKidRegistry is a per-domain single-valued register of the currently
// active KID (§4.4). Process-local by default; mutations are serialized by
// the rotation lease, so the registry itself only needs last-writer-wins
// semantics, not compare-and-set.
type ActiveKidRegistry struct {
	mu     sync.RWMutex
	active map[string]string
}

// NewActiveKidRegistry returns an empty registry.
func NewActiveKidRegistry() *ActiveKidRegistry {
	return &ActiveKidRegistry{active: make(map[string]string)}
}

// GetActive returns domain's active KID, or "" if none is set.
func (r *ActiveKidRegistry) GetActive(domain string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[domain]
}

// SetActive unconditionally sets domain's active KID. The Rotator guarantees
// kid already exists; this registry performs no validation.
func (r *ActiveKidRegistry) SetActive(domain, kid string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[domain] = kid
	return kid
}

// ClearActive removes domain's active KID entirely.
func (r *ActiveKidRegistry) ClearActive(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, domain)
}

// ClearAll removes every domain's active KID.
func (r *ActiveKidRegistry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]string)
}
