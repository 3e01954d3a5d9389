package game

// Registry holds the wave's enemies in insertion order. Target scans walk this
// order, so ties between equidistant enemies go to the earliest spawned.
// Not safe for concurrent use; the session serializes access onto its tick.
type Registry struct {
	entries []EnemyHandle
	byID    map[string]EnemyHandle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]EnemyHandle)}
}

// Add appends h. Nil handles and duplicate IDs are ignored.
func (r *Registry) Add(h EnemyHandle) bool {
	if h == nil {
		return false
	}
	if _, exists := r.byID[h.ID()]; exists {
		return false
	}
	r.entries = append(r.entries, h)
	r.byID[h.ID()] = h
	return true
}

// Get returns the enemy with id.
func (r *Registry) Get(id string) (EnemyHandle, bool) {
	h, ok := r.byID[id]
	return h, ok
}

// Each calls fn for every entry in insertion order until fn returns false.
func (r *Registry) Each(fn func(EnemyHandle) bool) {
	for _, h := range r.entries {
		if !fn(h) {
			return
		}
	}
}

// Len returns the number of entries, dead or alive.
func (r *Registry) Len() int { return len(r.entries) }

// AliveCount returns the number of live entries.
func (r *Registry) AliveCount() int {
	n := 0
	for _, h := range r.entries {
		if h.Alive() {
			n++
		}
	}
	return n
}

// Sweep drops dead entries, keeping the order of the rest. Returns how many were removed.
func (r *Registry) Sweep() int {
	kept := r.entries[:0]
	for _, h := range r.entries {
		if h.Alive() {
			kept = append(kept, h)
			continue
		}
		delete(r.byID, h.ID())
	}
	removed := len(r.entries) - len(kept)
	clear(r.entries[len(kept):])
	r.entries = kept
	return removed
}

// Clear destroys every entry and empties the registry.
func (r *Registry) Clear() int {
	n := len(r.entries)
	for _, h := range r.entries {
		h.Destroy()
	}
	clear(r.entries)
	r.entries = r.entries[:0]
	clear(r.byID)
	return n
}
