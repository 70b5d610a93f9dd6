package reconcile

import "sync"

// Registry keeps each account's previous trade snapshot between polls.
// It is the only shared mutable state in the reconciliation core: one
// instance is created at process start and handed to every streaming
// session.
//
// Locking is two-level so that two sessions on the same account
// serialize their read-swap sequence while sessions on different
// accounts never contend.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*registryEntry
}

type registryEntry struct {
	mu       sync.Mutex
	snapshot []Trade
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*registryEntry)}
}

func (r *Registry) entry(login int64) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[login]
	if !ok {
		e = &registryEntry{}
		r.entries[login] = e
	}
	return e
}

// Exchange atomically replaces the account's snapshot with curr and
// returns the snapshot it replaced. The first call for an account
// returns nil, which diffing treats as "emit nothing".
func (r *Registry) Exchange(login int64, curr []Trade) (prev []Trade) {
	e := r.entry(login)
	e.mu.Lock()
	defer e.mu.Unlock()
	prev = e.snapshot
	e.snapshot = curr
	return prev
}

// Snapshot returns a copy of the account's stored snapshot.
func (r *Registry) Snapshot(login int64) []Trade {
	e := r.entry(login)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, len(e.snapshot))
	copy(out, e.snapshot)
	return out
}
