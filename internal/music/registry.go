package music

import "sync"

// Registry is the only state shared between command handlers, the
// track-end callback and the idle reaper. Callers access a session by
// passing a closure that runs under the registry lock; the closure must
// be a short in-memory step and never perform network I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionQueue
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*SessionQueue)}
}

// Update runs fn on the guild's session, creating it first if absent.
func (r *Registry) Update(guildID string, fn func(q *SessionQueue)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.sessions[guildID]
	if !ok {
		q = NewSessionQueue()
		r.sessions[guildID] = q
	}
	fn(q)
}

// With runs fn only if the session exists and reports whether it did.
func (r *Registry) With(guildID string, fn func(q *SessionQueue)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.sessions[guildID]
	if !ok {
		return false
	}
	fn(q)
	return true
}

func (r *Registry) Exists(guildID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[guildID]
	return ok
}

func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}

func (r *Registry) GuildIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
