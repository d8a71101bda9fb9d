package lobby

import "sync"

// Registry is the concurrent session-id → session record map (C1).
// sync.Map gives independent sessions lock-free reads without contending on
// a shared mutex; sessions are looked up, inserted, and removed without
// ever taking a registry-wide lock across a blocking operation.
type Registry struct {
	sessions sync.Map // string -> *Session

	// userIndex is user_session_index: the authoritative ownership record.
	// sync.Map.CompareAndDelete/CompareAndSwap (stdlib since Go 1.20) give
	// the conditional-remove primitive leaveInner's atomicity gate needs;
	// no third-party concurrent map in the example pack exposes a CAS-style
	// API, so this one piece is deliberately stdlib.
	userIndex sync.Map // username -> string (session id)

	// globalRefs tracks open global-messages-stream count per user, backing
	// invariant P5 (u in __global__.members iff globalRefs[u] >= 1).
	globalRefsMu sync.Mutex
	globalRefs   map[string]int
}

func newRegistry() *Registry {
	return &Registry{globalRefs: make(map[string]int)}
}

func (r *Registry) get(sessionID string) (*Session, bool) {
	v, ok := r.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (r *Registry) put(s *Session) {
	r.sessions.Store(s.ID, s)
}

func (r *Registry) delete(sessionID string) {
	r.sessions.Delete(sessionID)
}

// all returns a snapshot slice of every session currently registered.
// Collecting references first (rather than sampling member counts while
// iterating) is what lets StreamSessionUpdates build a snapshot without
// holding any per-session lock across the whole walk.
func (r *Registry) all() []*Session {
	var out []*Session
	r.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	return out
}

// currentSession returns the session a user is presently indexed under, if
// any.
func (r *Registry) currentSession(username string) (string, bool) {
	v, ok := r.userIndex.Load(username)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// setSession unconditionally upserts the user's session, used by joinInner
// step 4.
func (r *Registry) setSession(username, sessionID string) {
	r.userIndex.Store(username, sessionID)
}

// compareAndRemoveSession is leaveInner's atomicity gate: remove the
// user's index entry only if it still equals sessionID. Returns false
// (no-op) if the entry was already changed or removed by a racing call.
func (r *Registry) compareAndRemoveSession(username, sessionID string) bool {
	return r.userIndex.CompareAndDelete(username, sessionID)
}

// incGlobalRef atomically increments the global-stream ref count for a user
// and reports whether this was the 0→1 transition.
func (r *Registry) incGlobalRef(username string) (becameActive bool) {
	r.globalRefsMu.Lock()
	defer r.globalRefsMu.Unlock()
	r.globalRefs[username]++
	return r.globalRefs[username] == 1
}

// decGlobalRef atomically decrements the global-stream ref count for a user
// and reports whether this was the 1→0 transition.
func (r *Registry) decGlobalRef(username string) (becameInactive bool) {
	r.globalRefsMu.Lock()
	defer r.globalRefsMu.Unlock()
	n := r.globalRefs[username] - 1
	if n <= 0 {
		delete(r.globalRefs, username)
		return true
	}
	r.globalRefs[username] = n
	return false
}
