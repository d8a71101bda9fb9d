package lobby

import "sync"

// Session is a session record (C2): an immutable half readable without
// synchronization, and a mutable half (host, members, signalSenders)
// protected by one mutex per session so independent sessions never
// contend with each other.
type Session struct {
	// immutable half
	ID         string
	Name       string
	IsPublic   bool
	MaxMembers int
	Chat       *Broadcast[ChatMessage]

	// mutable half, guarded by mu
	mu            sync.Mutex
	host          string
	members       memberSet
	signalSenders map[string]*SignalPipe
}

// newSession allocates a session record. maxMembers is expected to already
// be clamped by the caller for user sessions; GlobalSessionID passes 0.
func newSession(id, name string, isPublic bool, maxMembers int) *Session {
	return &Session{
		ID:            id,
		Name:          name,
		IsPublic:      isPublic,
		MaxMembers:    maxMembers,
		Chat:          NewBroadcast[ChatMessage](256, "chat"),
		members:       newMemberSet(),
		signalSenders: make(map[string]*SignalPipe),
	}
}

// snapshot is a point-in-time copy of a session's mutable state, taken
// under its lock and safe to read afterward without synchronization.
type snapshot struct {
	host    string
	members []string
	senders map[string]*SignalPipe
}

// snapshot takes the session's inner lock, copies its mutable state, and
// releases the lock before returning — callers never hold a session lock
// across anything that could block.
func (s *Session) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	senders := make(map[string]*SignalPipe, len(s.signalSenders))
	for u, p := range s.signalSenders {
		senders[u] = p
	}
	return snapshot{
		host:    s.host,
		members: s.members.UnsortedList(),
		senders: senders,
	}
}

// memberCount returns the current member count under the session's lock,
// used by the session-updates snapshot builder which must sample each
// session independently rather than hold any lock across the whole build.
func (s *Session) memberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members.Len()
}

// isFull reports whether the session is at capacity (0 = unlimited).
func (s *Session) isFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MaxMembers == 0 {
		return false
	}
	return s.members.Len() >= s.MaxMembers
}

func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:          s.ID,
		Name:        s.Name,
		MemberCount: s.members.Len(),
		IsPublic:    s.IsPublic,
		MaxMembers:  s.MaxMembers,
	}
}
