package lobby

// LeaveInfo is what leaveInner hands back to a winning caller: the
// snapshots needed to fan out MemberLeft (and HostChanged, if a new host
// was chosen) after the session's inner lock has already been released.
type LeaveInfo struct {
	RemainingSenders map[string]*SignalPipe
	IsPublic         bool
	NewHost          *NewHostInfo
}

// NewHostInfo carries the new host's identity and a snapshot of every
// signal sender present at the moment the host changed, per §4.2 step 2(b).
type NewHostInfo struct {
	Username    string
	HostSenders map[string]*SignalPipe
}

func cloneSenders(m map[string]*SignalPipe) map[string]*SignalPipe {
	out := make(map[string]*SignalPipe, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// joinInner is the single source of truth for adding a user to a session.
// It never rejects a full session — the capacity check happens earlier in
// the JoinSession RPC handler, before joinInner is called. The first member
// of a user session (its creator) becomes its host; __global__ never has
// one. The returned map
// is a snapshot of signal_senders taken immediately before the insert, so
// the caller can fan out MemberJoined only to peers who already had a
// signal stream open at the moment of the join.
func (st *State) joinInner(sessionID, username string) (preexisting map[string]*SignalPipe, err error) {
	if prev, ok := st.registry.currentSession(username); ok && prev != sessionID {
		// Auto-leave: finish the previous session's leave (with its full
		// fan-out) before touching the target session. No two session
		// locks are ever held at once.
		st.completeLeave(prev, username)
	}

	sess, ok := st.registry.get(sessionID)
	if !ok {
		return nil, errNotFound
	}

	sess.mu.Lock()
	preexisting = cloneSenders(sess.signalSenders)
	sess.members.Insert(username)
	if sess.host == "" && sessionID != GlobalSessionID {
		sess.host = username
	}
	sess.mu.Unlock()

	st.registry.setSession(username, sessionID)
	return preexisting, nil
}

// leaveInner is the atomicity gate (§4.2). The conditional remove on the
// index guarantees that a racing duplicate leave (explicit LeaveSession vs.
// the stream-close implicit leave) produces exactly one winner and exactly
// one fan-out. Returns nil if this call lost the race (or the user was
// never recorded under sessionID) — the caller does nothing in that case.
func (st *State) leaveInner(sessionID, username string) *LeaveInfo {
	if !st.registry.compareAndRemoveSession(username, sessionID) {
		return nil
	}

	sess, ok := st.registry.get(sessionID)
	if !ok {
		// Session vanished between lookup and lock — idempotent no-op.
		return nil
	}

	sess.mu.Lock()
	wasHost := sess.host == username
	sess.members.Delete(username)
	delete(sess.signalSenders, username)
	remainingSenders := cloneSenders(sess.signalSenders)

	var newHost *NewHostInfo
	if wasHost && sess.members.Len() > 0 {
		newHostUser := sess.members.UnsortedList()[0]
		sess.host = newHostUser
		newHost = &NewHostInfo{
			Username:    newHostUser,
			HostSenders: cloneSenders(sess.signalSenders),
		}
	}

	isEmpty := sess.members.Len() == 0
	isPublic := sess.IsPublic
	sess.mu.Unlock()

	if isEmpty && sessionID != GlobalSessionID {
		st.registry.delete(sessionID)
	}

	return &LeaveInfo{
		RemainingSenders: remainingSenders,
		IsPublic:         isPublic,
		NewHost:          newHost,
	}
}

// completeLeave runs leaveInner and, if it won the race, performs the
// MemberLeft/HostChanged fan-out and the session-list-changed publish. This
// is the one place that implements "leaveInner's effects", shared by the
// explicit LeaveSession RPC, joinInner's auto-leave-previous step, and the
// implicit leave triggered by a signal stream closing — so those three
// callers can never produce divergent side effects for the same leave.
func (st *State) completeLeave(sessionID, username string) *LeaveInfo {
	info := st.leaveInner(sessionID, username)
	if info == nil {
		return nil
	}

	fanOutMemberLeft(info.RemainingSenders, username)
	if info.NewHost != nil {
		fanOutHostChanged(info.NewHost.HostSenders, info.NewHost.Username)
	}
	if info.IsPublic {
		st.sessionListChanged.Publish(struct{}{})
	}
	return info
}
