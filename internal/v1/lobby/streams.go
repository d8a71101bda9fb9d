package lobby

import "github.com/lobbysignal/signalhub/internal/v1/metrics"

// OpenMessageStream subscribes to a session's chat broadcast (C6's
// StreamMessages). The caller is expected to range over the returned
// subscription's channel until its context is canceled, then call
// CloseMessageStream.
//
// Opening a messages stream against __global__ is also §4.5's global
// presence trigger: the first concurrent messages stream a user has open
// on __global__ (the 0→1 ref-count transition) joins them into it, so a
// user connected from several tabs still counts as present exactly once.
// Every other session ignores the ref count entirely — its membership is
// driven by JoinSession/LeaveSession alone.
func (st *State) OpenMessageStream(sessionID, username string) (*Subscription[ChatMessage], error) {
	sess, ok := st.registry.get(sessionID)
	if !ok {
		return nil, errNotFound
	}
	sub := sess.Chat.Subscribe()

	if sessionID == GlobalSessionID {
		if st.registry.incGlobalRef(username) {
			preexisting, err := st.joinInner(GlobalSessionID, username)
			if err == nil {
				fanOutMemberJoined(preexisting, username)
				st.globalMembersChanged.Publish(struct{}{})
			}
		}
	}

	metrics.StreamsActive.WithLabelValues("messages").Inc()
	return sub, nil
}

// CloseMessageStream tears down a message stream opened by OpenMessageStream.
// For __global__ this is the implicit-leave trigger, gated by the same ref
// count OpenMessageStream incremented: only the last concurrent global
// messages stream for a user actually removes them from __global__.members.
func (st *State) CloseMessageStream(sessionID, username string, sub *Subscription[ChatMessage]) {
	sub.Unsubscribe()
	if sessionID == GlobalSessionID {
		if st.registry.decGlobalRef(username) {
			st.completeLeave(GlobalSessionID, username)
			st.globalMembersChanged.Publish(struct{}{})
		}
	}
	metrics.StreamsActive.WithLabelValues("messages").Dec()
}

// OpenSignalStream registers username's signal delivery pipe in sessionID's
// signal_senders (StreamSignals). The pipe is logically unbounded, so the
// bridge task reading from it can fall behind without a signal ever being
// dropped.
func (st *State) OpenSignalStream(sessionID, username string) (*SignalPipe, error) {
	sess, ok := st.registry.get(sessionID)
	if !ok {
		return nil, errNotFound
	}

	pipe := NewSignalPipe()
	sess.mu.Lock()
	sess.signalSenders[username] = pipe
	sess.mu.Unlock()

	metrics.StreamsActive.WithLabelValues("signals").Inc()
	return pipe, nil
}

// CloseSignalStream tears down a signal stream. This is the implicit-leave
// trigger: a signal stream closing — whether the client disconnected or
// canceled deliberately — runs the exact same leave protocol completeLeave
// gives an explicit LeaveSession call, so a member can never be left
// registered in a session with no live signal pipe.
func (st *State) CloseSignalStream(sessionID, username string, pipe *SignalPipe) {
	st.completeLeave(sessionID, username)
	pipe.Close()
	metrics.StreamsActive.WithLabelValues("signals").Dec()
}

// OpenSessionUpdatesStream subscribes to session-list-changed and returns the
// initial snapshot of every public session. Subscribing before building the
// snapshot means a change published in between is still observed on the
// stream, even though it might also be reflected in the snapshot: the
// consumer is expected to treat every stream value as "refetch", not as a
// diff, so an extra wakeup is harmless.
func (st *State) OpenSessionUpdatesStream() (*Subscription[struct{}], []SessionInfo) {
	sub := st.sessionListChanged.Subscribe()
	initial := publicSessionSnapshot(st)
	metrics.StreamsActive.WithLabelValues("session_updates").Inc()
	return sub, initial
}

// CloseSessionUpdatesStream tears down a session-updates stream.
func CloseSessionUpdatesStream(sub *Subscription[struct{}]) {
	sub.Unsubscribe()
	metrics.StreamsActive.WithLabelValues("session_updates").Dec()
}

// OpenGlobalMembersStream subscribes to global-members-changed and returns
// the current snapshot of __global__'s members. It is purely a watch: unlike
// OpenMessageStream(__global__, ...), opening or closing this stream never
// joins or removes anyone from __global__ — presence is driven entirely by
// the messages stream, this one only observes it.
func (st *State) OpenGlobalMembersStream() (*Subscription[struct{}], []string) {
	sub := st.globalMembersChanged.Subscribe()
	initial := st.global.snapshot().members
	metrics.StreamsActive.WithLabelValues("global_members").Inc()
	return sub, initial
}

// CloseGlobalMembersStream tears down a global-members watch stream.
func CloseGlobalMembersStream(sub *Subscription[struct{}]) {
	sub.Unsubscribe()
	metrics.StreamsActive.WithLabelValues("global_members").Dec()
}
