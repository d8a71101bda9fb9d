package lobby

// fanOutMemberLeft sends a MemberLeft signal, payload = the departed
// username, to every sender in the pre-collected snapshot.
func fanOutMemberLeft(senders map[string]*SignalPipe, departed string) {
	sig := Signal{Kind: SignalMemberLeft, Payload: departed}
	for _, pipe := range senders {
		pipe.Send(sig)
	}
}

// fanOutHostChanged sends a HostChanged signal, payload = the new host's
// username, to every sender in the snapshot (including the new host).
func fanOutHostChanged(senders map[string]*SignalPipe, newHost string) {
	sig := Signal{Kind: SignalHostChanged, Payload: newHost}
	for _, pipe := range senders {
		pipe.Send(sig)
	}
}

// fanOutMemberJoined sends a MemberJoined signal, payload = the joiner's
// username, to every sender that was already registered before the join.
func fanOutMemberJoined(senders map[string]*SignalPipe, joined string) {
	sig := Signal{Kind: SignalMemberJoined, Payload: joined}
	for _, pipe := range senders {
		pipe.Send(sig)
	}
}

// sendSignal implements the point-to-point delivery pattern (§4.3): look up
// the target session, take a snapshot-clone of the recipient's sender
// handle under a brief lock, release the lock, then send. A missing sender
// or a missing session both silently succeed — a raced leave must not turn
// a late signal into an error.
func (st *State) sendSignal(sig Signal) error {
	if sig.Kind == "" {
		return errInvalidSignal
	}

	sess, ok := st.registry.get(sig.SessionID)
	if !ok {
		return nil
	}

	sess.mu.Lock()
	pipe, ok := sess.signalSenders[sig.ToUser]
	sess.mu.Unlock()

	if !ok {
		return nil
	}
	pipe.Send(sig)
	return nil
}
