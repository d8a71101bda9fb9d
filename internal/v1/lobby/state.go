package lobby

// State is the process-wide singleton (ServerState): immutable server
// identity plus the session registry and the two control-plane notifiers.
// All state here is in-memory and lost on restart by design — the server
// never persists anything.
type State struct {
	Name       string
	MOTD       string
	IceServers []IceServerConfig

	registry *Registry

	sessionListChanged   *Broadcast[struct{}]
	globalMembersChanged *Broadcast[struct{}]

	global *Session
}

// NewState builds a fresh server state with the __global__ session already
// present, matching invariant 3 ("__global__ always exists").
func NewState(name, motd string, iceServers []IceServerConfig) *State {
	global := newSession(GlobalSessionID, GlobalSessionID, false, 0)

	st := &State{
		Name:                 name,
		MOTD:                 motd,
		IceServers:           iceServers,
		registry:             newRegistry(),
		sessionListChanged:   NewBroadcast[struct{}](16, "session_list"),
		globalMembersChanged: NewBroadcast[struct{}](16, "global_members"),
		global:               global,
	}
	st.registry.put(global)
	return st
}

// NotifySessionListChanged republishes a session-list-changed wakeup to every
// local subscriber. Used by the bus layer to relay a change that originated
// on another instance into this process's own local Broadcast.
func (st *State) NotifySessionListChanged() {
	st.sessionListChanged.Publish(struct{}{})
}

// GlobalMemberCount reports the current number of distinct users present in
// __global__, for callers (metrics, tests) that need presence visibility
// without a full member list.
func (st *State) GlobalMemberCount() int {
	return st.global.memberCount()
}
