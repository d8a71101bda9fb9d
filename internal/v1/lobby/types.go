// Package lobby implements the session and signaling fabric: the session
// registry, the membership protocol, the signal router, and the broadcast
// fan-out that together let clients discover each other through named
// sessions and exchange the SDP/ICE signals needed to bring up a
// peer-to-peer connection.
package lobby

import "k8s.io/utils/set"

// GlobalSessionID is the reserved id of the always-present pseudo-session
// that provides chat and presence for every connected user.
const GlobalSessionID = "__global__"

const (
	minMaxMembers = 2
	maxMaxMembers = 16
)

// SignalKind enumerates the kinds of values carried over a signal stream.
type SignalKind string

const (
	SignalSdpOffer      SignalKind = "SdpOffer"
	SignalSdpAnswer     SignalKind = "SdpAnswer"
	SignalIceCandidate  SignalKind = "IceCandidate"
	SignalMemberJoined  SignalKind = "MemberJoined"
	SignalMemberLeft    SignalKind = "MemberLeft"
	SignalHostChanged   SignalKind = "HostChanged"
)

// Signal is a control-plane message: WebRTC SDP, an ICE candidate, or a
// membership/host event. For the directed kinds (SdpOffer, SdpAnswer,
// IceCandidate) ToUser is set; for the broadcast kinds ToUser is empty and
// Payload carries the affected username (or new host).
type Signal struct {
	FromUser  string     `json:"fromUser"`
	ToUser    string     `json:"toUser,omitempty"`
	SessionID string     `json:"sessionId"`
	Kind      SignalKind `json:"kind"`
	Payload   string     `json:"payload"`
}

// ChatMessage is one message published to a session's chat broadcast.
type ChatMessage struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// IceServerConfig describes one STUN or TURN entry handed to clients.
// STUN entries have empty credentials; TURN entries must carry a name.
type IceServerConfig struct {
	URL        string `json:"url"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
	Name       string `json:"name,omitempty"`
}

// SessionInfo is the read-only snapshot of a session exposed to ListSessions
// and the session-updates stream.
type SessionInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	IsPublic    bool   `json:"isPublic"`
	MaxMembers  int    `json:"maxMembers"`
}

// clampMaxMembers enforces the [2,16] clamp for user sessions created via
// CreateSession. 0 is not "unlimited" here — that meaning only applies to
// __global__, which is built directly by NewState and never goes through
// this path — so a requested 0 clamps up to minMaxMembers, same as any
// other too-small request.
func clampMaxMembers(n int) int {
	if n < minMaxMembers {
		return minMaxMembers
	}
	if n > maxMaxMembers {
		return maxMaxMembers
	}
	return n
}

// memberSet is a thin alias so call sites don't need to repeat the generic
// instantiation; membership is tracked in a k8s.io/utils/set.Set[string].
type memberSet = set.Set[string]

func newMemberSet() memberSet {
	return set.New[string]()
}
