// Package transport multiplexes the unary RPC surface (C8) and the four
// server-push stream kinds (C6) over a single WebSocket connection per
// client, the same one-connection-many-channels shape the teacher's
// session.Room/Client pair uses — generalized from its binary protobuf
// envelope to a JSON one, since this system has no protobuf schema to
// generate stubs from.
package transport

import "encoding/json"

// envelopeType distinguishes the six shapes of frame exchanged over the
// connection.
type envelopeType string

const (
	typeRequest      envelopeType = "request"
	typeResponse     envelopeType = "response"
	typeErrorFrame   envelopeType = "error"
	typeEvent        envelopeType = "event"
	typeSubscribe    envelopeType = "subscribe"
	typeUnsubscribe  envelopeType = "unsubscribe"
)

// op names the RPC surface (C8), used as the "op" field on a request frame.
type op string

const (
	opGetServerInfo op = "get_server_info"
	opListSessions  op = "list_sessions"
	opCreateSession op = "create_session"
	opJoinSession   op = "join_session"
	opLeaveSession  op = "leave_session"
	opGetMembers    op = "get_members"
	opSendMessage   op = "send_message"
	opSendSignal    op = "send_signal"
)

// streamKind names the four server-push stream kinds (C6), used as the
// "stream" field on subscribe/unsubscribe/event frames.
type streamKind string

const (
	streamMessages      streamKind = "messages"
	streamSignals       streamKind = "signals"
	streamSessions      streamKind = "sessions"
	streamGlobalMembers streamKind = "global_members"
)

// envelope is the single wire type for every frame in both directions.
//   - request:      ID, Op, Data (the operation's arguments)
//   - response:     ID, Data (the operation's result)
//   - error:        ID, Error
//   - subscribe:    Stream, SessionID (SessionID empty for stream kinds that
//     aren't per-session)
//   - unsubscribe:  Stream, SessionID
//   - event:        Stream, SessionID, Data (one pushed value)
type envelope struct {
	Type      envelopeType    `json:"type"`
	ID        string          `json:"id,omitempty"`
	Op        op              `json:"op,omitempty"`
	Stream    streamKind      `json:"stream,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// Request payload shapes, one per op.

type createSessionRequest struct {
	IsPublic   bool `json:"isPublic"`
	MaxMembers int  `json:"maxMembers"`
}

type joinSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type leaveSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type getMembersRequest struct {
	SessionID string `json:"sessionId"`
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

type sendSignalRequest struct {
	ToUser    string `json:"toUser"`
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload"`
}
