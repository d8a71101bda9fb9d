package transport

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lobbysignal/signalhub/internal/v1/lobby"
	"github.com/lobbysignal/signalhub/internal/v1/ratelimit"
)

// rateLimitedOps are the operations checked against the rate limiter before
// being dispatched; the rest (read-only lookups) are unlimited.
var rateLimitedOps = map[op]ratelimit.Operation{
	opCreateSession: ratelimit.OpCreateSession,
	opJoinSession:   ratelimit.OpJoinSession,
	opSendMessage:   ratelimit.OpSendMessage,
	opSendSignal:    ratelimit.OpSendSignal,
}

func (c *Client) handleRequest(ctx context.Context, env envelope) {
	if rlOp, limited := rateLimitedOps[env.Op]; limited && c.rl != nil {
		if !c.rl.Allow(ctx, rlOp, c.username) {
			c.sendEnvelope(envelope{Type: typeErrorFrame, ID: env.ID, Error: "rate limit exceeded"})
			return
		}
	}

	data, err := c.dispatch(ctx, env)
	if err != nil {
		c.sendEnvelope(envelope{Type: typeErrorFrame, ID: env.ID, Error: status.Convert(err).Message()})
		return
	}
	c.sendEnvelope(envelope{Type: typeResponse, ID: env.ID, Data: data})
}

func (c *Client) dispatch(ctx context.Context, env envelope) (json.RawMessage, error) {
	switch env.Op {
	case opGetServerInfo:
		return mustMarshal(c.svc.GetServerInfo(ctx)), nil

	case opListSessions:
		return mustMarshal(c.svc.ListSessions(ctx)), nil

	case opCreateSession:
		var req createSessionRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		result, err := c.svc.CreateSession(ctx, c.username, req.IsPublic, req.MaxMembers)
		if err != nil {
			return nil, err
		}
		return mustMarshal(result), nil

	case opJoinSession:
		var req joinSessionRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		result, err := c.svc.JoinSession(ctx, req.SessionID, c.username)
		if err != nil {
			return nil, err
		}
		return mustMarshal(result), nil

	case opLeaveSession:
		var req leaveSessionRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		if err := c.svc.LeaveSession(ctx, req.SessionID, c.username); err != nil {
			return nil, err
		}
		return mustMarshal(struct{}{}), nil

	case opGetMembers:
		var req getMembersRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		members, err := c.svc.GetMembers(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		return mustMarshal(members), nil

	case opSendMessage:
		var req sendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		if err := c.svc.SendMessage(ctx, req.SessionID, c.username, req.Content); err != nil {
			return nil, err
		}
		return mustMarshal(struct{}{}), nil

	case opSendSignal:
		var req sendSignalRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		sig := lobby.Signal{
			FromUser:  c.username,
			ToUser:    req.ToUser,
			SessionID: req.SessionID,
			Kind:      lobby.SignalKind(req.Kind),
			Payload:   req.Payload,
		}
		if err := c.svc.SendSignal(ctx, sig); err != nil {
			return nil, err
		}
		return mustMarshal(struct{}{}), nil

	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown operation %q", env.Op)
	}
}
