package transport

import (
	"context"

	"github.com/lobbysignal/signalhub/internal/v1/lobby"
)

func (c *Client) handleSubscribe(ctx context.Context, env envelope) {
	switch env.Stream {
	case streamMessages:
		c.subscribeMessages(env.SessionID)
	case streamSignals:
		c.subscribeSignals(env.SessionID)
	case streamSessions:
		c.subscribeSessionUpdates()
	case streamGlobalMembers:
		c.subscribeGlobalMembers()
	default:
		c.sendEnvelope(envelope{Type: typeErrorFrame, ID: env.ID, Error: "unknown stream kind"})
	}
}

func (c *Client) handleUnsubscribe(env envelope) {
	if cancel, ok := c.clearStream(env.Stream); ok {
		cancel()
	}
}

func (c *Client) subscribeMessages(sessionID string) {
	sub, err := c.state.OpenMessageStream(sessionID, c.username)
	if err != nil {
		c.sendEnvelope(envelope{Type: typeErrorFrame, Stream: streamMessages, SessionID: sessionID, Error: "session not found"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.setStream(streamMessages, cancel)

	go func() {
		defer c.state.CloseMessageStream(sessionID, c.username, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C():
				if !ok {
					return
				}
				c.sendEnvelope(envelope{Type: typeEvent, Stream: streamMessages, SessionID: sessionID, Data: mustMarshal(msg)})
			}
		}
	}()
}

func (c *Client) subscribeSignals(sessionID string) {
	pipe, err := c.state.OpenSignalStream(sessionID, c.username)
	if err != nil {
		c.sendEnvelope(envelope{Type: typeErrorFrame, Stream: streamSignals, SessionID: sessionID, Error: "session not found"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.setStream(streamSignals, cancel)

	go func() {
		defer c.state.CloseSignalStream(sessionID, c.username, pipe)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-pipe.C():
				if !ok {
					return
				}
				c.sendEnvelope(envelope{Type: typeEvent, Stream: streamSignals, SessionID: sessionID, Data: mustMarshal(sig)})
			}
		}
	}()
}

func (c *Client) subscribeSessionUpdates() {
	sub, initial := c.state.OpenSessionUpdatesStream()

	ctx, cancel := context.WithCancel(context.Background())
	c.setStream(streamSessions, cancel)

	c.sendEnvelope(envelope{Type: typeEvent, Stream: streamSessions, Data: mustMarshal(initial)})

	go func() {
		defer lobby.CloseSessionUpdatesStream(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				c.sendEnvelope(envelope{Type: typeEvent, Stream: streamSessions, Data: mustMarshal(struct{}{})})
			}
		}
	}()
}

func (c *Client) subscribeGlobalMembers() {
	sub, initial := c.state.OpenGlobalMembersStream()

	ctx, cancel := context.WithCancel(context.Background())
	c.setStream(streamGlobalMembers, cancel)

	c.sendEnvelope(envelope{Type: typeEvent, Stream: streamGlobalMembers, Data: mustMarshal(initial)})

	go func() {
		defer lobby.CloseGlobalMembersStream(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				c.sendEnvelope(envelope{Type: typeEvent, Stream: streamGlobalMembers, Data: mustMarshal(struct{}{})})
			}
		}
	}()
}
