package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lobbysignal/signalhub/internal/v1/lobby"
	"github.com/lobbysignal/signalhub/internal/v1/logging"
	"github.com/lobbysignal/signalhub/internal/v1/metrics"
	"github.com/lobbysignal/signalhub/internal/v1/ratelimit"
)

// wsConnection is the subset of *websocket.Conn the client needs, mirroring
// the teacher's wsConnection interface so a mock can stand in for tests.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

const writeWait = 10 * time.Second

// Client owns one signaling connection: its socket, its self-asserted
// username, and the set of server-push streams it currently has open.
type Client struct {
	conn     wsConnection
	send     chan []byte
	username string

	svc   *lobby.Service
	state *lobby.State
	rl    *ratelimit.RateLimiter

	mu       sync.Mutex
	cancels  map[streamKind]context.CancelFunc
	closed   chan struct{}
	closeOne sync.Once
}

func newClient(conn wsConnection, username string, svc *lobby.Service, state *lobby.State, rl *ratelimit.RateLimiter) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		username: username,
		svc:      svc,
		state:    state,
		rl:       rl,
		cancels:  make(map[streamKind]context.CancelFunc),
		closed:   make(chan struct{}),
	}
}

// markClosed signals writePump and sendEnvelope that the connection is going
// away. Safe to call more than once.
func (c *Client) markClosed() {
	c.closeOne.Do(func() { close(c.closed) })
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.markClosed()
				return
			}
		case <-c.closed:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// sendEnvelope marshals and enqueues one frame. A full send buffer drops the
// frame rather than blocking the connection's write loop — a client that
// never drains its socket has already lost the session state race.
func (c *Client) sendEnvelope(env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outgoing envelope", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	default:
		logging.Warn(context.Background(), "client send buffer full, dropping frame", zap.String("username", c.username))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.closeAllStreams()
		c.markClosed()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "failed to unmarshal incoming envelope", zap.Error(err))
			continue
		}

		ctx := context.Background()
		switch env.Type {
		case typeRequest:
			c.handleRequest(ctx, env)
		case typeSubscribe:
			c.handleSubscribe(ctx, env)
		case typeUnsubscribe:
			c.handleUnsubscribe(env)
		default:
			logging.Warn(ctx, "unknown envelope type", zap.String("type", string(env.Type)))
		}
	}
}

func (c *Client) closeAllStreams() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = make(map[streamKind]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// setStream registers a cancel func for a stream kind, canceling any
// previous subscription of the same kind first (re-subscribing is a
// replace, not a stack).
func (c *Client) setStream(kind streamKind, cancel context.CancelFunc) {
	c.mu.Lock()
	prev, had := c.cancels[kind]
	c.cancels[kind] = cancel
	c.mu.Unlock()
	if had {
		prev()
	}
}

func (c *Client) clearStream(kind streamKind) (context.CancelFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.cancels[kind]
	if ok {
		delete(c.cancels, kind)
	}
	return cancel, ok
}
