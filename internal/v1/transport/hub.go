package transport

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lobbysignal/signalhub/internal/v1/lobby"
	"github.com/lobbysignal/signalhub/internal/v1/logging"
	"github.com/lobbysignal/signalhub/internal/v1/metrics"
	"github.com/lobbysignal/signalhub/internal/v1/ratelimit"
)

// AllowedOriginsFromEnv reads a comma-separated origin list from envVarName,
// falling back to defaults when unset.
func AllowedOriginsFromEnv(envVarName string, defaults []string) []string {
	raw := os.Getenv(envVarName)
	if raw == "" {
		return defaults
	}
	return strings.Split(raw, ",")
}

// Hub upgrades incoming HTTP requests to WebSocket connections and wires
// each one to the shared lobby state. It holds no per-session state of its
// own — all of that lives in lobby.State — so the Hub's only job is
// connection bookkeeping.
type Hub struct {
	state          *lobby.State
	svc            *lobby.Service
	rl             *ratelimit.RateLimiter
	allowedOrigins []string
}

// NewHub wires a Hub around the shared lobby state and service. rl may be
// nil, in which case requests are never rate-limited.
func NewHub(state *lobby.State, svc *lobby.Service, rl *ratelimit.RateLimiter, allowedOrigins []string) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	return &Hub{state: state, svc: svc, rl: rl, allowedOrigins: allowedOrigins}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// ServeWs upgrades the connection and starts the client's read/write pumps.
// Identity here is a plain, self-asserted username query parameter — this
// system has no authentication layer, so a username is only a label, never
// a credential.
func (h *Hub) ServeWs(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
		WriteBufferPool: &sync.Pool{
			New: func() any { return make([]byte, 4096) },
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade websocket connection")
		return
	}

	client := newClient(conn, username, h.svc, h.state, h.rl)
	metrics.IncConnection()

	go client.writePump()
	go client.readPump()
}
