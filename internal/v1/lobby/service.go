package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lobbysignal/signalhub/internal/v1/bus"
	"github.com/lobbysignal/signalhub/internal/v1/logging"
	"github.com/lobbysignal/signalhub/internal/v1/metrics"
)

// Service is the thin RPC-surface adapter (C8): it translates the request
// types named in §6 into calls against the membership protocol, signal
// router, and broadcast fan-out, and layers in cross-instance publishing,
// metrics, and logging around them. The domain state itself (State) has no
// knowledge of any of that.
type Service struct {
	state *State
	bus   *bus.Service // optional; nil in single-instance mode
}

// NewService wires a Service around a freshly built State. bus may be nil.
func NewService(state *State, busService *bus.Service) *Service {
	return &Service{state: state, bus: busService}
}

// ServerInfo is the GetServerInfo response.
type ServerInfo struct {
	ServerName string
	MOTD       string
	IceServers []IceServerConfig
}

func (svc *Service) GetServerInfo(context.Context) ServerInfo {
	return ServerInfo{
		ServerName: svc.state.Name,
		MOTD:       svc.state.MOTD,
		IceServers: svc.state.IceServers,
	}
}

// ListSessions returns the same snapshot StreamSessionUpdates emits
// initially: every public, non-global session.
func (svc *Service) ListSessions(context.Context) []SessionInfo {
	return publicSessionSnapshot(svc.state)
}

// publicSessionSnapshot collects session references first, then samples
// each one's member count under its own lock — never holding any lock
// across the walk of the whole registry (§4.5).
func publicSessionSnapshot(st *State) []SessionInfo {
	sessions := st.registry.all()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		if s.ID == GlobalSessionID {
			continue
		}
		info := s.info()
		if !info.IsPublic {
			continue
		}
		out = append(out, info)
	}
	return out
}

// CreateSessionResult is the CreateSession response.
type CreateSessionResult struct {
	SessionID     string
	SessionName   string
	IsPublic      bool
	MaxMembers    int
	ExistingPeers []string
	Host          string
}

func (svc *Service) CreateSession(ctx context.Context, username string, isPublic bool, maxMembers int) (CreateSessionResult, error) {
	maxMembers = clampMaxMembers(maxMembers)

	code, err := svc.state.newSessionCode()
	if err != nil {
		logging.Error(ctx, "failed to allocate session code", zap.Error(err))
		return CreateSessionResult{}, errInternal
	}

	sess := newSession(code, code, isPublic, maxMembers)
	svc.state.registry.put(sess)
	metrics.ActiveSessions.Inc()

	if _, err := svc.state.joinInner(code, username); err != nil {
		// Creation just happened; joinInner failing here would mean the
		// session vanished between put and join, which should be
		// impossible under this service's own invariants.
		return CreateSessionResult{}, errInternal
	}

	if isPublic {
		svc.state.sessionListChanged.Publish(struct{}{})
		if svc.bus != nil {
			_ = svc.bus.PublishGlobal(ctx, "session-list-changed", nil, username)
		}
	}

	return CreateSessionResult{
		SessionID:     code,
		SessionName:   sess.Name,
		IsPublic:      isPublic,
		MaxMembers:    maxMembers,
		ExistingPeers: nil,
		Host:          username,
	}, nil
}

// JoinSessionResult is the JoinSession response.
type JoinSessionResult struct {
	ExistingPeers []string
	Host          string
}

func (svc *Service) JoinSession(ctx context.Context, sessionID, username string) (JoinSessionResult, error) {
	sess, ok := svc.state.registry.get(sessionID)
	if !ok {
		return JoinSessionResult{}, errNotFound
	}
	if sess.isFull() {
		return JoinSessionResult{}, errResourceExhausted
	}

	preexisting, err := svc.state.joinInner(sessionID, username)
	if err != nil {
		return JoinSessionResult{}, err
	}

	snap := sess.snapshot()
	existingPeers := make([]string, 0, len(snap.members))
	for _, m := range snap.members {
		if m != username {
			existingPeers = append(existingPeers, m)
		}
	}

	fanOutMemberJoined(preexisting, username)
	metrics.SignalsRouted.WithLabelValues(string(SignalMemberJoined), "ok").Add(float64(len(preexisting)))

	if sess.IsPublic {
		svc.state.sessionListChanged.Publish(struct{}{})
		if svc.bus != nil {
			_ = svc.bus.PublishGlobal(ctx, "session-list-changed", nil, username)
		}
	}

	return JoinSessionResult{ExistingPeers: existingPeers, Host: snap.host}, nil
}

func (svc *Service) LeaveSession(ctx context.Context, sessionID, username string) error {
	info := svc.state.completeLeave(sessionID, username)
	if info == nil {
		return nil
	}
	if sessionID != GlobalSessionID && svc.sessionGone(sessionID) {
		metrics.ActiveSessions.Dec()
	}
	if svc.bus != nil && info.IsPublic {
		_ = svc.bus.PublishGlobal(ctx, "session-list-changed", nil, username)
	}
	return nil
}

func (svc *Service) sessionGone(sessionID string) bool {
	_, ok := svc.state.registry.get(sessionID)
	return !ok
}

func (svc *Service) GetMembers(_ context.Context, sessionID string) ([]string, error) {
	sess, ok := svc.state.registry.get(sessionID)
	if !ok {
		return nil, errNotFound
	}
	return sess.snapshot().members, nil
}

func (svc *Service) SendMessage(ctx context.Context, sessionID, username, content string) error {
	sess, ok := svc.state.registry.get(sessionID)
	if !ok {
		return errNotFound
	}

	msg := ChatMessage{Username: username, Content: content, Timestamp: time.Now().Unix()}
	sess.Chat.Publish(msg)
	metrics.ChatMessagesPublished.WithLabelValues("ok").Inc()

	if svc.bus != nil {
		_ = svc.bus.Publish(ctx, sessionID, "chat", msg, username)
	}
	return nil
}

func (svc *Service) SendSignal(_ context.Context, sig Signal) error {
	err := svc.state.sendSignal(sig)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SignalsRouted.WithLabelValues(string(sig.Kind), status).Inc()
	return err
}
