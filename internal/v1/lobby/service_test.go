package lobby

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(newTestState(), nil)
}

func TestGetServerInfo(t *testing.T) {
	st := NewState("my-server", "hello there", []IceServerConfig{{URL: "stun:stun.example.com"}})
	svc := NewService(st, nil)

	info := svc.GetServerInfo(context.Background())
	assert.Equal(t, "my-server", info.ServerName)
	assert.Equal(t, "hello there", info.MOTD)
	assert.Len(t, info.IceServers, 1)
}

func TestCreateSession_ReturnsClampedMaxMembersAndMakesCallerHost(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	result, err := svc.CreateSession(ctx, "alice", true, 100)
	require.NoError(t, err)

	assert.Equal(t, 16, result.MaxMembers) // clamped
	assert.Equal(t, "alice", result.Host)
	assert.Len(t, result.SessionID, 8)
	assert.Empty(t, result.ExistingPeers)

	members, err := svc.GetMembers(ctx, result.SessionID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice"}, members)
}

func TestCreateSession_ZeroMaxMembersClampsToMinimum(t *testing.T) {
	svc := newTestService()
	result, err := svc.CreateSession(context.Background(), "alice", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MaxMembers)
	assert.False(t, result.IsPublic)
}

func TestJoinSession_ReturnsExistingPeersAndHost(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "alice", true, 4)
	require.NoError(t, err)

	joined, err := svc.JoinSession(ctx, created.SessionID, "bob")
	require.NoError(t, err)

	assert.Equal(t, "alice", joined.Host)
	assert.ElementsMatch(t, []string{"alice"}, joined.ExistingPeers)
}

func TestJoinSession_UnknownSessionReturnsNotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.JoinSession(context.Background(), "nope", "alice")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestJoinSession_FullSessionReturnsResourceExhausted(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "alice", true, 2)
	require.NoError(t, err)

	_, err = svc.JoinSession(ctx, created.SessionID, "bob")
	require.NoError(t, err)

	_, err = svc.JoinSession(ctx, created.SessionID, "carol")
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestLeaveSession_MigratesHost(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "alice", true, 4)
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, created.SessionID, "bob")
	require.NoError(t, err)

	err = svc.LeaveSession(ctx, created.SessionID, "alice")
	require.NoError(t, err)

	members, err := svc.GetMembers(ctx, created.SessionID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob"}, members)

	sess, ok := svc.state.registry.get(created.SessionID)
	require.True(t, ok)
	assert.Equal(t, "bob", sess.snapshot().host)
}

func TestListSessions_OnlyShowsPublicSessions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "alice", true, 4)
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "bob", false, 4)
	require.NoError(t, err)

	list := svc.ListSessions(ctx)
	assert.Len(t, list, 1)
}

func TestSendMessage_UnknownSessionReturnsNotFound(t *testing.T) {
	svc := newTestService()
	err := svc.SendMessage(context.Background(), "missing", "alice", "hi")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSendMessage_PublishesToChatBroadcast(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "alice", true, 4)
	require.NoError(t, err)

	sub, err := svc.state.OpenMessageStream(created.SessionID, "alice")
	require.NoError(t, err)
	defer svc.state.CloseMessageStream(created.SessionID, "alice", sub)

	require.NoError(t, svc.SendMessage(ctx, created.SessionID, "alice", "hello"))

	msg := <-sub.C()
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "alice", msg.Username)
}

func TestSendSignal_EmptyKindIsInvalidArgument(t *testing.T) {
	svc := newTestService()
	err := svc.SendSignal(context.Background(), Signal{SessionID: "s1", ToUser: "bob"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSendSignal_DeliversToRegisteredSender(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "alice", true, 4)
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, created.SessionID, "bob")
	require.NoError(t, err)

	pipe, err := svc.state.OpenSignalStream(created.SessionID, "bob")
	require.NoError(t, err)
	defer svc.state.CloseSignalStream(created.SessionID, "bob", pipe)

	err = svc.SendSignal(ctx, Signal{
		FromUser:  "alice",
		ToUser:    "bob",
		SessionID: created.SessionID,
		Kind:      SignalSdpOffer,
		Payload:   "v=0...",
	})
	require.NoError(t, err)

	sig := <-pipe.C()
	assert.Equal(t, SignalSdpOffer, sig.Kind)
	assert.Equal(t, "v=0...", sig.Payload)
}

func TestSendSignal_MissingRecipientSilentlySucceeds(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "alice", true, 4)
	require.NoError(t, err)

	err = svc.SendSignal(ctx, Signal{
		FromUser:  "alice",
		ToUser:    "ghost",
		SessionID: created.SessionID,
		Kind:      SignalIceCandidate,
		Payload:   "candidate",
	})
	assert.NoError(t, err)
}
