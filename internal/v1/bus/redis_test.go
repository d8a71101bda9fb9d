package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := NewService(mr.Addr(), "")
	require.NoError(t, err)

	return svc, mr
}

func TestNewService(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	assert.NotNil(t, svc.Client())
	err := svc.Ping(context.Background())
	assert.NoError(t, err)
}

func TestPublish(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	sessionID := "session-1"

	sub := svc.Client().Subscribe(ctx, sessionChannel(sessionID))
	defer func() { _ = sub.Close() }()
	time.Sleep(50 * time.Millisecond)

	payload := map[string]string{"foo": "bar"}
	err := svc.Publish(ctx, sessionID, "test-event", payload, "sender-1")
	assert.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	assert.NoError(t, err)

	var envelope PubSubPayload
	err = json.Unmarshal([]byte(msg.Payload), &envelope)
	assert.NoError(t, err)

	assert.Equal(t, sessionID, envelope.SessionID)
	assert.Equal(t, "test-event", envelope.Event)
	assert.Equal(t, "sender-1", envelope.SenderID)
}

func TestPublishGlobal(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()

	sub := svc.Client().Subscribe(ctx, globalChannel)
	defer func() { _ = sub.Close() }()
	time.Sleep(50 * time.Millisecond)

	payload := map[string]string{"msg": "global"}
	err := svc.PublishGlobal(ctx, "member-joined", payload, "sender-1")
	assert.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	assert.NoError(t, err)

	var envelope PubSubPayload
	err = json.Unmarshal([]byte(msg.Payload), &envelope)
	assert.NoError(t, err)

	assert.Equal(t, "member-joined", envelope.Event)
	assert.Equal(t, "sender-1", envelope.SenderID)
	assert.Empty(t, envelope.SessionID)
}

func TestSubscribe(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID := "session-sub"
	wg := &sync.WaitGroup{}

	received := make(chan PubSubPayload, 1)
	handler := func(p PubSubPayload) {
		received <- p
	}

	svc.Subscribe(ctx, sessionID, wg, handler)

	time.Sleep(50 * time.Millisecond)

	payload := PubSubPayload{
		SessionID: sessionID,
		Event:     "hello",
		SenderID:  "sender-2",
	}
	bytes, _ := json.Marshal(payload)
	svc.Client().Publish(ctx, sessionChannel(sessionID), bytes)

	select {
	case p := <-received:
		assert.Equal(t, "hello", p.Event)
		assert.Equal(t, "sender-2", p.SenderID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	wg.Wait()
}

func TestSubscribeGlobal(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}

	received := make(chan PubSubPayload, 1)
	svc.SubscribeGlobal(ctx, wg, func(p PubSubPayload) { received <- p })

	time.Sleep(50 * time.Millisecond)

	payload := PubSubPayload{Event: "member-left", SenderID: "sender-3"}
	bytes, _ := json.Marshal(payload)
	svc.Client().Publish(ctx, globalChannel, bytes)

	select {
	case p := <-received:
		assert.Equal(t, "member-left", p.Event)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	wg.Wait()
}

func TestSetOperations(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	key := "test-set"

	err := svc.SetAdd(ctx, key, "m1")
	assert.NoError(t, err)
	err = svc.SetAdd(ctx, key, "m2")
	assert.NoError(t, err)

	members, err := svc.SetMembers(ctx, key)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2"}, members)

	err = svc.SetRem(ctx, key, "m1")
	assert.NoError(t, err)

	members, err = svc.SetMembers(ctx, key)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"m2"}, members)
}

func TestRedisFailure_Graceful(t *testing.T) {
	svc, mr := newTestService(t)

	mr.Close()

	ctx := context.Background()
	err := svc.Ping(ctx)
	assert.Error(t, err)
}

func TestSetOperations_ErrorPaths(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	key := "test-error-set"

	err := svc.SetAdd(ctx, key, "m1")
	assert.NoError(t, err)
	err = svc.SetAdd(ctx, key, "m2")
	assert.NoError(t, err)
	err = svc.SetAdd(ctx, key, "m3")
	assert.NoError(t, err)

	members, err := svc.SetMembers(ctx, key)
	assert.NoError(t, err)
	assert.Len(t, members, 3)

	err = svc.SetRem(ctx, key, "m1")
	assert.NoError(t, err)
	err = svc.SetRem(ctx, key, "m2")
	assert.NoError(t, err)

	members, err = svc.SetMembers(ctx, key)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"m3"}, members)

	mr.Close()

	err = svc.SetAdd(ctx, key, "m4")
	assert.Error(t, err)

	err = svc.SetRem(ctx, key, "m3")
	assert.Error(t, err)

	_, err = svc.SetMembers(ctx, key)
	assert.Error(t, err)
}

func TestPublish_CircuitBreakerOpen(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	mr.Close()

	for i := 0; i < 10; i++ {
		_ = svc.Publish(ctx, "session-1", "event", map[string]string{}, "sender")
	}

	// the breaker is open by now, so the publish is dropped without an error
	err := svc.Publish(ctx, "session-1", "event", map[string]string{}, "sender")
	assert.NoError(t, err)
}

func TestPublishGlobal_CircuitBreakerOpen(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	mr.Close()

	for i := 0; i < 10; i++ {
		_ = svc.PublishGlobal(ctx, "event", map[string]string{}, "sender")
	}

	// the breaker is open by now, so the publish is dropped without an error
	err := svc.PublishGlobal(ctx, "event", map[string]string{}, "sender")
	assert.NoError(t, err)
}
