package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobbysignal/signalhub/internal/v1/config"
)

func newTestConfig() *config.Config {
	return &config.Config{
		RateLimitJoin:   "2-M",
		RateLimitChat:   "3-M",
		RateLimitSignal: "5-M",
	}
}

func TestNew_UsesMemoryStoreWhenRedisClientIsNil(t *testing.T) {
	rl, err := New(newTestConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, rl.store)
}

func TestNew_InvalidRateIsRejected(t *testing.T) {
	cfg := newTestConfig()
	cfg.RateLimitJoin = "not-a-rate"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestAllow_AllowsUpToConfiguredLimit(t *testing.T) {
	rl, err := New(newTestConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, OpCreateSession, "alice"))
	assert.True(t, rl.Allow(ctx, OpCreateSession, "alice"))
	assert.False(t, rl.Allow(ctx, OpCreateSession, "alice"))
}

func TestAllow_OperationsHaveIndependentBuckets(t *testing.T) {
	rl, err := New(newTestConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, OpJoinSession, "alice"))
	assert.True(t, rl.Allow(ctx, OpJoinSession, "alice"))
	assert.False(t, rl.Allow(ctx, OpJoinSession, "alice"))

	// send_message has its own bucket and its own, higher, limit
	assert.True(t, rl.Allow(ctx, OpSendMessage, "alice"))
	assert.True(t, rl.Allow(ctx, OpSendMessage, "alice"))
	assert.True(t, rl.Allow(ctx, OpSendMessage, "alice"))
	assert.False(t, rl.Allow(ctx, OpSendMessage, "alice"))
}

func TestAllow_UsersHaveIndependentBuckets(t *testing.T) {
	rl, err := New(newTestConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, OpSendSignal, "alice"))
	assert.True(t, rl.Allow(ctx, OpSendSignal, "bob"))
}

func TestAllow_UnknownOperationFallsBackToJoinLimiter(t *testing.T) {
	rl, err := New(newTestConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	const unknown Operation = "unknown"
	assert.True(t, rl.Allow(ctx, unknown, "carol"))
	assert.True(t, rl.Allow(ctx, unknown, "carol"))
	assert.False(t, rl.Allow(ctx, unknown, "carol"))
}
