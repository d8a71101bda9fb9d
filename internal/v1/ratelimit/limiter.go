// Package ratelimit implements per-user rate limiting using Redis or local
// memory, protecting the session registry from a single noisy client.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/lobbysignal/signalhub/internal/v1/config"
	"github.com/lobbysignal/signalhub/internal/v1/logging"
	"github.com/lobbysignal/signalhub/internal/v1/metrics"
)

// Operation identifies which limiter bucket a caller falls under. Each
// operation is keyed by the caller's self-asserted username — there is no
// authenticated identity in this system, so a noisy or hostile client can
// only be slowed down per-name, not per-credential.
type Operation string

const (
	OpCreateSession Operation = "create_session"
	OpJoinSession   Operation = "join_session"
	OpSendMessage   Operation = "send_message"
	OpSendSignal    Operation = "send_signal"
)

// RateLimiter holds one limiter.Limiter per protected operation, all backed
// by a shared store (Redis when the bus is enabled, in-memory otherwise).
type RateLimiter struct {
	join    *limiter.Limiter
	chat    *limiter.Limiter
	signal  *limiter.Limiter
	session *limiter.Limiter
	store   limiter.Store
}

// New builds a RateLimiter from cfg's rate strings (e.g. "30-M"). redisClient
// may be nil, in which case an in-memory store is used.
func New(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	joinRate, err := limiter.NewRateFromFormatted(cfg.RateLimitJoin)
	if err != nil {
		return nil, fmt.Errorf("invalid join rate: %w", err)
	}
	chatRate, err := limiter.NewRateFromFormatted(cfg.RateLimitChat)
	if err != nil {
		return nil, fmt.Errorf("invalid chat rate: %w", err)
	}
	signalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitSignal)
	if err != nil {
		return nil, fmt.Errorf("invalid signal rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "signalhub:ratelimit:",
		})
		if err != nil {
			return nil, fmt.Errorf("create redis limiter store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using memory store")
	}

	return &RateLimiter{
		join:    limiter.New(store, joinRate),
		chat:    limiter.New(store, chatRate),
		signal:  limiter.New(store, signalRate),
		session: limiter.New(store, joinRate),
		store:   store,
	}, nil
}

func (rl *RateLimiter) limiterFor(op Operation) *limiter.Limiter {
	switch op {
	case OpCreateSession:
		return rl.session
	case OpJoinSession:
		return rl.join
	case OpSendMessage:
		return rl.chat
	case OpSendSignal:
		return rl.signal
	default:
		return rl.join
	}
}

// Allow reports whether the named user may proceed with op, incrementing
// that operation's bucket. A store failure fails open (logged, not denied) —
// availability of the signaling path matters more than strict enforcement
// during a Redis outage.
func (rl *RateLimiter) Allow(ctx context.Context, op Operation, username string) bool {
	lim := rl.limiterFor(op)
	result, err := lim.Get(ctx, string(op)+":"+username)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err), zap.String("op", string(op)))
		return true
	}
	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(string(op)).Inc()
		return false
	}
	metrics.RateLimitRequests.WithLabelValues(string(op)).Inc()
	return true
}
