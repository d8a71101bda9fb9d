// Package bus is the optional cross-instance backplane: when more than one
// signalhub process runs behind a load balancer, it publishes events over
// Redis pub/sub, either on a per-session channel or on one instance-wide
// channel. The service publishes chat messages per session and
// session-list-changed instance-wide; the server relays only the
// instance-wide session-list-changed event back into local state, and chat
// published by another instance is not delivered to local subscribers. It
// holds no durable state — Redis carries only transient pub/sub traffic,
// never session data.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lobbysignal/signalhub/internal/v1/logging"
	"github.com/lobbysignal/signalhub/internal/v1/metrics"
)

// PubSubPayload is the envelope moved between signalhub instances.
type PubSubPayload struct {
	SessionID string          `json:"sessionId,omitempty"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	SenderID  string          `json:"senderId"` // lets a subscriber ignore its own echo
}

// Service handles all interaction with the Redis cluster.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService dials Redis and verifies connectivity immediately.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateHalfOpen:
				stateVal = 1
			case gobreaker.StateOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	logging.Info(context.Background(), "connected to redis pub/sub", zap.String("addr", addr))
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

func sessionChannel(sessionID string) string {
	return fmt.Sprintf("signalhub:session:%s", sessionID)
}

const globalChannel = "signalhub:global"

// Publish broadcasts an event to every other instance watching sessionID.
// Single-instance mode (s == nil or unconfigured) is a silent no-op.
func (s *Service) Publish(ctx context.Context, sessionID, event string, payload any, senderID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.publish(ctx, sessionChannel(sessionID), PubSubPayload{SessionID: sessionID}, event, payload, senderID)
}

// PublishGlobal broadcasts an event that is not tied to one session (such as
// session-list-changed) on the instance-wide channel to every other instance.
func (s *Service) PublishGlobal(ctx context.Context, event string, payload any, senderID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.publish(ctx, globalChannel, PubSubPayload{}, event, payload, senderID)
}

func (s *Service) publish(ctx context.Context, channel string, env PubSubPayload, event string, payload any, senderID string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		innerBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal inner payload: %w", err)
		}
		env.Event = event
		env.Payload = innerBytes
		env.SenderID = senderID

		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("marshal pubsub envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, channel, data).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			logging.Warn(ctx, "redis circuit breaker open: dropping publish", zap.String("channel", channel))
			return nil
		}
		logging.Error(ctx, "redis publish failed", zap.String("channel", channel), zap.Error(err))
		return err
	}
	return nil
}

// Subscribe starts a background goroutine relaying messages from other
// instances for one session. handler runs for every valid message received.
func (s *Service) Subscribe(ctx context.Context, sessionID string, wg *sync.WaitGroup, handler func(PubSubPayload)) {
	if s == nil || s.client == nil {
		return
	}
	s.subscribe(ctx, sessionChannel(sessionID), wg, handler)
}

// SubscribeGlobal starts a background goroutine relaying events published on
// the instance-wide channel by other instances.
func (s *Service) SubscribeGlobal(ctx context.Context, wg *sync.WaitGroup, handler func(PubSubPayload)) {
	if s == nil || s.client == nil {
		return
	}
	s.subscribe(ctx, globalChannel, wg, handler)
}

func (s *Service) subscribe(ctx context.Context, channel string, wg *sync.WaitGroup, handler func(PubSubPayload)) {
	pubsub := s.client.Subscribe(ctx, channel)

	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}

		logging.Info(ctx, "subscribed to redis channel", zap.String("channel", channel))
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					logging.Warn(ctx, "redis subscription channel closed", zap.String("channel", channel))
					return
				}
				var payload PubSubPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					logging.Error(ctx, "failed to unmarshal redis message", zap.Error(err))
					continue
				}
				handler(payload)
			}
		}
	}()
}

// Ping checks Redis connectivity. Single-instance mode is vacuously healthy.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		}
		return err
	}
	return nil
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// SetAdd adds a member to a Redis set.
func (s *Service) SetAdd(ctx context.Context, key, member string) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.SAdd(ctx, key, member).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			logging.Warn(ctx, "redis circuit breaker open: skipping SetAdd", zap.String("key", key))
			return nil
		}
		logging.Error(ctx, "redis SetAdd failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("add to set: %w", err)
	}
	return nil
}

// SetRem removes a member from a Redis set.
func (s *Service) SetRem(ctx context.Context, key, member string) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.SRem(ctx, key, member).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			logging.Warn(ctx, "redis circuit breaker open: skipping SetRem", zap.String("key", key))
			return nil
		}
		logging.Error(ctx, "redis SetRem failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("remove from set: %w", err)
	}
	return nil
}

// SetMembers retrieves all members of a Redis set.
func (s *Service) SetMembers(ctx context.Context, key string) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.SMembers(ctx, key).Result()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			logging.Warn(ctx, "redis circuit breaker open: returning empty set members", zap.String("key", key))
			return nil, nil
		}
		logging.Error(ctx, "redis SetMembers failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("get set members: %w", err)
	}
	return res.([]string), nil
}
