package health

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoStore is returned when the tracker has no Redis client.
var ErrNoStore = errors.New("health tracker has no redis client")

// Prometheus metrics for endpoint health.
var (
	consecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "availability_endpoint_consecutive_failures",
		Help: "Consecutive failed availability loads since the last success",
	})

	unhealthyTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_endpoint_unhealthy_total",
		Help: "Total number of times the status endpoint became unhealthy",
	})
)

// Tracker records load outcomes in Redis. It implements loader.OutcomeRecorder.
type Tracker struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewTracker creates a new health tracker storing its state under key.
// An empty key selects DefaultKey.
func NewTracker(redisClient *redis.Client, key string, logger zerolog.Logger) *Tracker {
	if key == "" {
		key = DefaultKey
	}
	return &Tracker{
		redis:  redisClient,
		key:    key,
		logger: logger,
	}
}

// Key returns the Redis key holding the state.
func (t *Tracker) Key() string {
	return t.key
}

// GetState retrieves the current health state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	if t.redis == nil {
		return nil, ErrNoStore
	}

	fields, err := t.redis.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("get health state: %w", err)
	}

	if len(fields) == 0 {
		t.logger.Debug().Msg("No health state in Redis, returning default healthy state")
		return &State{IsHealthy: true}, nil
	}

	state := &State{LastError: fields[fieldLastError]}
	if state.ConsecutiveFailures, err = parseInt(fields, fieldConsecutiveFailures); err != nil {
		return nil, err
	}
	if state.LastAttempts, err = parseInt(fields, fieldLastAttempts); err != nil {
		return nil, err
	}
	if state.LastSuccess, err = parseTime(fields, fieldLastSuccess); err != nil {
		return nil, err
	}
	if state.LastFailure, err = parseTime(fields, fieldLastFailure); err != nil {
		return nil, err
	}
	state.UpdateHealth()

	return state, nil
}

// RecordSuccess resets the failure streak after a populated load.
func (t *Tracker) RecordSuccess(ctx context.Context, attempts int) error {
	if t.redis == nil {
		return ErrNoStore
	}

	err := t.redis.HSet(ctx, t.key,
		fieldConsecutiveFailures, 0,
		fieldLastSuccess, time.Now().UTC().Format(time.RFC3339Nano),
		fieldLastAttempts, attempts,
	).Err()
	if err != nil {
		return fmt.Errorf("store health state in redis: %w", err)
	}

	consecutiveFailures.Set(0)

	t.logger.Debug().
		Int("attempts", attempts).
		Msg("Status endpoint healthy")

	return nil
}

// RecordFailure extends the failure streak after a load ended in the error state.
func (t *Tracker) RecordFailure(ctx context.Context, cause error) error {
	if t.redis == nil {
		return ErrNoStore
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}

	// Store atomically so concurrent loaders never lose an increment.
	pipe := t.redis.TxPipeline()
	incr := pipe.HIncrBy(ctx, t.key, fieldConsecutiveFailures, 1)
	pipe.HSet(ctx, t.key,
		fieldLastError, message,
		fieldLastFailure, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store health state in redis: %w", err)
	}

	failures := int(incr.Val())
	consecutiveFailures.Set(float64(failures))

	logEvent := t.logger.Warn()
	if failures >= UnhealthyThreshold {
		logEvent = t.logger.Error()
	}
	logEvent.
		Int("consecutive_failures", failures).
		Str("last_error", message).
		Msg("Status endpoint failure recorded")

	if failures == UnhealthyThreshold {
		unhealthyTransitions.Inc()
	}

	return nil
}

// Reset deletes the stored health state.
func (t *Tracker) Reset(ctx context.Context) error {
	if t.redis == nil {
		return ErrNoStore
	}
	if err := t.redis.Del(ctx, t.key).Err(); err != nil {
		return fmt.Errorf("delete health state: %w", err)
	}
	consecutiveFailures.Set(0)
	return nil
}

func parseInt(fields map[string]string, name string) (int, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

func parseTime(fields map[string]string, name string) (time.Time, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	v, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
