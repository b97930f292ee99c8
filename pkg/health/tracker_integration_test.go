//go:build integration

package health

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_StateTransitions(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, "", logger)
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsHealthy {
		t.Error("Default state should be healthy")
	}

	for i := 0; i < UnhealthyThreshold; i++ {
		if err := tracker.RecordFailure(ctx, errors.New("timeout")); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsHealthy {
		t.Errorf("State with %d failures should be unhealthy", state.ConsecutiveFailures)
	}

	if err := tracker.RecordSuccess(ctx, 1); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsHealthy {
		t.Error("State should be healthy after a success")
	}
}

func TestTracker_Integration_SharedAcrossTrackers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	first := NewTracker(redisClient, "", logger)
	second := NewTracker(redisClient, "", logger)
	ctx := context.Background()

	if err := first.RecordFailure(ctx, errors.New("down")); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	state, err := second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", state.ConsecutiveFailures)
	}
}

func TestTracker_Integration_ConcurrentFailures(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, "", logger)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tracker.RecordFailure(ctx, errors.New("down")); err != nil {
				t.Errorf("RecordFailure() error = %v", err)
			}
		}()
	}
	wg.Wait()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ConsecutiveFailures != workers {
		t.Errorf("ConsecutiveFailures = %d, want %d", state.ConsecutiveFailures, workers)
	}
}

func TestTracker_Integration_SeparateKeys(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	prod := NewTracker(redisClient, "availability:health:prod", logger)
	staging := NewTracker(redisClient, "availability:health:staging", logger)
	ctx := context.Background()

	if err := staging.RecordFailure(ctx, errors.New("down")); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	state, err := prod.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("prod ConsecutiveFailures = %d, want 0", state.ConsecutiveFailures)
	}
}
