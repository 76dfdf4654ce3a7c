package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7-alpine"

// SetupTestRedis starts a Redis container and returns it with its redis:// URL
func SetupTestRedis(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start redis container: %w", err)
	}

	redisURL, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, "", fmt.Errorf("failed to get redis connection string: %w", err)
	}

	return container, redisURL, nil
}

// RequireRedis starts a container for the test and terminates it on cleanup.
// Skipped under -short.
func RequireRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, url, err := SetupTestRedis(ctx)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return url
}
