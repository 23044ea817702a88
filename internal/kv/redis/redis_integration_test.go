package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/kv/kvtest"
)

// TestRedisCompliance runs the driver compliance suite against a real
// Redis started via testcontainers. Gated behind
// SESSION_STORE_INTEGRATION so unit runs stay Docker-free.
func TestRedisCompliance(t *testing.T) {
	if os.Getenv("SESSION_STORE_INTEGRATION") == "" {
		t.Skip("set SESSION_STORE_INTEGRATION=1 to run Redis container tests")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	addr := fmt.Sprintf("%s:%s", host, port.Port())

	kvtest.Run(t, func(t *testing.T) kv.KV {
		s, err := New(ctx, Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
			OpTimeout:   2 * time.Second,
		})
		if err != nil {
			t.Fatalf("connect redis: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
