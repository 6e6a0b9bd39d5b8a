//go:build integration

// Package testinfra starts throwaway Postgres and Redis containers for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"mediashare/internal/config"
	"mediashare/internal/database"
)

// SkipIfNoDocker skips the test when no Docker daemon is reachable.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

func start(t *testing.T, req testcontainers.ContainerRequest) (string, testcontainers.Container) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	return host, container
}

// Postgres starts PostgreSQL, applies the schema migrations and returns a pool.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	SkipIfNoDocker(t)

	host, container := start(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "mediashare",
			"POSTGRES_PASSWORD": "mediashare",
			"POSTGRES_DB":       "mediashare",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})

	ctx := context.Background()
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	pool, err := database.NewPostgresPool(ctx, config.PostgresConfig{
		DSN:     fmt.Sprintf("postgres://mediashare:mediashare@%s:%s/mediashare?sslmode=disable", host, port.Port()),
		MaxOpen: 5,
	})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// Redis starts a Redis server and returns a connected client.
func Redis(t *testing.T) *redis.Client {
	t.Helper()
	SkipIfNoDocker(t)

	host, container := start(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	})

	port, err := container.MappedPort(context.Background(), "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
