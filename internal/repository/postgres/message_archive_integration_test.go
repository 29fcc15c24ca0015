//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chatapp/internal/config"
	"chatapp/internal/domain"
	"chatapp/internal/repository/postgres"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its connection URL
func setupPostgres(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "chat",
			"POSTGRES_PASSWORD": "chat",
			"POSTGRES_DB":       "chat",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://chat:chat@%s:%s/chat?sslmode=disable", host, port.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return url, cleanup
}

func TestMessageArchive_Postgres(t *testing.T) {
	url, cleanup := setupPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := config.NewPostgresConnection(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	archive := postgres.NewMessageArchive(db)
	require.NoError(t, archive.EnsureSchema(ctx))

	t.Run("schema_creation_is_idempotent", func(t *testing.T) {
		require.NoError(t, archive.EnsureSchema(ctx))
	})

	t.Run("insert_and_reinsert", func(t *testing.T) {
		msg := domain.Message{
			ID:        uuid.NewString(),
			Username:  "alice",
			Body:      "hello",
			Timestamp: time.Now().UTC(),
			IsGuest:   true,
		}

		require.NoError(t, archive.Insert(ctx, "general", msg))
		require.NoError(t, archive.Insert(ctx, "general", msg))

		var count int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages WHERE id = $1`, msg.ID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("run_archives_recorded_messages", func(t *testing.T) {
		runCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- archive.Run(runCtx)
		}()

		id := uuid.NewString()
		archive.Record("general", domain.NewMessage{Message: domain.Message{
			ID:        id,
			Username:  "bob",
			Body:      "queued",
			Timestamp: time.Now().UTC(),
		}})

		require.Eventually(t, func() bool {
			var body string
			err := db.QueryRowContext(ctx, `SELECT body FROM chat_messages WHERE id = $1`, id).Scan(&body)
			return err == nil && body == "queued"
		}, 10*time.Second, 100*time.Millisecond)

		stop()
		<-done
	})
}
