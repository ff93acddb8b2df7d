//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresInstance is the address and credentials of a throwaway server.
type PostgresInstance struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// StartPostgres launches a PostgreSQL 16 container for the duration of t.
// Tests using it require Docker and are gated behind the "integration" tag.
func StartPostgres(t *testing.T) PostgresInstance {
	t.Helper()
	ctx := context.Background()

	inst := PostgresInstance{Database: "keyqto_test", Username: "test", Password: "test"}
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     inst.Username,
			"POSTGRES_PASSWORD": inst.Password,
			"POSTGRES_DB":       inst.Database,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	inst.Host, err = container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	inst.Port = port.Int()
	return inst
}
