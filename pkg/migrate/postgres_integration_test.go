package migrate_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/migrate"
)

// TestMigrationsAgainstPostgres applies the goose migrations to a real Postgres
// and rolls them back again.
func TestMigrationsAgainstPostgres(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "relief",
				"POSTGRES_PASSWORD": "relief",
				"POSTGRES_DB":       "relief",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	client, err := db.New(ctx, config.DBConfig{
		DSN:    fmt.Sprintf("postgres://relief:relief@%s:%s/relief?sslmode=disable", host, port.Port()),
		Driver: "postgres",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)

	require.NoError(t, migrate.Run(ctx, sqlDB, "migrations", "up"))
	require.NoError(t, migrate.VerifySchema(ctx, client.DB()))

	// available quantity can never exceed the total.
	org := client.Exec(ctx, `INSERT INTO organizations (name, lat, lng) VALUES ('org', 0, 0)`)
	require.NoError(t, org.Error)
	good := client.Exec(ctx, `INSERT INTO offers (organization_id, category, total_quantity, available_quantity, lat, lng)
SELECT id, 'water', 10, 10, 0, 0 FROM organizations LIMIT 1`)
	require.NoError(t, good.Error)
	bad := client.Exec(ctx, `INSERT INTO offers (organization_id, category, total_quantity, available_quantity, lat, lng)
SELECT id, 'water', 10, 11, 0, 0 FROM organizations LIMIT 1`)
	require.Error(t, bad.Error)

	require.NoError(t, migrate.Run(ctx, sqlDB, "migrations", "reset"))
	require.Error(t, migrate.VerifySchema(ctx, client.DB()))
}
