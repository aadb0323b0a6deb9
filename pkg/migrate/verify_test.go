package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/relief-dispatch/pkg/db/dbtest"
	"github.com/angelmondragon/relief-dispatch/pkg/migrate"
)

func TestVerifySchemaPassesOnDispatchTables(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, migrate.VerifySchema(context.Background(), conn))
}

func TestVerifySchemaNamesMissingTables(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, conn.Exec("DROP TABLE blocked_routes").Error)

	err := migrate.VerifySchema(context.Background(), conn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked_routes")
}

func TestVerifySchemaRequiresConnection(t *testing.T) {
	require.Error(t, migrate.VerifySchema(context.Background(), nil))
}
