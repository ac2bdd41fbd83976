//go:build integration

package database_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/testhelpers"
)

// Test_Migrations_Idempotent verifies a second run against an up-to-date schema is a no-op.
func Test_Migrations_Idempotent(t *testing.T) {
	appDB := testhelpers.GetAppDB(t)

	require.NoError(t, database.RunMigrations(appDB.ConnStr, zap.NewNop()))
	require.NoError(t, database.RunMigrations(appDB.ConnStr, zap.NewNop()))
}
