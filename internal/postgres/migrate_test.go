package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/wedding?sslmode=disable",
		MigrateURL("postgres://u:p@localhost:5432/wedding?sslmode=disable"))
	assert.Equal(t, "pgx5://db/wedding", MigrateURL("postgresql://db/wedding"))
	assert.Equal(t, "pgx5://db/wedding", MigrateURL("pgx5://db/wedding"))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
