package migration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	t.Run("creates an up/down pair", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := CreateMigration(dir, "add tariff schedules")
		require.NoError(t, err)

		assert.Contains(t, mf.UpPath, "add_tariff_schedules.up.sql")
		assert.Contains(t, mf.DownPath, "add_tariff_schedules.down.sql")
		assert.FileExists(t, mf.UpPath)
		assert.FileExists(t, mf.DownPath)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "add tariff schedules")
	})

	t.Run("sanitizes awkward names", func(t *testing.T) {
		assert.Equal(t, "add_subsidy_classes", sanitizeName("Add  Subsidy-Classes "))
		assert.Equal(t, "v2_plans", sanitizeName("V2 plans!"))
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("lists only up migrations by base name", func(t *testing.T) {
		dir := t.TempDir()
		_, err := CreateMigration(dir, "first")
		require.NoError(t, err)

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		require.Len(t, names, 1)
		assert.Contains(t, names[0], "_first")
	})

	t.Run("missing directory yields empty list", func(t *testing.T) {
		names, err := ListMigrations("/nonexistent/path")
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}
