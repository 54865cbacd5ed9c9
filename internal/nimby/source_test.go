package nimby

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("CSV directory", func(t *testing.T) {
		dir := t.TempDir()
		writeCSVExport(t, dir, true)

		snap, err := LoadSnapshot(ctx, dir, true)
		require.NoError(t, err)
		assert.Len(t, snap.Stations, 2)
		assert.Len(t, snap.Lines, 1)
	})

	t.Run("SQLite database", func(t *testing.T) {
		path := writeExport(t, exportSchema,
			`INSERT INTO stations VALUES ('s1', 'Central', 13.0, 52.0)`,
			`INSERT INTO line_stops VALUES ('L1', 0, 's1', NULL, NULL, NULL)`,
		)

		snap, err := LoadSnapshot(ctx, path, false)
		require.NoError(t, err)
		assert.Len(t, snap.Stations, 1)
		assert.Nil(t, snap.Lines)
		assert.Len(t, snap.StopsByLine["L1"], 1)
	})

	t.Run("SQLite database missing tables", func(t *testing.T) {
		path := writeExport(t, `CREATE TABLE stations (station_id TEXT, name TEXT, lon REAL, lat REAL);`)

		_, err := LoadSnapshot(ctx, path, true)
		assert.ErrorIs(t, err, ErrMissingTables)
	})

	t.Run("Missing path", func(t *testing.T) {
		_, err := LoadSnapshot(ctx, filepath.Join(t.TempDir(), "nope.db"), false)
		assert.Error(t, err)
	})
}
