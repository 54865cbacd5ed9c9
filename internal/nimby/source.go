package nimby

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/passbi/passbi_topology/internal/models"
)

// LoadSnapshot loads an export from path, picking the reader by its shape:
// a directory of CSV files, a zipped CSV export, or a SQLite database.
func LoadSnapshot(ctx context.Context, path string, extended bool) (models.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to open input: %w", err)
	}

	switch {
	case info.IsDir():
		return LoadCSVDir(path, extended)
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		return LoadCSVZip(path, extended)
	}

	src, err := OpenSQLite(path)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer src.Close()

	if err := src.ValidateSchema(ctx, extended); err != nil {
		return models.Snapshot{}, err
	}
	return src.Load(ctx, extended)
}
