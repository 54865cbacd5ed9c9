package export

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertMissing(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assertMissing(t, StagingPath(path))
}

func TestWriteFileRenderFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := WriteFile(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("render failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assertMissing(t, StagingPath(path))
}

func TestCommitRemovesRemainingStagingFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "missing", "second.txt")

	require.NoError(t, StageFile(first, func(w io.Writer) error { return nil }))

	// the second staging file is never created, so its rename fails
	err := Commit(second, first)
	require.Error(t, err)
	assertMissing(t, StagingPath(first))
	assertMissing(t, first)
}

func TestDiscard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, StageFile(path, func(w io.Writer) error { return nil }))

	Discard(path)
	assertMissing(t, StagingPath(path))
	assertMissing(t, path)
}
