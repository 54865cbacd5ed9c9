package export

import (
	"fmt"
	"io"
	"os"
)

// StagingPath returns the file an output is rendered into before it is
// moved to path
func StagingPath(path string) string {
	return path + ".tmp"
}

// StageFile renders into the staging file of path. The staging file is
// removed when render fails.
func StageFile(path string, render func(w io.Writer) error) error {
	tmp := StagingPath(path)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if err := render(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	return nil
}

// Commit moves the staged files of paths into place. When a rename fails the
// staging files not yet moved are removed.
func Commit(paths ...string) error {
	for i, path := range paths {
		if err := os.Rename(StagingPath(path), path); err != nil {
			Discard(paths[i:]...)
			return fmt.Errorf("failed to move %s into place: %w", path, err)
		}
	}
	return nil
}

// Discard removes the staged files of paths
func Discard(paths ...string) {
	for _, path := range paths {
		os.Remove(StagingPath(path))
	}
}

// WriteFile renders into a staging file and moves it to path once render
// succeeds. Nothing is left at either location on failure.
func WriteFile(path string, render func(w io.Writer) error) error {
	if err := StageFile(path, render); err != nil {
		return err
	}
	return Commit(path)
}
