package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File stores the text in a plain file. Writes go to a temporary file in
// the same directory that is then renamed over the target.
type File struct {
	Path string
}

// ReadText reads the file.
func (f File) ReadText(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, f.Path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// WriteText replaces the file contents unless they already equal text.
func (f File) WriteText(_ context.Context, text string) error {
	if old, err := os.ReadFile(f.Path); err == nil && Digest(string(old)) == Digest(text) {
		return nil
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.Path, err)
	}
	return nil
}
