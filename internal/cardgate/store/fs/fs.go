// Package fs provides the file-backed LineStorage used in production:
// one record per line in a plain text file on local flash.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Storage struct {
	path string
}

// New validates that the file's parent directory exists (creating it if
// needed) and that the file, if present, is readable.  A missing file is
// not an error; it appears on the first write.
func New(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("records path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir records dir: %w", err)
	}
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat records file: %w", err)
	}
	return &Storage{path: path}, nil
}

func (s *Storage) ReadAll(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return strings.Split(string(data), "\n"), nil
}

func (s *Storage) WriteAll(_ context.Context, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *Storage) Append(_ context.Context, line string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	return nil
}

// Path returns the backing file path.  The records watcher needs it to
// register its fsnotify watch.
func (s *Storage) Path() string { return s.path }
