// Package storage keeps uploaded and derived files in a flat upload directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// maxCandidates bounds the collision search.
const maxCandidates = 10000

// NameTaken reports whether a storage name is already recorded elsewhere, typically in
// the data_files table.
type NameTaken func(ctx context.Context, name string) (bool, error)

// Store reads and writes files inside a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the directory if needed and returns a Store rooted at it.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir, logger: logger.Named("storage")}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path joins name to the root directory. name must be a flat file name.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid storage name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether a file with this name is present.
func (s *Store) Exists(name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %q: %w", name, err)
}

// UniqueName returns name, or the first "base (n).ext" variant, that is free both on disk
// and according to taken. The check is best effort: a concurrent writer may still claim
// the name before it is written.
func (s *Store) UniqueName(ctx context.Context, name string, taken NameTaken) (string, error) {
	for n := 0; n < maxCandidates; n++ {
		candidate := CandidateName(name, n)

		onDisk, err := s.Exists(candidate)
		if err != nil {
			return "", err
		}
		if onDisk {
			continue
		}
		if taken != nil {
			inUse, err := taken(ctx, candidate)
			if err != nil {
				return "", err
			}
			if inUse {
				continue
			}
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no free storage name for %q after %d attempts", name, maxCandidates)
}

// Write stores r under name and returns the number of bytes written. It fails if the
// file already exists. A partially written file is removed.
func (s *Store) Write(name string, r io.Reader) (int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %q: %w", name, err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write %q: %w", name, err)
	}

	s.logger.Debug("Stored file", zap.String("name", name), zap.Int64("bytes", n))
	return n, nil
}

// Open opens a stored file for reading.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", name, err)
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %q: %w", name, err)
	}
	s.logger.Debug("Removed file", zap.String("name", name))
	return nil
}
