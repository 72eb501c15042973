// SPDX-License-Identifier: MPL-2.0

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var _ content.TemporaryStorage = (*TemporaryStore)(nil)

// ErrTemporaryFileNotFound is returned for unknown or foreign temporary files.
var ErrTemporaryFileNotFound = errors.New("temporary file not found")

// TemporaryStore keeps temporary files in one directory per user. A file's
// modification time holds its expiry.
type TemporaryStore struct {
	fs   afero.Fs
	root string
}

// NewTemporaryStore creates a TemporaryStore rooted at root.
func NewTemporaryStore(fsys afero.Fs, root string) (*TemporaryStore, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temporary directory %s: %w", root, err)
	}
	return &TemporaryStore{fs: fsys, root: root}, nil
}

func (s *TemporaryStore) path(name string, user h5p.User) (string, error) {
	userDir, err := cleanRelative(user.ID())
	if err != nil || strings.Contains(userDir, "/") {
		return "", fmt.Errorf("%w: user id %q", ErrInvalidPath, user.ID())
	}
	rel, err := cleanRelative(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, userDir, filepath.FromSlash(rel)), nil
}

// SaveFile implements content.TemporaryStorage. A short random suffix keeps
// uploads with equal names apart: "images/earth.jpg" becomes
// "images/earth-1a2b3c4d.jpg".
func (s *TemporaryStore) SaveFile(_ context.Context, name string, r io.Reader, user h5p.User, expiresAt time.Time) (string, error) {
	rel, err := cleanRelative(name)
	if err != nil {
		return "", err
	}
	ext := path.Ext(rel)
	stored := strings.TrimSuffix(rel, ext) + "-" + uuid.NewString()[:8] + ext

	p, err := s.path(stored, user)
	if err != nil {
		return "", err
	}
	if err := writeFile(s.fs, p, r); err != nil {
		return "", err
	}
	if err := s.fs.Chtimes(p, expiresAt, expiresAt); err != nil {
		return "", fmt.Errorf("failed to set expiry of %s: %w", stored, err)
	}
	return stored, nil
}

// DeleteFile implements content.TemporaryStorage.
func (s *TemporaryStore) DeleteFile(_ context.Context, name string, user h5p.User) error {
	p, err := s.path(name, user)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrTemporaryFileNotFound, name)
		}
		return err
	}
	return nil
}

// GetFileStream implements content.TemporaryStorage.
func (s *TemporaryStore) GetFileStream(_ context.Context, name string, user h5p.User) (io.ReadCloser, error) {
	p, err := s.path(name, user)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemporaryFileNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// FileExists implements content.TemporaryStorage.
func (s *TemporaryStore) FileExists(_ context.Context, name string, user h5p.User) (bool, error) {
	p, err := s.path(name, user)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// DeleteExpired implements content.TemporaryStorage.
func (s *TemporaryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []string
	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.IsDir() && info.ModTime().Before(now) {
			expired = append(expired, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i, p := range expired {
		if err := s.fs.Remove(p); err != nil {
			return i, fmt.Errorf("failed to remove expired file %s: %w", p, err)
		}
	}
	return len(expired), nil
}
