// SPDX-License-Identifier: MPL-2.0

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const stagingPrefix = ".staging-"

var _ library.Storage = (*LibraryStore)(nil)

// LibraryStore keeps each library in a directory named after its hyphen form.
type LibraryStore struct {
	fs   afero.Fs
	root string
}

// NewLibraryStore creates a LibraryStore rooted at root.
func NewLibraryStore(fsys afero.Fs, root string) (*LibraryStore, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library directory %s: %w", root, err)
	}
	return &LibraryStore{fs: fsys, root: root}, nil
}

func (s *LibraryStore) dir(name h5p.LibraryName) string {
	return filepath.Join(s.root, name.DirName())
}

// LibraryExists implements library.Storage.
func (s *LibraryStore) LibraryExists(_ context.Context, name h5p.LibraryName) (bool, error) {
	return afero.Exists(s.fs, filepath.Join(s.dir(name), h5p.LibraryManifestFile))
}

// ListInstalled implements library.Storage.
func (s *LibraryStore) ListInstalled(_ context.Context, machineNames ...string) ([]h5p.LibraryName, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}
	var names []h5p.LibraryName
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name, err := h5p.ParseLibraryName(entry.Name())
		if err != nil {
			continue
		}
		if len(machineNames) > 0 && !slices.Contains(machineNames, name.MachineName) {
			continue
		}
		names = append(names, name)
	}
	slices.SortFunc(names, h5p.LibraryName.Compare)
	return names, nil
}

// LoadMetadata implements library.Storage.
func (s *LibraryStore) LoadMetadata(_ context.Context, name h5p.LibraryName) (*h5p.LibraryMetadata, error) {
	manifestPath := filepath.Join(s.dir(name), h5p.LibraryManifestFile)
	data, err := afero.ReadFile(s.fs, manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &h5p.LibraryNotFoundError{Library: name}
		}
		return nil, fmt.Errorf("failed to read %s: %w", manifestPath, err)
	}
	return h5p.ParseLibraryMetadata(data, name.DirName()+"/"+h5p.LibraryManifestFile)
}

// InstallLibrary implements library.Storage.
func (s *LibraryStore) InstallLibrary(ctx context.Context, meta *h5p.LibraryMetadata, files fs.FS) error {
	exists, err := s.LibraryExists(ctx, meta.Name())
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("library %s is already installed", meta.Ubername())
	}
	return copyFS(ctx, s.fs, s.dir(meta.Name()), files)
}

// UpdateLibrary implements library.Storage. The new files are staged in a
// sibling directory and swapped in by renaming, so the installed version is
// either fully replaced or left as it was.
func (s *LibraryStore) UpdateLibrary(ctx context.Context, meta *h5p.LibraryMetadata, files fs.FS) (err error) {
	name := meta.Name()
	exists, err := s.LibraryExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return &h5p.LibraryNotFoundError{Library: name}
	}

	id := uuid.NewString()
	staging := filepath.Join(s.root, stagingPrefix+id)
	defer func() {
		if removeErr := s.fs.RemoveAll(staging); removeErr != nil && err == nil {
			err = removeErr
		}
	}()
	if err = copyFS(ctx, s.fs, staging, files); err != nil {
		return fmt.Errorf("failed to stage library %s: %w", name.Ubername(), err)
	}

	dir := s.dir(name)
	previous := filepath.Join(s.root, stagingPrefix+"previous-"+id)
	if err = s.fs.Rename(dir, previous); err != nil {
		return fmt.Errorf("failed to move aside %s: %w", name.Ubername(), err)
	}
	if err = s.fs.Rename(staging, dir); err != nil {
		if restoreErr := s.fs.Rename(previous, dir); restoreErr != nil {
			return fmt.Errorf("failed to swap in %s: %w (restoring the previous version also failed: %w)", name.Ubername(), err, restoreErr)
		}
		return fmt.Errorf("failed to swap in %s: %w", name.Ubername(), err)
	}
	// A leftover dot directory is invisible to ListInstalled.
	_ = s.fs.RemoveAll(previous)
	return nil
}

// DeleteLibrary implements library.Storage.
func (s *LibraryStore) DeleteLibrary(ctx context.Context, name h5p.LibraryName) error {
	exists, err := s.LibraryExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return &h5p.LibraryNotFoundError{Library: name}
	}
	return s.fs.RemoveAll(s.dir(name))
}

// GetFileStream implements library.Storage.
func (s *LibraryStore) GetFileStream(ctx context.Context, name h5p.LibraryName, file string) (io.ReadCloser, error) {
	p, err := s.filePath(ctx, name, file)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("file %s of library %s: %w", file, name.Ubername(), err)
	}
	return f, nil
}

// ListFiles implements library.Storage.
func (s *LibraryStore) ListFiles(ctx context.Context, name h5p.LibraryName) ([]string, error) {
	exists, err := s.LibraryExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &h5p.LibraryNotFoundError{Library: name}
	}
	files, err := listFiles(s.fs, s.dir(name))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// FileExists implements library.Storage.
func (s *LibraryStore) FileExists(ctx context.Context, name h5p.LibraryName, file string) (bool, error) {
	p, err := s.filePath(ctx, name, file)
	if err != nil {
		if errors.Is(err, h5p.ErrLibraryNotFound) {
			return false, nil
		}
		return false, err
	}
	return afero.Exists(s.fs, p)
}

func (s *LibraryStore) filePath(ctx context.Context, name h5p.LibraryName, file string) (string, error) {
	rel, err := cleanRelative(file)
	if err != nil {
		return "", err
	}
	exists, err := s.LibraryExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &h5p.LibraryNotFoundError{Library: name}
	}
	return filepath.Join(s.dir(name), filepath.FromSlash(rel)), nil
}
