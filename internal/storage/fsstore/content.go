// SPDX-License-Identifier: MPL-2.0

package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

const contentFilesDir = "files"

var _ content.Storage = (*ContentStore)(nil)

// ContentStore keeps each content object in a directory named after its id.
// New ids are ULIDs, so they sort by creation time and are never reused.
type ContentStore struct {
	fs    afero.Fs
	root  string
	newID func() string
}

// NewContentStore creates a ContentStore rooted at root.
func NewContentStore(fsys afero.Fs, root string) (*ContentStore, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content directory %s: %w", root, err)
	}
	return &ContentStore{
		fs:    fsys,
		root:  root,
		newID: func() string { return ulid.Make().String() },
	}, nil
}

func (s *ContentStore) dir(id h5p.ContentID) (string, error) {
	raw := string(id)
	if raw == "" || strings.ContainsAny(raw, `/\`) || raw == "." || raw == ".." || strings.HasPrefix(raw, ".") {
		return "", fmt.Errorf("%w: content id %q", ErrInvalidPath, raw)
	}
	return filepath.Join(s.root, raw), nil
}

func (s *ContentStore) existingDir(id h5p.ContentID) (string, error) {
	dir, err := s.dir(id)
	if err != nil {
		return "", err
	}
	exists, err := afero.Exists(s.fs, filepath.Join(dir, h5p.PackageManifestFile))
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &h5p.ContentNotFoundError{ID: id}
	}
	return dir, nil
}

func (s *ContentStore) filePath(id h5p.ContentID, file string) (string, error) {
	dir, err := s.existingDir(id)
	if err != nil {
		return "", err
	}
	rel, err := cleanRelative(file)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, contentFilesDir, filepath.FromSlash(rel)), nil
}

// CreateContent implements content.Storage.
func (s *ContentStore) CreateContent(_ context.Context, meta *h5p.ContentMetadata, params json.RawMessage, _ h5p.User, id h5p.ContentID) (h5p.ContentID, error) {
	if id == "" {
		id = h5p.ContentID(s.newID())
	}
	dir, err := s.dir(id)
	if err != nil {
		return "", err
	}
	if err := h5p.ValidJSON(params); err != nil {
		return "", fmt.Errorf("%w: %w", h5p.ErrInvalidParameters, err)
	}
	manifest, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(dir, h5p.ContentParametersFile), params, 0o644); err != nil {
		return "", fmt.Errorf("failed to write parameters of %s: %w", id, err)
	}
	// h5p.json last: its presence marks the content as existing.
	if err := afero.WriteFile(s.fs, filepath.Join(dir, h5p.PackageManifestFile), manifest, 0o644); err != nil {
		return "", fmt.Errorf("failed to write metadata of %s: %w", id, err)
	}
	return id, nil
}

// DeleteContent implements content.Storage.
func (s *ContentStore) DeleteContent(_ context.Context, id h5p.ContentID, _ h5p.User) error {
	dir, err := s.existingDir(id)
	if err != nil {
		return err
	}
	return s.fs.RemoveAll(dir)
}

// AddContentFile implements content.Storage.
func (s *ContentStore) AddContentFile(_ context.Context, id h5p.ContentID, file string, r io.Reader, _ h5p.User) error {
	p, err := s.filePath(id, file)
	if err != nil {
		return err
	}
	return writeFile(s.fs, p, r)
}

// DeleteContentFile implements content.Storage.
func (s *ContentStore) DeleteContentFile(_ context.Context, id h5p.ContentID, file string, _ h5p.User) error {
	p, err := s.filePath(id, file)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &h5p.ContentFileNotFoundError{ID: id, File: file}
		}
		return err
	}
	return nil
}

// GetContentFileStream implements content.Storage.
func (s *ContentStore) GetContentFileStream(_ context.Context, id h5p.ContentID, file string, _ h5p.User) (io.ReadCloser, error) {
	p, err := s.filePath(id, file)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &h5p.ContentFileNotFoundError{ID: id, File: file}
		}
		return nil, err
	}
	return f, nil
}

// ContentExists implements content.Storage.
func (s *ContentStore) ContentExists(_ context.Context, id h5p.ContentID) (bool, error) {
	_, err := s.existingDir(id)
	if errors.Is(err, h5p.ErrContentNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ContentFileExists implements content.Storage.
func (s *ContentStore) ContentFileExists(_ context.Context, id h5p.ContentID, file string) (bool, error) {
	p, err := s.filePath(id, file)
	if err != nil {
		if errors.Is(err, h5p.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// ListContentFiles implements content.Storage.
func (s *ContentStore) ListContentFiles(_ context.Context, id h5p.ContentID, _ h5p.User) ([]string, error) {
	dir, err := s.existingDir(id)
	if err != nil {
		return nil, err
	}
	filesDir := filepath.Join(dir, contentFilesDir)
	exists, err := afero.DirExists(s.fs, filesDir)
	if err != nil || !exists {
		return nil, err
	}
	files, err := listFiles(s.fs, filesDir)
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// GetMetadata implements content.Storage.
func (s *ContentStore) GetMetadata(_ context.Context, id h5p.ContentID, _ h5p.User) (*h5p.ContentMetadata, error) {
	dir, err := s.existingDir(id)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, h5p.PackageManifestFile))
	if err != nil {
		return nil, err
	}
	return h5p.ParseContentMetadata(data, string(id)+"/"+h5p.PackageManifestFile)
}

// GetParameters implements content.Storage.
func (s *ContentStore) GetParameters(_ context.Context, id h5p.ContentID, _ h5p.User) (json.RawMessage, error) {
	dir, err := s.existingDir(id)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, filepath.Join(dir, h5p.ContentParametersFile))
}

// ListContent implements content.Storage.
func (s *ContentStore) ListContent(_ context.Context, _ h5p.User) ([]h5p.ContentID, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, err
	}
	var ids []h5p.ContentID
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if ok, _ := afero.Exists(s.fs, filepath.Join(s.root, entry.Name(), h5p.PackageManifestFile)); ok {
			ids = append(ids, h5p.ContentID(entry.Name()))
		}
	}
	return ids, nil
}

// GetUserPermissions implements content.Storage. File storage has no access
// control of its own, so every user holds every permission.
func (s *ContentStore) GetUserPermissions(_ context.Context, id h5p.ContentID, _ h5p.User) ([]h5p.Permission, error) {
	if _, err := s.existingDir(id); err != nil {
		return nil, err
	}
	return []h5p.Permission{
		h5p.PermissionDelete,
		h5p.PermissionDownload,
		h5p.PermissionEdit,
		h5p.PermissionEmbed,
		h5p.PermissionView,
	}, nil
}
