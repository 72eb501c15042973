// SPDX-License-Identifier: MPL-2.0

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"

	"github.com/h5pkit/h5pkit/pkg/h5p"

	"golang.org/x/sync/errgroup"
)

// DefaultCopyConcurrency bounds parallel file copies in CopyContentFromDirectory.
const DefaultCopyConcurrency = 4

type (
	// Manager creates and maintains content objects in Storage.
	Manager struct {
		storage     Storage
		logger      *slog.Logger
		concurrency int
	}

	// Option configures a Manager.
	Option func(*Manager)

	// CopyResult describes content created by CopyContentFromDirectory.
	CopyResult struct {
		ID         h5p.ContentID
		Metadata   *h5p.ContentMetadata
		Parameters json.RawMessage
		// Files are the copied content-relative file paths.
		Files []string
	}
)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithCopyConcurrency bounds the number of files copied in parallel.
func WithCopyConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New creates a Manager over storage.
func New(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:     storage,
		logger:      slog.New(slog.DiscardHandler),
		concurrency: DefaultCopyConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOrUpdateContent stores metadata and parameters. An empty id creates
// new content; the id in use is returned either way.
func (m *Manager) CreateOrUpdateContent(ctx context.Context, meta *h5p.ContentMetadata, params json.RawMessage, user h5p.User, id h5p.ContentID) (h5p.ContentID, error) {
	newID, err := m.storage.CreateContent(ctx, meta, params, user, id)
	if err != nil {
		return "", fmt.Errorf("failed to save content: %w", err)
	}
	m.logger.Debug("content saved", "id", newID, "title", meta.Title, "user", user.ID())
	return newID, nil
}

// AddContentFile stores r as file of content id. Concurrent writes to the same
// file are not coordinated; the last one wins.
func (m *Manager) AddContentFile(ctx context.Context, id h5p.ContentID, file string, r io.Reader, user h5p.User) error {
	return m.storage.AddContentFile(ctx, id, file, r, user)
}

// CopyContentFromDirectory creates content from a package directory: h5p.json
// at the root and content/content.json plus files below content/. When any
// file fails to copy the new content is deleted again and the copy error is
// returned.
func (m *Manager) CopyContentFromDirectory(ctx context.Context, files fs.FS, user h5p.User, id h5p.ContentID) (*CopyResult, error) {
	meta, params, err := ReadPackageContent(files)
	if err != nil {
		return nil, err
	}

	newID, err := m.CreateOrUpdateContent(ctx, meta, params, user, id)
	if err != nil {
		return nil, err
	}

	contentFiles, err := ListPackageContentFiles(files)
	if err == nil {
		err = m.copyFiles(ctx, files, contentFiles, newID, user)
	}
	if err != nil {
		if deleteErr := m.storage.DeleteContent(context.WithoutCancel(ctx), newID, user); deleteErr != nil {
			m.logger.Warn("failed to remove content after failed copy", "id", newID, "error", deleteErr)
		}
		return nil, fmt.Errorf("failed to copy content files: %w", err)
	}

	return &CopyResult{ID: newID, Metadata: meta, Parameters: params, Files: contentFiles}, nil
}

func (m *Manager) copyFiles(ctx context.Context, files fs.FS, contentFiles []string, id h5p.ContentID, user h5p.User) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, file := range contentFiles {
		g.Go(func() (err error) {
			f, err := files.Open(path.Join(h5p.ContentDir, file))
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			return m.storage.AddContentFile(gctx, id, file, f, user)
		})
	}
	return g.Wait()
}

// DeleteContent removes content id with all of its files.
func (m *Manager) DeleteContent(ctx context.Context, id h5p.ContentID, user h5p.User) error {
	return m.storage.DeleteContent(ctx, id, user)
}

// DeleteContentFile removes one file of content id.
func (m *Manager) DeleteContentFile(ctx context.Context, id h5p.ContentID, file string, user h5p.User) error {
	return m.storage.DeleteContentFile(ctx, id, file, user)
}

// ContentExists reports whether content id exists.
func (m *Manager) ContentExists(ctx context.Context, id h5p.ContentID) (bool, error) {
	return m.storage.ContentExists(ctx, id)
}

// ContentFileExists reports whether file exists in content id.
func (m *Manager) ContentFileExists(ctx context.Context, id h5p.ContentID, file string) (bool, error) {
	return m.storage.ContentFileExists(ctx, id, file)
}

// ListContentFiles returns the files of content id.
func (m *Manager) ListContentFiles(ctx context.Context, id h5p.ContentID, user h5p.User) ([]string, error) {
	return m.storage.ListContentFiles(ctx, id, user)
}

// GetContentFileStream opens a file of content id.
func (m *Manager) GetContentFileStream(ctx context.Context, id h5p.ContentID, file string, user h5p.User) (io.ReadCloser, error) {
	return m.storage.GetContentFileStream(ctx, id, file, user)
}

// LoadMetadata returns the h5p.json of content id.
func (m *Manager) LoadMetadata(ctx context.Context, id h5p.ContentID, user h5p.User) (*h5p.ContentMetadata, error) {
	return m.storage.GetMetadata(ctx, id, user)
}

// LoadContent returns the parameters of content id.
func (m *Manager) LoadContent(ctx context.Context, id h5p.ContentID, user h5p.User) (json.RawMessage, error) {
	return m.storage.GetParameters(ctx, id, user)
}

// ListContent returns the ids of all content visible to user.
func (m *Manager) ListContent(ctx context.Context, user h5p.User) ([]h5p.ContentID, error) {
	return m.storage.ListContent(ctx, user)
}

// GetUserPermissions returns what user may do with content id.
func (m *Manager) GetUserPermissions(ctx context.Context, id h5p.ContentID, user h5p.User) ([]h5p.Permission, error) {
	return m.storage.GetUserPermissions(ctx, id, user)
}

// ReadPackageContent reads h5p.json and content/content.json from a package
// directory.
func ReadPackageContent(files fs.FS) (*h5p.ContentMetadata, json.RawMessage, error) {
	manifest, err := fs.ReadFile(files, h5p.PackageManifestFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &h5p.MissingManifestError{File: h5p.PackageManifestFile}
		}
		return nil, nil, err
	}
	meta, err := h5p.ParseContentMetadata(manifest, h5p.PackageManifestFile)
	if err != nil {
		return nil, nil, err
	}

	paramsPath := path.Join(h5p.ContentDir, h5p.ContentParametersFile)
	params, err := fs.ReadFile(files, paramsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &h5p.MissingManifestError{File: paramsPath}
		}
		return nil, nil, err
	}
	if err := h5p.ValidJSON(params); err != nil {
		return nil, nil, &h5p.MalformedManifestError{File: paramsPath, Err: err}
	}
	return meta, params, nil
}

// ListPackageContentFiles returns every file below content/ except
// content.json, relative to content/.
func ListPackageContentFiles(files fs.FS) ([]string, error) {
	var out []string
	err := fs.WalkDir(files, h5p.ContentDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel := p[len(h5p.ContentDir)+1:]
		if rel != h5p.ContentParametersFile {
			out = append(out, rel)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return out, err
}
