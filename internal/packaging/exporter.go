// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

type (
	// Exporter writes content and the libraries it needs as a package.
	Exporter struct {
		libraries *library.Manager
		contents  *content.Manager
		fs        afero.Fs
		logger    *slog.Logger
	}

	// ExporterOption configures an Exporter.
	ExporterOption func(*Exporter)
)

// WithExporterFs sets the filesystem ExportToFile writes to. The default is
// the OS filesystem.
func WithExporterFs(fsys afero.Fs) ExporterOption {
	return func(e *Exporter) {
		e.fs = fsys
	}
}

// WithExporterLogger sets the logger. The default discards everything.
func WithExporterLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// NewExporter creates an Exporter.
func NewExporter(libraries *library.Manager, contents *content.Manager, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		libraries: libraries,
		contents:  contents,
		fs:        afero.NewOsFs(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes content id as a package to w: h5p.json, content/content.json,
// every content file and every library the content needs.
func (e *Exporter) Export(ctx context.Context, id h5p.ContentID, user h5p.User, w io.Writer) (err error) {
	meta, err := e.contents.LoadMetadata(ctx, id, user)
	if err != nil {
		return err
	}
	params, err := e.contents.LoadContent(ctx, id, user)
	if err != nil {
		return err
	}
	files, err := e.contents.ListContentFiles(ctx, id, user)
	if err != nil {
		return err
	}
	libs, err := e.dependencyClosure(ctx, meta.PreloadedDependencies)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	manifest, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", h5p.PackageManifestFile, err)
	}
	if err := writeEntry(zw, h5p.PackageManifestFile, manifest); err != nil {
		return err
	}
	if err := writeEntry(zw, path.Join(h5p.ContentDir, h5p.ContentParametersFile), params); err != nil {
		return err
	}
	for _, file := range files {
		if err := copyEntry(zw, path.Join(h5p.ContentDir, file), func() (io.ReadCloser, error) {
			return e.contents.GetContentFileStream(ctx, id, file, user)
		}); err != nil {
			return err
		}
	}

	for _, lib := range libs {
		libFiles, err := e.libraries.ListFiles(ctx, lib)
		if err != nil {
			return err
		}
		for _, file := range libFiles {
			if err := copyEntry(zw, path.Join(lib.DirName(), file), func() (io.ReadCloser, error) {
				return e.libraries.GetFileStream(ctx, lib, file)
			}); err != nil {
				return err
			}
		}
	}

	e.logger.Debug("content exported", "id", id, "files", len(files), "libraries", len(libs))
	return nil
}

// ExportToFile exports content id to target. The package is written to a
// temporary file next to target and renamed into place when complete.
func (e *Exporter) ExportToFile(ctx context.Context, id h5p.ContentID, user h5p.User, target string) (err error) {
	tmp, err := afero.TempFile(e.fs, filepath.Dir(target), ".export-*.h5p")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			if removeErr := e.fs.Remove(tmpName); removeErr != nil {
				e.logger.Warn("failed to remove temporary export", "file", tmpName, "error", removeErr)
			}
		}
	}()

	if err = e.Export(ctx, id, user, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = e.fs.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// dependencyClosure returns roots and everything they depend on, each once,
// in discovery order.
func (e *Exporter) dependencyClosure(ctx context.Context, roots []h5p.LibraryName) ([]h5p.LibraryName, error) {
	seen := make(map[h5p.LibraryName]bool)
	var out []h5p.LibraryName
	queue := append([]h5p.LibraryName(nil), roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		lib, err := e.libraries.LoadLibrary(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
		queue = append(queue, lib.AllDependencies()...)
	}
	return out, nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

func copyEntry(zw *zip.Writer, name string, open func() (io.ReadCloser, error)) (err error) {
	rc, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}
