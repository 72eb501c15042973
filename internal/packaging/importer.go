// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/afero"
)

// DefaultTemporaryFileLifetime is how long files imported into temporary
// storage are kept.
const DefaultTemporaryFileLifetime = 24 * time.Hour

// ErrNoTemporaryStorage is returned by AddPackageLibrariesAndTemporaryFiles
// when the Importer has no temporary storage.
var ErrNoTemporaryStorage = errors.New("no temporary storage configured")

type (
	// Clock supplies the current time.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// Importer installs the libraries of a package and creates its content.
	Importer struct {
		validator *Validator
		libraries *library.Manager
		contents  *content.Manager
		temporary content.TemporaryStorage
		lifetime  time.Duration
		fs        afero.Fs
		tempDir   string
		clock     Clock
		logger    *slog.Logger
	}

	// ImporterOption configures an Importer.
	ImporterOption func(*Importer)

	// ImportResult describes a package imported as new content.
	ImportResult struct {
		Content   *content.CopyResult
		Libraries []*library.InstallResult
	}

	// TemporaryImport describes a package whose content files were moved to
	// temporary storage instead of becoming content.
	TemporaryImport struct {
		Metadata *h5p.ContentMetadata
		// Parameters reference the temporary files with a "#tmp" suffix.
		Parameters json.RawMessage
		// Files maps package-relative content files to their temporary names.
		Files     map[string]string
		Libraries []*library.InstallResult
	}
)

func (systemClock) Now() time.Time { return time.Now() }

// WithFs sets the filesystem used for staging. The default is the OS
// filesystem.
func WithFs(fsys afero.Fs) ImporterOption {
	return func(i *Importer) {
		i.fs = fsys
	}
}

// WithTempDir sets the parent directory of staging directories.
func WithTempDir(dir string) ImporterOption {
	return func(i *Importer) {
		i.tempDir = dir
	}
}

// WithTemporaryStorage enables AddPackageLibrariesAndTemporaryFiles. Files
// expire lifetime after the import; zero uses DefaultTemporaryFileLifetime.
func WithTemporaryStorage(store content.TemporaryStorage, lifetime time.Duration) ImporterOption {
	return func(i *Importer) {
		i.temporary = store
		if lifetime > 0 {
			i.lifetime = lifetime
		}
	}
}

// WithClock sets the clock used for temporary file expiry.
func WithClock(clock Clock) ImporterOption {
	return func(i *Importer) {
		i.clock = clock
	}
}

// WithImporterLogger sets the logger. The default discards everything.
func WithImporterLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) {
		i.logger = logger
	}
}

// NewImporter creates an Importer.
func NewImporter(validator *Validator, libraries *library.Manager, contents *content.Manager, opts ...ImporterOption) *Importer {
	i := &Importer{
		validator: validator,
		libraries: libraries,
		contents:  contents,
		lifetime:  DefaultTemporaryFileLifetime,
		fs:        afero.NewOsFs(),
		clock:     systemClock{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InstallLibrariesFromPackage validates the package and installs its
// libraries, dependencies first. Installation stops at the first failure;
// libraries installed before it stay installed and are returned together
// with the error.
func (i *Importer) InstallLibrariesFromPackage(ctx context.Context, archivePath string) ([]*library.InstallResult, error) {
	var results []*library.InstallResult
	err := i.withStagedPackage(ctx, archivePath, func(pkg *Package, staged fs.FS) error {
		var err error
		results, err = i.installLibraries(ctx, pkg, staged)
		return err
	})
	return results, err
}

// AddPackageLibrariesAndContent installs the package's libraries and creates
// content from it. An empty id allocates a new content id.
func (i *Importer) AddPackageLibrariesAndContent(ctx context.Context, archivePath string, user h5p.User, id h5p.ContentID) (*ImportResult, error) {
	result := &ImportResult{}
	err := i.withStagedPackage(ctx, archivePath, func(pkg *Package, staged fs.FS) error {
		if !pkg.HasContent {
			return &h5p.MissingManifestError{File: path.Join(h5p.ContentDir, h5p.ContentParametersFile)}
		}
		var err error
		if result.Libraries, err = i.installLibraries(ctx, pkg, staged); err != nil {
			return err
		}
		result.Content, err = i.contents.CopyContentFromDirectory(ctx, staged, user, id)
		return err
	})
	if err != nil {
		return result, err
	}
	i.logger.Info("package imported", "path", archivePath, "content", result.Content.ID, "libraries", len(result.Libraries))
	return result, nil
}

// AddPackageLibrariesAndTemporaryFiles installs the package's libraries and
// moves its content files to temporary storage owned by user, so an editor
// can offer the content without saving it.
func (i *Importer) AddPackageLibrariesAndTemporaryFiles(ctx context.Context, archivePath string, user h5p.User) (*TemporaryImport, error) {
	if i.temporary == nil {
		return nil, ErrNoTemporaryStorage
	}
	result := &TemporaryImport{Files: make(map[string]string)}
	err := i.withStagedPackage(ctx, archivePath, func(pkg *Package, staged fs.FS) error {
		meta, params, err := content.ReadPackageContent(staged)
		if err != nil {
			return err
		}
		if result.Libraries, err = i.installLibraries(ctx, pkg, staged); err != nil {
			return err
		}
		files, err := content.ListPackageContentFiles(staged)
		if err != nil {
			return err
		}
		expiresAt := i.clock.Now().Add(i.lifetime)
		for _, file := range files {
			stored, err := i.saveTemporary(ctx, staged, file, user, expiresAt)
			if err != nil {
				return err
			}
			result.Files[file] = stored
		}
		rewritten, err := h5p.RewriteFileReferences(params, func(file string) (string, bool) {
			stored, ok := result.Files[file]
			return stored + h5p.TemporaryFileMarker, ok
		})
		if err != nil {
			return err
		}
		result.Metadata = meta
		result.Parameters = rewritten
		return nil
	})
	return result, err
}

func (i *Importer) saveTemporary(ctx context.Context, staged fs.FS, file string, user h5p.User, expiresAt time.Time) (stored string, err error) {
	f, err := staged.Open(path.Join(h5p.ContentDir, file))
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	stored, err = i.temporary.SaveFile(ctx, file, f, user, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to save temporary file %s: %w", file, err)
	}
	return stored, nil
}

// withStagedPackage validates and extracts the package into a fresh staging
// directory, calls fn and removes the directory again.
func (i *Importer) withStagedPackage(ctx context.Context, archivePath string, fn func(*Package, fs.FS) error) error {
	pkg, err := i.validator.Validate(ctx, archivePath)
	if err != nil {
		return err
	}

	stage, err := afero.TempDir(i.fs, i.tempDir, "h5p-import-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if removeErr := i.fs.RemoveAll(stage); removeErr != nil {
			i.logger.Warn("failed to remove staging directory", "dir", stage, "error", removeErr)
		}
	}()

	if err := Extract(ctx, archivePath, i.fs, stage, i.validator.Limits()); err != nil {
		return err
	}
	return fn(pkg, afero.NewIOFS(afero.NewBasePathFs(i.fs, stage)))
}

func (i *Importer) installLibraries(ctx context.Context, pkg *Package, staged fs.FS) ([]*library.InstallResult, error) {
	results := make([]*library.InstallResult, 0, len(pkg.Libraries))
	for _, lib := range pkg.Libraries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		sub, err := fs.Sub(staged, lib.DirName)
		if err != nil {
			return results, err
		}
		result, err := i.libraries.InstallFromDirectory(ctx, sub, lib.DirName)
		if err != nil {
			return results, fmt.Errorf("failed to install %s: %w", lib.DirName, err)
		}
		results = append(results, result)
	}
	return results, nil
}
