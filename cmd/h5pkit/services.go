// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/h5pkit/h5pkit/internal/config"
	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/internal/editor"
	"github.com/h5pkit/h5pkit/internal/hub"
	"github.com/h5pkit/h5pkit/internal/issue"
	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/internal/packaging"
	"github.com/h5pkit/h5pkit/internal/storage/fsstore"
	"github.com/h5pkit/h5pkit/internal/storage/kvstore"

	"github.com/spf13/afero"
)

// services are the domain services of one CLI invocation, built from the
// loaded configuration.
type services struct {
	cfg        *config.Config
	logger     *slog.Logger
	libraries  *library.Manager
	contents   *content.Manager
	temporary  *fsstore.TemporaryStore
	validator  *packaging.Validator
	importer   *packaging.Importer
	exporter   *packaging.Exporter
	editor     *editor.Editor
	cache      *hub.ContentTypeCache
	repository *hub.ContentTypeRepository
	close      func() error
}

// openServices loads the configuration and wires every service on the OS
// filesystem. The caller must call Close.
func (a *App) openServices(ctx context.Context) (*services, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := newLogger(a.stderr, cfg.LogLevel, a.verbose)
	osFs := afero.NewOsFs()

	libraryStore, err := fsstore.NewLibraryStore(osFs, cfg.LibrariesDir)
	if err != nil {
		return nil, storageError(err, cfg.LibrariesDir)
	}
	contentStore, err := fsstore.NewContentStore(osFs, cfg.ContentDir)
	if err != nil {
		return nil, storageError(err, cfg.ContentDir)
	}
	temporary, err := fsstore.NewTemporaryStore(osFs, cfg.TemporaryDir)
	if err != nil {
		return nil, storageError(err, cfg.TemporaryDir)
	}
	store, closeStore, err := openKeyValueStore(ctx, osFs, cfg.Store)
	if err != nil {
		return nil, storageError(err, cfg.Store.Path)
	}

	s := &services{
		cfg:       cfg,
		logger:    logger,
		libraries: library.New(libraryStore, library.WithLogger(logger), library.WithRestrictedLibraries(cfg.Hub.Restricted...)),
		contents:  content.New(contentStore, content.WithLogger(logger)),
		temporary: temporary,
		close:     closeStore,
	}
	s.validator = packaging.NewValidator(s.libraries, packageLimits(cfg), packaging.WithValidatorLogger(logger))
	s.importer = packaging.NewImporter(s.validator, s.libraries, s.contents,
		packaging.WithFs(osFs),
		packaging.WithTemporaryStorage(temporary, cfg.TemporaryFileLifetime),
		packaging.WithImporterLogger(logger))
	s.exporter = packaging.NewExporter(s.libraries, s.contents,
		packaging.WithExporterFs(osFs),
		packaging.WithExporterLogger(logger))
	s.editor = editor.New(s.libraries, s.contents, s.importer, editor.WithLogger(logger))

	client := hub.NewClient(
		hub.WithEndpoints(cfg.Hub.RegistrationEndpoint, cfg.Hub.ContentTypesEndpoint),
		hub.WithUserAgent(config.AppName+"/"+Version))
	s.cache = hub.NewContentTypeCache(client, store, hub.CacheSettings{
		RefreshInterval: cfg.Hub.RefreshInterval,
		Platform: hub.PlatformInfo{
			Name:           cfg.Platform.Name,
			Version:        cmp.Or(cfg.Platform.Version, Version),
			CoreAPIVersion: cfg.CoreAPI,
			UsesLibraryHub: true,
		},
	}, hub.WithLogger(logger))
	s.repository = hub.NewContentTypeRepository(s.cache, s.libraries, s.importer, hub.RepositorySettings{
		RestrictedContentTypes:       cfg.Hub.Restricted,
		EnableRestrictedContentTypes: cfg.Hub.EnableRestricted,
	}, hub.WithRepositoryLogger(logger))

	return s, nil
}

// Close releases the key-value store.
func (s *services) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openKeyValueStore opens the hub cache store selected by the configuration.
func openKeyValueStore(ctx context.Context, fsys afero.Fs, cfg config.StoreConfig) (hub.KeyValueStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Kind {
	case config.StoreMemory:
		return kvstore.NewMemory(), noop, nil
	case config.StoreJSON:
		return kvstore.NewJSONFile(fsys, cfg.Path), noop, nil
	case config.StoreSQLite:
		if err := fsys.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, err
		}
		db, err := kvstore.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, &config.InvalidStoreKindError{Value: cfg.Kind}
	}
}

// packageLimits converts the configured limits for the validator.
func packageLimits(cfg *config.Config) packaging.Limits {
	limits := packaging.DefaultLimits()
	limits.MaxFileSize = cfg.Limits.MaxFileSize
	limits.MaxTotalSize = cfg.Limits.MaxTotalSize
	limits.MaxDepth = cfg.Limits.MaxDepth
	limits.CoreAPI = "v" + cfg.CoreAPI
	limits.Aggregate = cfg.Limits.Aggregate
	return limits
}

func storageError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("open storage").
		WithResource(path).
		WithSuggestion(fmt.Sprintf("Check that %s is writable", path)).
		WithSuggestion("Point H5PKIT_DATA_DIR or data_dir in the config file somewhere else").
		Wrap(err).
		BuildError()
}
