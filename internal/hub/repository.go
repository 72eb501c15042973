// SPDX-License-Identifier: MPL-2.0

package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/afero"
)

type (
	// PackageInstaller installs the libraries of a downloaded package.
	// *packaging.Importer implements it.
	PackageInstaller interface {
		InstallLibrariesFromPackage(ctx context.Context, archivePath string) ([]*library.InstallResult, error)
	}

	// RepositorySettings configure restriction of content types.
	RepositorySettings struct {
		// RestrictedContentTypes are machine names only users allowed to
		// create restricted content may use.
		RestrictedContentTypes []string
		// EnableRestrictedContentTypes lifts the restriction for everyone.
		EnableRestrictedContentTypes bool
	}

	// ContentTypeEntry is a catalog descriptor merged with local state.
	ContentTypeEntry struct {
		MachineName       string          `json:"machineName"`
		MajorVersion      int             `json:"majorVersion"`
		MinorVersion      int             `json:"minorVersion"`
		PatchVersion      int             `json:"patchVersion"`
		LocalMajorVersion int             `json:"localMajorVersion,omitempty"`
		LocalMinorVersion int             `json:"localMinorVersion,omitempty"`
		LocalPatchVersion int             `json:"localPatchVersion,omitempty"`
		Title             string          `json:"title"`
		Summary           string          `json:"summary,omitempty"`
		Description       string          `json:"description,omitempty"`
		Icon              string          `json:"icon,omitempty"`
		Owner             string          `json:"owner,omitempty"`
		IsRecommended     bool            `json:"isRecommended"`
		Popularity        int             `json:"popularity"`
		Screenshots       []Screenshot    `json:"screenshots,omitempty"`
		License           json.RawMessage `json:"license,omitempty"`
		Example           string          `json:"example,omitempty"`
		Tutorial          string          `json:"tutorial,omitempty"`
		Keywords          []string        `json:"keywords,omitempty"`
		Categories        []string        `json:"categories,omitempty"`
		Installed         bool            `json:"installed"`
		IsUpToDate        bool            `json:"isUpToDate"`
		Restricted        bool            `json:"restricted"`
		CanInstall        bool            `json:"canInstall"`
	}

	// ContentTypeList is what Get returns.
	ContentTypeList struct {
		// Outdated is set when the catalog could not be refreshed in time.
		Outdated  bool                `json:"outdated"`
		Libraries []*ContentTypeEntry `json:"libraries"`
	}

	// ContentTypeRepository offers the catalog to users and installs from it.
	ContentTypeRepository struct {
		cache     *ContentTypeCache
		libraries *library.Manager
		installer PackageInstaller
		settings  RepositorySettings
		fs        afero.Fs
		tempDir   string
		logger    *slog.Logger
	}

	// RepositoryOption configures a ContentTypeRepository.
	RepositoryOption func(*ContentTypeRepository)
)

// WithDownloadFs sets the filesystem downloads are spooled to. The default
// is the OS filesystem.
func WithDownloadFs(fsys afero.Fs, tempDir string) RepositoryOption {
	return func(r *ContentTypeRepository) {
		r.fs = fsys
		r.tempDir = tempDir
	}
}

// WithRepositoryLogger sets the logger. The default discards everything.
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(r *ContentTypeRepository) {
		r.logger = logger
	}
}

// NewContentTypeRepository creates a repository.
func NewContentTypeRepository(cache *ContentTypeCache, libraries *library.Manager, installer PackageInstaller, settings RepositorySettings, opts ...RepositoryOption) *ContentTypeRepository {
	r := &ContentTypeRepository{
		cache:     cache,
		libraries: libraries,
		installer: installer,
		settings:  settings,
		fs:        afero.NewOsFs(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get refreshes the catalog if necessary and returns it merged with the
// installed libraries. Runnable libraries the catalog does not know are
// appended. When the catalog cannot be fetched the cached (or empty) catalog
// is used.
func (r *ContentTypeRepository) Get(ctx context.Context, user h5p.User) (*ContentTypeList, error) {
	if _, err := r.cache.UpdateIfNecessary(ctx); err != nil {
		return nil, err
	}
	cached, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	installed, err := r.libraries.GetInstalled(ctx)
	if err != nil {
		return nil, err
	}

	list := &ContentTypeList{Libraries: make([]*ContentTypeEntry, 0, len(cached))}
	known := make(map[string]bool, len(cached))
	for i := range cached {
		ct := &cached[i]
		known[ct.ID] = true
		entry := catalogEntry(ct)
		if local := latest(installed[ct.ID]); local != nil {
			entry.setLocal(local)
			entry.IsUpToDate = compareLocal(local, ct.Version) >= 0
		}
		entry.Restricted = r.isRestricted(ct.ID, user)
		entry.CanInstall = canInstall(user, ct.IsRecommended, entry.Restricted)
		list.Libraries = append(list.Libraries, entry)
	}

	var local []string
	for machineName := range installed {
		if !known[machineName] {
			local = append(local, machineName)
		}
	}
	slices.Sort(local)
	for _, machineName := range local {
		lib := latest(installed[machineName])
		if !lib.Runnable {
			continue
		}
		entry := &ContentTypeEntry{
			MachineName:  lib.MachineName,
			MajorVersion: lib.MajorVersion,
			MinorVersion: lib.MinorVersion,
			PatchVersion: lib.PatchVersion,
			Title:        lib.Title,
			Description:  lib.Description,
			IsUpToDate:   true,
		}
		entry.setLocal(lib)
		entry.Restricted = r.isRestricted(machineName, user)
		list.Libraries = append(list.Libraries, entry)
	}

	if list.Outdated, err = r.cache.IsOutdated(ctx); err != nil {
		return nil, err
	}
	return list, nil
}

// Install downloads the content type id from the catalog and installs its
// libraries. It returns true when the package was installed.
func (r *ContentTypeRepository) Install(ctx context.Context, id string, user h5p.User) (bool, error) {
	if id == "" {
		return false, h5p.ErrNoContentTypeSpecified
	}
	if !h5p.IsValidMachineName(id) {
		return false, &h5p.InvalidContentTypeFormatError{ID: id, Reason: "not a machine name"}
	}
	types, err := r.cache.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if len(types) == 0 {
		return false, &h5p.InvalidContentTypeFormatError{ID: id, Reason: "not in the content type catalog"}
	}
	ct := types[0]
	if !canInstall(user, ct.IsRecommended, r.isRestricted(id, user)) {
		return false, &h5p.InstallationDeniedError{ID: id, UserID: user.ID()}
	}

	archive, err := r.download(ctx, ct)
	if err != nil {
		return false, err
	}
	defer func() {
		if removeErr := r.fs.Remove(archive); removeErr != nil {
			r.logger.Warn("failed to remove downloaded package", "file", archive, "error", removeErr)
		}
	}()

	results, err := r.installer.InstallLibrariesFromPackage(ctx, archive)
	if err != nil {
		return false, fmt.Errorf("failed to install content type %s: %w", id, err)
	}
	r.logger.Info("content type installed", "id", id, "version", ct.Version.String(), "libraries", len(results))
	return true, nil
}

// download spools the package of ct into a temporary file and returns its
// path. The caller removes the file.
func (r *ContentTypeRepository) download(ctx context.Context, ct ContentType) (_ string, err error) {
	body, err := r.cache.Download(ctx, ct)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only response body

	tmp, err := afero.TempFile(r.fs, r.tempDir, "h5p-download-*.h5p")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = r.fs.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return "", fmt.Errorf("writing to temp file: %w", err)
	}
	return tmp.Name(), nil
}

// isRestricted applies the restriction list unless it is lifted globally or
// for the user.
func (r *ContentTypeRepository) isRestricted(machineName string, user h5p.User) bool {
	if r.settings.EnableRestrictedContentTypes || user.CanCreateRestricted() {
		return false
	}
	return slices.Contains(r.settings.RestrictedContentTypes, machineName) || r.libraries.IsRestricted(machineName)
}

// canInstall: updating and installing libraries allows everything; otherwise
// only unrestricted recommended content types may be installed.
func canInstall(user h5p.User, recommended, restricted bool) bool {
	if user.CanUpdateAndInstallLibraries() {
		return true
	}
	return user.CanInstallRecommended() && recommended && !restricted
}

func catalogEntry(ct *ContentType) *ContentTypeEntry {
	return &ContentTypeEntry{
		MachineName:   ct.ID,
		MajorVersion:  ct.Version.Major,
		MinorVersion:  ct.Version.Minor,
		PatchVersion:  ct.Version.Patch,
		Title:         ct.Title,
		Summary:       ct.Summary,
		Description:   ct.Description,
		Icon:          ct.Icon,
		Owner:         ct.Owner,
		IsRecommended: ct.IsRecommended,
		Popularity:    ct.Popularity,
		Screenshots:   ct.Screenshots,
		License:       ct.License,
		Example:       ct.Example,
		Tutorial:      ct.Tutorial,
		Keywords:      ct.Keywords,
		Categories:    ct.Categories,
	}
}

func (e *ContentTypeEntry) setLocal(lib *h5p.InstalledLibrary) {
	e.Installed = true
	e.LocalMajorVersion = lib.MajorVersion
	e.LocalMinorVersion = lib.MinorVersion
	e.LocalPatchVersion = lib.PatchVersion
}

// latest returns the highest version of an ascending list.
func latest(versions []*h5p.InstalledLibrary) *h5p.InstalledLibrary {
	if len(versions) == 0 {
		return nil
	}
	return versions[len(versions)-1]
}

func compareLocal(lib *h5p.InstalledLibrary, remote Version) int {
	return Version{Major: lib.MajorVersion, Minor: lib.MinorVersion, Patch: lib.PatchVersion}.Compare(remote)
}
