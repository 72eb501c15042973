// SPDX-License-Identifier: MPL-2.0

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"

	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/internal/packaging"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/afero"
)

const (
	// DefaultLanguage is used for assets when the caller passes none.
	DefaultLanguage = "en"
	// UndeterminedLanguage is written to h5p.json when the metadata has no language.
	UndeterminedLanguage = "und"
	// UndisclosedLicense is written to h5p.json when the metadata has no license.
	UndisclosedLicense = "U"
)

// ErrMissingTitle is returned by SaveContent when the metadata has no title.
var ErrMissingTitle = errors.New("content title is required")

var parseWhitespace = h5p.ParseOptions{AllowWhitespace: true}

type (
	// Editor serves the content editor of a hosting application.
	Editor struct {
		libraries *library.Manager
		contents  *content.Manager
		importer  *packaging.Importer
		fs        afero.Fs
		tempDir   string
		logger    *slog.Logger
	}

	// Option configures an Editor.
	Option func(*Editor)

	// LibraryInfo is the overview of one installed library.
	LibraryInfo struct {
		h5p.LibraryName

		Title      string `json:"title"`
		Runnable   bool   `json:"runnable"`
		Restricted bool   `json:"restricted"`
		// UberName is the whitespace form the editor uses to select libraries.
		UberName string `json:"uberName"`
	}

	// Assets are the files a browser loads to run a library, dependencies
	// first. Paths are relative to the library storage root.
	Assets struct {
		Scripts []string `json:"scripts"`
		Styles  []string `json:"styles"`
		// Translations maps machine names to their language file.
		Translations map[string]json.RawMessage `json:"translations"`
	}

	// LibraryData is everything the editor needs to render the form of a
	// library.
	LibraryData struct {
		Name      h5p.LibraryName `json:"name"`
		Semantics json.RawMessage `json:"semantics"`
		// Language is the library's own language file, nil when it ships none.
		Language  json.RawMessage `json:"language,omitempty"`
		Languages []string        `json:"languages"`
		Assets    *Assets         `json:"assets"`
	}

	// Content is a content object as the editor loads it.
	Content struct {
		ID         h5p.ContentID        `json:"id"`
		Metadata   *h5p.ContentMetadata `json:"metadata"`
		Parameters json.RawMessage      `json:"params"`
		// Library is the main library in whitespace form.
		Library string `json:"library"`
	}
)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithUploadFs sets the filesystem uploads are spooled to before import. The
// importer opens the spooled file by path, so fsys must be backed by the OS
// filesystem. The default is the OS filesystem and its temp directory.
func WithUploadFs(fsys afero.Fs, tempDir string) Option {
	return func(e *Editor) {
		e.fs = fsys
		e.tempDir = tempDir
	}
}

// New creates an Editor.
func New(libraries *library.Manager, contents *content.Manager, importer *packaging.Importer, opts ...Option) *Editor {
	e := &Editor{
		libraries: libraries,
		contents:  contents,
		importer:  importer,
		fs:        afero.NewOsFs(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LibraryOverview describes the libraries named in whitespace form
// ("H5P.Example 1.0"), in the order given.
func (e *Editor) LibraryOverview(ctx context.Context, names []string) ([]LibraryInfo, error) {
	infos := make([]LibraryInfo, 0, len(names))
	for _, s := range names {
		name, err := h5p.ParseLibraryNameWith(s, parseWhitespace)
		if err != nil {
			return nil, err
		}
		lib, err := e.libraries.LoadLibrary(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, LibraryInfo{
			LibraryName: lib.LibraryName,
			Title:       lib.Title,
			Runnable:    bool(lib.Runnable),
			Restricted:  lib.Restricted,
			UberName:    lib.Format(h5p.WhitespaceForm),
		})
	}
	return infos, nil
}

// LibraryData loads semantics, translations and assets of name.
func (e *Editor) LibraryData(ctx context.Context, name h5p.LibraryName, language string) (*LibraryData, error) {
	if language == "" {
		language = DefaultLanguage
	}
	semantics, err := e.libraries.LoadSemantics(ctx, name)
	if err != nil {
		return nil, err
	}
	lang, err := e.loadLanguage(ctx, name, language)
	if err != nil {
		return nil, err
	}
	languages, err := e.libraries.ListLanguages(ctx, name)
	if err != nil {
		return nil, err
	}
	assets, err := e.LibraryAssets(ctx, name, language)
	if err != nil {
		return nil, err
	}
	return &LibraryData{
		Name:      name,
		Semantics: semantics,
		Language:  lang,
		Languages: languages,
		Assets:    assets,
	}, nil
}

// LibraryAssets collects the scripts, styles and translations of name and
// of its preloaded and editor dependencies. Every library contributes once;
// its dependencies come before its own files.
func (e *Editor) LibraryAssets(ctx context.Context, name h5p.LibraryName, language string) (*Assets, error) {
	if language == "" {
		language = DefaultLanguage
	}
	assets := &Assets{Translations: make(map[string]json.RawMessage)}
	if err := e.collectAssets(ctx, name, language, assets); err != nil {
		return nil, err
	}
	return assets, nil
}

type assetFrame struct {
	name h5p.LibraryName
	// lib is set once the dependencies of name have been pushed.
	lib *h5p.InstalledLibrary
}

// collectAssets walks the dependency graph depth-first with an explicit
// stack. A library is emitted when its frame is reached the second time,
// after all of its dependencies.
func (e *Editor) collectAssets(ctx context.Context, root h5p.LibraryName, language string, assets *Assets) error {
	visited := make(map[h5p.LibraryName]bool)
	stack := []assetFrame{{name: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.lib != nil {
			if err := e.appendAssets(ctx, top.name, top.lib, language, assets); err != nil {
				return err
			}
			stack = stack[:len(stack)-1]
			continue
		}
		if visited[top.name] {
			stack = stack[:len(stack)-1]
			continue
		}
		visited[top.name] = true
		if err := ctx.Err(); err != nil {
			return err
		}

		lib, err := e.libraries.LoadLibrary(ctx, top.name)
		if err != nil {
			return err
		}
		top.lib = lib
		deps := slices.Concat(lib.PreloadedDependencies, lib.EditorDependencies)
		for i := len(deps) - 1; i >= 0; i-- {
			if !visited[deps[i]] {
				stack = append(stack, assetFrame{name: deps[i]})
			}
		}
	}
	return nil
}

func (e *Editor) appendAssets(ctx context.Context, name h5p.LibraryName, lib *h5p.InstalledLibrary, language string, assets *Assets) error {
	dir := name.DirName()
	for _, js := range lib.PreloadedJS {
		assets.Scripts = append(assets.Scripts, path.Join(dir, js.Path))
	}
	for _, css := range lib.PreloadedCSS {
		assets.Styles = append(assets.Styles, path.Join(dir, css.Path))
	}
	lang, err := e.loadLanguage(ctx, name, language)
	if err != nil {
		return err
	}
	if lang != nil {
		assets.Translations[name.MachineName] = lang
	}
	return nil
}

// loadLanguage returns nil without error when the library ships no file for
// language.
func (e *Editor) loadLanguage(ctx context.Context, name h5p.LibraryName, language string) (json.RawMessage, error) {
	data, err := e.libraries.LoadLanguage(ctx, name, language)
	if errors.Is(err, h5p.ErrLibraryFileNotFound) {
		return nil, nil
	}
	return data, err
}

// SaveContent generates h5p.json for params and stores the content. The main
// library is given in whitespace form and must be installed. Libraries
// referenced by sub-content in params become preloaded dependencies. An
// empty id creates new content.
func (e *Editor) SaveContent(ctx context.Context, id h5p.ContentID, params json.RawMessage, meta *h5p.ContentMetadata, mainLibrary string, user h5p.User) (h5p.ContentID, error) {
	name, err := h5p.ParseLibraryNameWith(mainLibrary, parseWhitespace)
	if err != nil {
		return "", err
	}
	lib, err := e.libraries.LoadLibrary(ctx, name)
	if err != nil {
		return "", err
	}
	refs, err := h5p.FindLibraryReferences(params)
	if err != nil {
		return "", err
	}
	manifest, err := generateManifest(meta, lib, refs)
	if err != nil {
		return "", err
	}

	newID, err := e.contents.CreateOrUpdateContent(ctx, manifest, params, user, id)
	if err != nil {
		return "", err
	}
	e.logger.Info("content saved", "id", newID, "library", name.Ubername(), "dependencies", len(manifest.PreloadedDependencies))
	return newID, nil
}

// generateManifest copies the user-editable fields of meta and fills in the
// library-derived ones. Preloaded dependencies are the sub-content libraries,
// then the main library's own dependencies, then the main library.
func generateManifest(meta *h5p.ContentMetadata, lib *h5p.InstalledLibrary, refs []h5p.LibraryName) (*h5p.ContentMetadata, error) {
	if meta == nil || meta.Title == "" {
		return nil, ErrMissingTitle
	}
	m := &h5p.ContentMetadata{
		Title:           meta.Title,
		MainLibrary:     lib.MachineName,
		Language:        meta.Language,
		EmbedTypes:      lib.EmbedTypes,
		License:         meta.License,
		LicenseVersion:  meta.LicenseVersion,
		LicenseExtras:   meta.LicenseExtras,
		Authors:         meta.Authors,
		Source:          meta.Source,
		YearFrom:        meta.YearFrom,
		YearTo:          meta.YearTo,
		Changes:         meta.Changes,
		AuthorComments:  meta.AuthorComments,
		ExtraTitle:      meta.ExtraTitle,
		DefaultLanguage: meta.DefaultLanguage,
		A11yTitle:       meta.A11yTitle,
	}
	if m.Language == "" {
		m.Language = UndeterminedLanguage
	}
	if m.License == "" {
		m.License = UndisclosedLicense
	}
	if len(m.EmbedTypes) == 0 {
		m.EmbedTypes = []string{"div"}
	}

	seen := make(map[h5p.LibraryName]bool)
	for _, dep := range slices.Concat(refs, lib.PreloadedDependencies, []h5p.LibraryName{lib.LibraryName}) {
		if !seen[dep] {
			seen[dep] = true
			m.PreloadedDependencies = append(m.PreloadedDependencies, dep)
		}
	}
	return m, nil
}

// LoadContent returns metadata and parameters of id together with its main
// library.
func (e *Editor) LoadContent(ctx context.Context, id h5p.ContentID, user h5p.User) (*Content, error) {
	meta, err := e.contents.LoadMetadata(ctx, id, user)
	if err != nil {
		return nil, err
	}
	params, err := e.contents.LoadContent(ctx, id, user)
	if err != nil {
		return nil, err
	}
	main, err := meta.MainLibraryName()
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", id, err)
	}
	return &Content{
		ID:         id,
		Metadata:   meta,
		Parameters: params,
		Library:    main.Format(h5p.WhitespaceForm),
	}, nil
}

// SaveContentFile stores a file uploaded into a content field.
func (e *Editor) SaveContentFile(ctx context.Context, id h5p.ContentID, file string, r io.Reader, user h5p.User) error {
	return e.contents.AddContentFile(ctx, id, file, r, user)
}

// UploadPackage spools the package read from r into a temporary file and
// imports its libraries and content. An empty id creates new content.
func (e *Editor) UploadPackage(ctx context.Context, r io.Reader, user h5p.User, id h5p.ContentID) (*packaging.ImportResult, error) {
	archive, err := e.spool(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if removeErr := e.fs.Remove(archive); removeErr != nil {
			e.logger.Warn("failed to remove uploaded package", "file", archive, "error", removeErr)
		}
	}()

	return e.importer.AddPackageLibrariesAndContent(ctx, archive, user, id)
}

func (e *Editor) spool(r io.Reader) (_ string, err error) {
	tmp, err := afero.TempFile(e.fs, e.tempDir, "h5p-upload-*.h5p")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = e.fs.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("writing uploaded package: %w", err)
	}
	return tmp.Name(), nil
}
