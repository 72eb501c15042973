// SPDX-License-Identifier: MPL-2.0

package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

type (
	// Manager is the entry point for everything that touches installed
	// libraries.
	Manager struct {
		storage    Storage
		logger     *slog.Logger
		restricted map[string]bool
	}

	// Option configures a Manager.
	Option func(*Manager)
)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRestrictedLibraries marks the given machine names as restricted.
func WithRestrictedLibraries(machineNames ...string) Option {
	return func(m *Manager) {
		for _, name := range machineNames {
			m.restricted[name] = true
		}
	}
}

// New creates a Manager over storage.
func New(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:    storage,
		logger:     slog.New(slog.DiscardHandler),
		restricted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsInstalled reports whether name is installed.
func (m *Manager) IsInstalled(ctx context.Context, name h5p.LibraryName) (bool, error) {
	return m.storage.LibraryExists(ctx, name)
}

// LoadLibrary returns the installed library name.
func (m *Manager) LoadLibrary(ctx context.Context, name h5p.LibraryName) (*h5p.InstalledLibrary, error) {
	meta, err := m.storage.LoadMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.installed(meta), nil
}

// GetInstalled returns every installed version of the given machine names
// (all libraries when none are given), keyed by machine name and sorted by
// ascending version.
func (m *Manager) GetInstalled(ctx context.Context, machineNames ...string) (map[string][]*h5p.InstalledLibrary, error) {
	names, err := m.storage.ListInstalled(ctx, machineNames...)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed libraries: %w", err)
	}

	result := make(map[string][]*h5p.InstalledLibrary)
	for _, name := range names {
		lib, err := m.LoadLibrary(ctx, name)
		if err != nil {
			return nil, err
		}
		result[name.MachineName] = append(result[name.MachineName], lib)
	}
	for _, libs := range result {
		slices.SortFunc(libs, (*h5p.InstalledLibrary).Compare)
	}
	return result, nil
}

// LatestVersion returns the installed version of machineName with the highest
// major.minor, or a *h5p.LibraryNotFoundError when none is installed.
func (m *Manager) LatestVersion(ctx context.Context, machineName string) (*h5p.InstalledLibrary, error) {
	installed, err := m.GetInstalled(ctx, machineName)
	if err != nil {
		return nil, err
	}
	libs := installed[machineName]
	if len(libs) == 0 {
		return nil, &h5p.LibraryNotFoundError{Library: h5p.LibraryName{MachineName: machineName}}
	}
	return libs[len(libs)-1], nil
}

// Dependents returns every installed library that depends on name, directly
// or transitively, sorted by name.
func (m *Manager) Dependents(ctx context.Context, name h5p.LibraryName) ([]h5p.LibraryName, error) {
	names, err := m.storage.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed libraries: %w", err)
	}

	reverse := make(map[h5p.LibraryName][]h5p.LibraryName)
	for _, candidate := range names {
		meta, err := m.storage.LoadMetadata(ctx, candidate)
		if err != nil {
			return nil, err
		}
		for _, dep := range meta.AllDependencies() {
			reverse[dep] = append(reverse[dep], candidate)
		}
	}

	visited := map[h5p.LibraryName]bool{name: true}
	queue := []h5p.LibraryName{name}
	var dependents []h5p.LibraryName
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dependent := range reverse[current] {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			dependents = append(dependents, dependent)
			queue = append(queue, dependent)
		}
	}
	slices.SortFunc(dependents, h5p.LibraryName.Compare)
	return dependents, nil
}

// Uninstall removes name. It fails with *h5p.LibraryIsDependedUponError when
// another installed library still depends on it.
func (m *Manager) Uninstall(ctx context.Context, name h5p.LibraryName) error {
	exists, err := m.storage.LibraryExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return &h5p.LibraryNotFoundError{Library: name}
	}

	dependents, err := m.Dependents(ctx, name)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		return &h5p.LibraryIsDependedUponError{Library: name, Dependents: dependents}
	}

	if err := m.storage.DeleteLibrary(ctx, name); err != nil {
		return fmt.Errorf("failed to delete library %s: %w", name.Ubername(), err)
	}
	m.logger.Info("library uninstalled", "library", name.Ubername())
	return nil
}

// LoadSemantics returns the raw semantics.json of name.
func (m *Manager) LoadSemantics(ctx context.Context, name h5p.LibraryName) (json.RawMessage, error) {
	return m.readJSON(ctx, name, h5p.SemanticsFile)
}

// LoadLanguage returns language/<language>.json of name.
func (m *Manager) LoadLanguage(ctx context.Context, name h5p.LibraryName, language string) (json.RawMessage, error) {
	if err := h5p.ValidateLanguage(language); err != nil {
		return nil, err
	}
	return m.readJSON(ctx, name, path.Join(h5p.LanguageDir, language+".json"))
}

// ListLanguages returns the languages name ships translations for.
func (m *Manager) ListLanguages(ctx context.Context, name h5p.LibraryName) ([]string, error) {
	files, err := m.storage.ListFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	var languages []string
	for _, f := range files {
		dir, file := path.Split(f)
		if dir == h5p.LanguageDir+"/" && strings.HasSuffix(file, ".json") {
			languages = append(languages, strings.TrimSuffix(file, ".json"))
		}
	}
	slices.Sort(languages)
	return languages, nil
}

// GetFileStream opens a library-relative file.
func (m *Manager) GetFileStream(ctx context.Context, name h5p.LibraryName, file string) (io.ReadCloser, error) {
	return m.storage.GetFileStream(ctx, name, file)
}

// ListFiles returns every library-relative file of name.
func (m *Manager) ListFiles(ctx context.Context, name h5p.LibraryName) ([]string, error) {
	return m.storage.ListFiles(ctx, name)
}

// FileExists reports whether a library-relative file exists.
func (m *Manager) FileExists(ctx context.Context, name h5p.LibraryName, file string) (bool, error) {
	return m.storage.FileExists(ctx, name, file)
}

// IsRestricted reports whether machineName is configured as restricted.
func (m *Manager) IsRestricted(machineName string) bool {
	return m.restricted[machineName]
}

func (m *Manager) installed(meta *h5p.LibraryMetadata) *h5p.InstalledLibrary {
	return &h5p.InstalledLibrary{
		LibraryMetadata: *meta,
		Restricted:      m.restricted[meta.MachineName],
	}
}

func (m *Manager) readJSON(ctx context.Context, name h5p.LibraryName, file string) (data json.RawMessage, err error) {
	rc, err := m.storage.GetFileStream(ctx, name, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !errors.Is(err, h5p.ErrLibraryNotFound) {
			return nil, &h5p.LibraryFileNotFoundError{Library: name, File: file}
		}
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s of %s: %w", file, name.Ubername(), err)
	}
	if jsonErr := h5p.ValidJSON(data); jsonErr != nil {
		return nil, &h5p.InvalidSemanticsError{Library: name, File: file, Err: jsonErr}
	}
	return data, nil
}

// isNotFound reports whether err says a library or file is missing.
func isNotFound(err error) bool {
	return errors.Is(err, h5p.ErrLibraryNotFound)
}
