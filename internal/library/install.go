// SPDX-License-Identifier: MPL-2.0

package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

// Install result types.
const (
	// InstallNew means the library was not installed before.
	InstallNew InstallType = "new"
	// InstallPatch means an older patch of the same major.minor was replaced.
	InstallPatch InstallType = "patch"
	// InstallSkip means an equal or newer patch is already installed.
	InstallSkip InstallType = "skip"
)

type (
	// InstallType classifies the outcome of InstallFromDirectory.
	InstallType string

	// InstallResult describes what InstallFromDirectory did.
	InstallResult struct {
		Type InstallType
		// OldVersion is the previously installed library (patch and skip only).
		OldVersion *h5p.InstalledLibrary
		// NewVersion is the library found in the directory.
		NewVersion *h5p.InstalledLibrary
	}
)

// String returns the install type name.
func (t InstallType) String() string { return string(t) }

// ReadMetadata reads and validates library.json from files. dirName is only
// used for error messages.
func ReadMetadata(files fs.FS, dirName string) (*h5p.LibraryMetadata, error) {
	manifestPath := dirName + "/" + h5p.LibraryManifestFile
	data, err := fs.ReadFile(files, h5p.LibraryManifestFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &h5p.MissingManifestError{File: manifestPath}
		}
		return nil, fmt.Errorf("failed to read %s: %w", manifestPath, err)
	}
	return h5p.ParseLibraryMetadata(data, manifestPath)
}

// CheckDirectoryName verifies that meta names the library stored in dirName.
func CheckDirectoryName(meta *h5p.LibraryMetadata, dirName string) error {
	dirLibrary, err := h5p.ParseLibraryName(dirName)
	if err != nil || dirLibrary != meta.Name() {
		return &h5p.LibraryManifestMismatchError{Directory: dirName, Manifest: meta.Name()}
	}
	return nil
}

// InstallFromDirectory installs the library whose files are rooted at files.
// dirName is the library's directory name and must match its library.json.
//
// An installed library is only replaced by a strictly greater patch version
// of the same major.minor; otherwise the result type is InstallSkip and
// nothing is written.
func (m *Manager) InstallFromDirectory(ctx context.Context, files fs.FS, dirName string) (*InstallResult, error) {
	meta, err := ReadMetadata(files, dirName)
	if err != nil {
		return nil, err
	}
	if err := CheckDirectoryName(meta, dirName); err != nil {
		return nil, err
	}
	if err := checkSemantics(files, meta); err != nil {
		return nil, err
	}

	name := meta.Name()
	result := &InstallResult{NewVersion: m.installed(meta)}

	old, err := m.storage.LoadMetadata(ctx, name)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	if isNotFound(err) {
		if err := m.storage.InstallLibrary(ctx, meta, files); err != nil {
			m.compensate(ctx, name)
			return nil, fmt.Errorf("failed to install library %s: %w", name.Ubername(), err)
		}
		result.Type = InstallNew
		m.logger.Info("library installed", "library", name.Ubername(), "version", meta.FullVersion())
		return result, nil
	}

	result.OldVersion = m.installed(old)
	if !result.OldVersion.IsPatchOf(meta) {
		result.Type = InstallSkip
		m.logger.Debug("library already installed",
			"library", name.Ubername(), "installed", old.FullVersion(), "candidate", meta.FullVersion())
		return result, nil
	}

	if err := m.storage.UpdateLibrary(ctx, meta, files); err != nil {
		return nil, fmt.Errorf("failed to update library %s: %w", name.Ubername(), err)
	}
	result.Type = InstallPatch
	m.logger.Info("library patched", "library", name.Ubername(), "from", old.FullVersion(), "to", meta.FullVersion())
	return result, nil
}

// compensate removes a partially installed library. Failures are logged only
// so the install error reaches the caller unchanged.
func (m *Manager) compensate(ctx context.Context, name h5p.LibraryName) {
	exists, err := m.storage.LibraryExists(ctx, name)
	if err != nil || !exists {
		return
	}
	if err := m.storage.DeleteLibrary(ctx, name); err != nil {
		m.logger.Warn("failed to remove partially installed library", "library", name.Ubername(), "error", err)
	}
}

func checkSemantics(files fs.FS, meta *h5p.LibraryMetadata) error {
	data, err := fs.ReadFile(files, h5p.SemanticsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil {
		err = h5p.ValidJSON(data)
	}
	if err != nil {
		return &h5p.InvalidSemanticsError{Library: meta.Name(), File: h5p.SemanticsFile, Err: err}
	}
	return nil
}
