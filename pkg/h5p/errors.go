// SPDX-License-Identifier: MPL-2.0

package h5p

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var (
	// ErrInvalidLibraryNameFormat is the sentinel error wrapped by InvalidLibraryNameFormatError.
	ErrInvalidLibraryNameFormat = errors.New("invalid library name format")
	// ErrLibraryNotFound is the sentinel error wrapped by LibraryNotFoundError.
	ErrLibraryNotFound = errors.New("library not found")
	// ErrLibraryFileNotFound is the sentinel error wrapped by LibraryFileNotFoundError.
	ErrLibraryFileNotFound = errors.New("library file not found")
	// ErrLibraryIsDependedUpon is the sentinel error wrapped by LibraryIsDependedUponError.
	ErrLibraryIsDependedUpon = errors.New("library is depended upon")

	// ErrCorruptArchive is the sentinel error wrapped by CorruptArchiveError.
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrMissingManifest is the sentinel error wrapped by MissingManifestError.
	ErrMissingManifest = errors.New("missing manifest")
	// ErrMalformedManifest is the sentinel error wrapped by MalformedManifestError.
	ErrMalformedManifest = errors.New("malformed manifest")
	// ErrDisallowedFileType is the sentinel error wrapped by DisallowedFileTypeError.
	ErrDisallowedFileType = errors.New("disallowed file type")
	// ErrPackageTooLarge is the sentinel error wrapped by PackageTooLargeError.
	ErrPackageTooLarge = errors.New("package too large")
	// ErrUnsafeArchivePath is the sentinel error wrapped by UnsafeArchivePathError.
	ErrUnsafeArchivePath = errors.New("unsafe archive path")
	// ErrLibraryManifestMismatch is the sentinel error wrapped by LibraryManifestMismatchError.
	ErrLibraryManifestMismatch = errors.New("library manifest does not match directory")
	// ErrInvalidSemantics is the sentinel error wrapped by InvalidSemanticsError.
	ErrInvalidSemantics = errors.New("invalid semantics")
	// ErrCoreAPIIncompatible is the sentinel error wrapped by CoreAPIIncompatibleError.
	ErrCoreAPIIncompatible = errors.New("core API incompatible")
	// ErrUnresolvedDependency is the sentinel error wrapped by UnresolvedDependencyError.
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	// ErrDependencyCycle is returned when bundled libraries depend on each other cyclically.
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrNoContentTypeSpecified is returned by content type installation when the id is empty.
	ErrNoContentTypeSpecified = errors.New("no content type specified")
	// ErrInvalidContentTypeFormat is the sentinel error wrapped by InvalidContentTypeFormatError.
	ErrInvalidContentTypeFormat = errors.New("invalid content type")
	// ErrInstallationDenied is the sentinel error wrapped by InstallationDeniedError.
	ErrInstallationDenied = errors.New("installation denied")
	// ErrRemoteUnreachable is the sentinel error wrapped by RemoteUnreachableError.
	ErrRemoteUnreachable = errors.New("remote unreachable")

	// ErrContentNotFound is the sentinel error wrapped by ContentNotFoundError.
	ErrContentNotFound = errors.New("content not found")
	// ErrContentFileNotFound is the sentinel error wrapped by ContentFileNotFoundError.
	ErrContentFileNotFound = errors.New("content file not found")
)

type (
	// InvalidLibraryNameFormatError is returned when text is not a library
	// name in any of the accepted forms.
	InvalidLibraryNameFormatError struct {
		Value    string
		Patterns []string
	}

	// LibraryNotFoundError is returned when a library is not installed.
	LibraryNotFoundError struct {
		Library LibraryName
	}

	// LibraryFileNotFoundError is returned when an installed library does not
	// ship File, e.g. a semantics.json or a translation.
	LibraryFileNotFoundError struct {
		Library LibraryName
		File    string
	}

	// LibraryIsDependedUponError is returned when uninstalling a library that
	// other installed libraries still depend on.
	LibraryIsDependedUponError struct {
		Library    LibraryName
		Dependents []LibraryName
	}

	// CorruptArchiveError is returned when a package cannot be opened as a ZIP archive.
	CorruptArchiveError struct {
		Path string
		Err  error
	}

	// MissingManifestError is returned when a required manifest file is absent.
	MissingManifestError struct {
		File string
	}

	// MalformedManifestError is returned when a manifest is not valid JSON
	// or violates the manifest schema.
	MalformedManifestError struct {
		File string
		Err  error
	}

	// DisallowedFileTypeError is returned for archive entries whose extension
	// is on the denylist.
	DisallowedFileTypeError struct {
		File      string
		Extension string
	}

	// PackageTooLargeError is returned when an entry or the whole package
	// exceeds the configured limits.
	PackageTooLargeError struct {
		File  string
		Size  int64
		Limit int64
	}

	// UnsafeArchivePathError is returned for entries that would escape the
	// extraction directory.
	UnsafeArchivePathError struct {
		File string
	}

	// LibraryManifestMismatchError is returned when a library.json names a
	// different library than its directory.
	LibraryManifestMismatchError struct {
		Directory string
		Manifest  LibraryName
	}

	// InvalidSemanticsError is returned when semantics.json (or a language
	// file) of a library is not valid JSON.
	InvalidSemanticsError struct {
		Library LibraryName
		File    string
		Err     error
	}

	// CoreAPIIncompatibleError is returned when a library requires a newer
	// core API than the one this manager implements.
	CoreAPIIncompatibleError struct {
		Library  LibraryName
		Required string
		Provided string
	}

	// UnresolvedDependencyError is returned when a dependency is neither
	// bundled nor installed.
	UnresolvedDependencyError struct {
		Dependency LibraryName
		// RequiredBy is the library (or "content") that declared the dependency.
		RequiredBy string
	}

	// InvalidContentTypeFormatError is returned when a content type id is not
	// a machine name or is unknown to the catalog.
	InvalidContentTypeFormatError struct {
		ID     string
		Reason string
	}

	// InstallationDeniedError is returned when a user lacks the permission
	// to install a content type.
	InstallationDeniedError struct {
		ID     string
		UserID string
	}

	// RemoteUnreachableError is returned when the remote catalog cannot be
	// reached or answers with an unexpected status.
	RemoteUnreachableError struct {
		Endpoint   string
		StatusCode int
		Err        error
	}

	// ContentNotFoundError is returned for unknown content ids.
	ContentNotFoundError struct {
		ID ContentID
	}

	// ContentFileNotFoundError is returned for unknown content files.
	ContentFileNotFoundError struct {
		ID   ContentID
		File string
	}

	// AggregateValidationError collects every violation found by a
	// non-fail-fast validation run.
	AggregateValidationError struct {
		Errors []error
	}
)

// Error implements the error interface.
func (e *InvalidLibraryNameFormatError) Error() string {
	if len(e.Patterns) == 0 {
		return fmt.Sprintf("%s is not a valid H5P library name (\"ubername\"). No name format is enabled", e.Value)
	}
	return fmt.Sprintf("%s is not a valid H5P library name (\"ubername\"). You must follow this pattern: %s",
		e.Value, strings.Join(e.Patterns, " or "))
}

// Unwrap returns ErrInvalidLibraryNameFormat for errors.Is checks.
func (e *InvalidLibraryNameFormatError) Unwrap() error { return ErrInvalidLibraryNameFormat }

// Error implements the error interface.
func (e *LibraryNotFoundError) Error() string {
	return fmt.Sprintf("library %s is not installed", e.Library.Ubername())
}

// Unwrap returns ErrLibraryNotFound for errors.Is checks.
func (e *LibraryNotFoundError) Unwrap() error { return ErrLibraryNotFound }

// Error implements the error interface.
func (e *LibraryIsDependedUponError) Error() string {
	names := make([]string, len(e.Dependents))
	for i, d := range e.Dependents {
		names[i] = d.Ubername()
	}
	return fmt.Sprintf("library %s is still required by %s", e.Library.Ubername(), strings.Join(names, ", "))
}

// Unwrap returns ErrLibraryIsDependedUpon for errors.Is checks.
func (e *LibraryIsDependedUponError) Unwrap() error { return ErrLibraryIsDependedUpon }

// Error implements the error interface.
func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("%s is not a valid package archive: %v", e.Path, e.Err)
}

// Unwrap returns the sentinel and the underlying archive error.
func (e *CorruptArchiveError) Unwrap() []error { return []error{ErrCorruptArchive, e.Err} }

// Error implements the error interface.
func (e *MissingManifestError) Error() string {
	return fmt.Sprintf("package is missing %s", e.File)
}

// Unwrap returns ErrMissingManifest for errors.Is checks.
func (e *MissingManifestError) Unwrap() error { return ErrMissingManifest }

// Error implements the error interface.
func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("malformed manifest %s: %v", e.File, e.Err)
}

// Unwrap returns the sentinel and the parse error.
func (e *MalformedManifestError) Unwrap() []error { return []error{ErrMalformedManifest, e.Err} }

// Error implements the error interface.
func (e *DisallowedFileTypeError) Error() string {
	return fmt.Sprintf("file %s has a disallowed extension (.%s)", e.File, e.Extension)
}

// Unwrap returns ErrDisallowedFileType for errors.Is checks.
func (e *DisallowedFileTypeError) Unwrap() error { return ErrDisallowedFileType }

// Error implements the error interface.
func (e *PackageTooLargeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("package size %d bytes exceeds maximum %d bytes", e.Size, e.Limit)
	}
	return fmt.Sprintf("%s: %d exceeds maximum %d", e.File, e.Size, e.Limit)
}

// Unwrap returns ErrPackageTooLarge for errors.Is checks.
func (e *PackageTooLargeError) Unwrap() error { return ErrPackageTooLarge }

// Error implements the error interface.
func (e *UnsafeArchivePathError) Error() string {
	return fmt.Sprintf("archive entry %q escapes the extraction directory", e.File)
}

// Unwrap returns ErrUnsafeArchivePath for errors.Is checks.
func (e *UnsafeArchivePathError) Unwrap() error { return ErrUnsafeArchivePath }

// Error implements the error interface.
func (e *LibraryManifestMismatchError) Error() string {
	return fmt.Sprintf("library directory %s contains library.json for %s", e.Directory, e.Manifest.Ubername())
}

// Unwrap returns ErrLibraryManifestMismatch for errors.Is checks.
func (e *LibraryManifestMismatchError) Unwrap() error { return ErrLibraryManifestMismatch }

// Error implements the error interface.
func (e *InvalidSemanticsError) Error() string {
	return fmt.Sprintf("library %s: invalid %s: %v", e.Library.Ubername(), e.File, e.Err)
}

// Unwrap returns the sentinel and the parse error.
func (e *InvalidSemanticsError) Unwrap() []error { return []error{ErrInvalidSemantics, e.Err} }

// Error implements the error interface.
func (e *CoreAPIIncompatibleError) Error() string {
	return fmt.Sprintf("library %s requires core API %s, this installation provides %s",
		e.Library.Ubername(), e.Required, e.Provided)
}

// Unwrap returns ErrCoreAPIIncompatible for errors.Is checks.
func (e *CoreAPIIncompatibleError) Unwrap() error { return ErrCoreAPIIncompatible }

// Error implements the error interface.
func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("%s requires %s, which is neither in the package nor installed",
		e.RequiredBy, e.Dependency.Ubername())
}

// Unwrap returns ErrUnresolvedDependency for errors.Is checks.
func (e *UnresolvedDependencyError) Unwrap() error { return ErrUnresolvedDependency }

// Error implements the error interface.
func (e *InvalidContentTypeFormatError) Error() string {
	return fmt.Sprintf("invalid content type %q: %s", e.ID, e.Reason)
}

// Unwrap returns ErrInvalidContentTypeFormat for errors.Is checks.
func (e *InvalidContentTypeFormatError) Unwrap() error { return ErrInvalidContentTypeFormat }

// Error implements the error interface.
func (e *InstallationDeniedError) Error() string {
	return fmt.Sprintf("user %q is not allowed to install content type %s", e.UserID, e.ID)
}

// Unwrap returns ErrInstallationDenied for errors.Is checks.
func (e *InstallationDeniedError) Unwrap() error { return ErrInstallationDenied }

// Error implements the error interface.
func (e *RemoteUnreachableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote endpoint %s answered with status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("remote endpoint %s is unreachable: %v", e.Endpoint, e.Err)
}

// Unwrap returns the sentinel and the transport error, if any.
func (e *RemoteUnreachableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteUnreachable}
	}
	return []error{ErrRemoteUnreachable, e.Err}
}

// Error implements the error interface.
func (e *ContentNotFoundError) Error() string {
	return fmt.Sprintf("content %s does not exist", e.ID)
}

// Unwrap returns ErrContentNotFound for errors.Is checks.
func (e *ContentNotFoundError) Unwrap() error { return ErrContentNotFound }

// Error implements the error interface.
func (e *LibraryFileNotFoundError) Error() string {
	return fmt.Sprintf("library %s has no file %s", e.Library.Ubername(), e.File)
}

// Unwrap matches both ErrLibraryFileNotFound and fs.ErrNotExist.
func (e *LibraryFileNotFoundError) Unwrap() []error {
	return []error{ErrLibraryFileNotFound, fs.ErrNotExist}
}

func (e *ContentFileNotFoundError) Error() string {
	return fmt.Sprintf("file %s of content %s does not exist", e.File, e.ID)
}

// Unwrap returns ErrContentFileNotFound for errors.Is checks.
func (e *ContentFileNotFoundError) Unwrap() error { return ErrContentFileNotFound }

// Error implements the error interface.
func (e *AggregateValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "package validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *AggregateValidationError) Unwrap() []error { return e.Errors }
