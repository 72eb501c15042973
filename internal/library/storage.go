// SPDX-License-Identifier: MPL-2.0

package library

import (
	"context"
	"io"
	"io/fs"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

// Storage persists library files. Implementations report missing libraries
// with *h5p.LibraryNotFoundError.
type Storage interface {
	// LibraryExists reports whether any patch of name is installed.
	LibraryExists(ctx context.Context, name h5p.LibraryName) (bool, error)
	// ListInstalled returns installed libraries, restricted to machineNames
	// when any are given.
	ListInstalled(ctx context.Context, machineNames ...string) ([]h5p.LibraryName, error)
	// LoadMetadata returns the stored library.json.
	LoadMetadata(ctx context.Context, name h5p.LibraryName) (*h5p.LibraryMetadata, error)
	// InstallLibrary stores a library that is not installed yet. files is
	// rooted at the library directory and includes library.json.
	InstallLibrary(ctx context.Context, meta *h5p.LibraryMetadata, files fs.FS) error
	// UpdateLibrary replaces every file of an installed library.
	UpdateLibrary(ctx context.Context, meta *h5p.LibraryMetadata, files fs.FS) error
	// DeleteLibrary removes the library and all of its files.
	DeleteLibrary(ctx context.Context, name h5p.LibraryName) error
	// GetFileStream opens a library-relative file.
	GetFileStream(ctx context.Context, name h5p.LibraryName, file string) (io.ReadCloser, error)
	// ListFiles returns every library-relative file path, slash separated.
	ListFiles(ctx context.Context, name h5p.LibraryName) ([]string, error)
	// FileExists reports whether a library-relative file exists.
	FileExists(ctx context.Context, name h5p.LibraryName, file string) (bool, error)
}
