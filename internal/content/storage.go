// SPDX-License-Identifier: MPL-2.0

package content

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

type (
	// Storage persists content objects. Implementations report unknown ids
	// with *h5p.ContentNotFoundError and unknown files with
	// *h5p.ContentFileNotFoundError.
	Storage interface {
		// CreateContent stores metadata and parameters. An empty id allocates a
		// new id; a given id is created or overwritten.
		CreateContent(ctx context.Context, meta *h5p.ContentMetadata, params json.RawMessage, user h5p.User, id h5p.ContentID) (h5p.ContentID, error)
		// DeleteContent removes the content and all of its files.
		DeleteContent(ctx context.Context, id h5p.ContentID, user h5p.User) error
		// AddContentFile stores (or overwrites) a content file.
		AddContentFile(ctx context.Context, id h5p.ContentID, file string, r io.Reader, user h5p.User) error
		DeleteContentFile(ctx context.Context, id h5p.ContentID, file string, user h5p.User) error
		GetContentFileStream(ctx context.Context, id h5p.ContentID, file string, user h5p.User) (io.ReadCloser, error)
		ContentExists(ctx context.Context, id h5p.ContentID) (bool, error)
		ContentFileExists(ctx context.Context, id h5p.ContentID, file string) (bool, error)
		// ListContentFiles returns content-relative, slash-separated file paths.
		ListContentFiles(ctx context.Context, id h5p.ContentID, user h5p.User) ([]string, error)
		GetMetadata(ctx context.Context, id h5p.ContentID, user h5p.User) (*h5p.ContentMetadata, error)
		GetParameters(ctx context.Context, id h5p.ContentID, user h5p.User) (json.RawMessage, error)
		ListContent(ctx context.Context, user h5p.User) ([]h5p.ContentID, error)
		GetUserPermissions(ctx context.Context, id h5p.ContentID, user h5p.User) ([]h5p.Permission, error)
	}

	// TemporaryStorage holds files uploaded before the content they belong
	// to is saved. Files are scoped to their owner and expire.
	TemporaryStorage interface {
		// SaveFile stores r under a name derived from name and returns the
		// stored name, which is unique among the user's files.
		SaveFile(ctx context.Context, name string, r io.Reader, user h5p.User, expiresAt time.Time) (string, error)
		DeleteFile(ctx context.Context, name string, user h5p.User) error
		GetFileStream(ctx context.Context, name string, user h5p.User) (io.ReadCloser, error)
		FileExists(ctx context.Context, name string, user h5p.User) (bool, error)
		// DeleteExpired removes every file whose expiry is before now and
		// returns how many were removed.
		DeleteExpired(ctx context.Context, now time.Time) (int, error)
	}
)
