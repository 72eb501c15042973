// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

const (
	dirPerm       = 0o755
	filePerm      = 0o644
	osCreateFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
)

// Extract unpacks the archive at archivePath into dir on dst. Entry names
// and sizes are checked again while extracting, so a package that changed
// after validation cannot escape dir or exceed the limits.
func Extract(ctx context.Context, archivePath string, dst afero.Fs, dir string, limits Limits) (err error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &h5p.CorruptArchiveError{Path: archivePath, Err: err}
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var total int64
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := cleanEntryName(file.Name)
		if err != nil {
			return err
		}
		if ext, bad := limits.disallowed(name); bad && !file.FileInfo().IsDir() {
			return &h5p.DisallowedFileTypeError{File: name, Extension: ext}
		}

		destPath := path.Join(dir, name)
		if file.FileInfo().IsDir() {
			if err := dst.MkdirAll(destPath, dirPerm); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if err := dst.MkdirAll(path.Dir(destPath), dirPerm); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}

		n, err := extractFile(file, dst, destPath, limits.MaxFileSize)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
		total += n
		if limits.MaxTotalSize > 0 && total > limits.MaxTotalSize {
			return &h5p.PackageTooLargeError{Size: total, Limit: limits.MaxTotalSize}
		}
	}
	return nil
}

// extractFile copies a single entry and returns the number of bytes written.
func extractFile(file *zip.File, dst afero.Fs, destPath string, maxSize int64) (n int64, err error) {
	rc, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	destFile, err := dst.OpenFile(destPath, osCreateFlags, filePerm)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := destFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var src io.Reader = rc
	if maxSize > 0 {
		src = io.LimitReader(rc, maxSize+1)
	}
	n, err = io.Copy(destFile, src)
	if err != nil {
		return n, err
	}
	if maxSize > 0 && n > maxSize {
		return n, &h5p.PackageTooLargeError{File: file.Name, Size: n, Limit: maxSize}
	}
	return n, nil
}
