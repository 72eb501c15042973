// SPDX-License-Identifier: MPL-2.0

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidPath is returned for file names that are absolute or escape
// their directory.
var ErrInvalidPath = errors.New("invalid file path")

// cleanRelative validates a slash-separated relative path and returns it in
// clean form.
func cleanRelative(p string) (string, error) {
	if p == "" || strings.Contains(p, `\`) || path.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}

// copyFS writes every regular file of src below dstDir.
func copyFS(ctx context.Context, dst afero.Fs, dstDir string, src fs.FS) error {
	return fs.WalkDir(src, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return copyFile(dst, filepath.Join(dstDir, filepath.FromSlash(p)), src, p)
	})
}

func copyFile(dst afero.Fs, dstPath string, src fs.FS, srcPath string) (err error) {
	in, err := src.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return writeFile(dst, dstPath, in)
}

func writeFile(dst afero.Fs, dstPath string, r io.Reader) error {
	if err := dst.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dstPath, err)
	}
	if err := afero.WriteReader(dst, dstPath, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", dstPath, err)
	}
	return nil
}

// listFiles returns every regular file below dir as slash-separated
// relative paths.
func listFiles(fsys afero.Fs, dir string) ([]string, error) {
	var files []string
	err := afero.Walk(fsys, dir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}
