// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"path"
	"slices"
	"strings"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

// Default limits.
const (
	DefaultMaxFileSize  int64 = 64 << 20
	DefaultMaxTotalSize int64 = 512 << 20
	DefaultMaxDepth           = 16
	// DefaultCoreAPI is the newest core API libraries may require.
	DefaultCoreAPI = "v1.27"
)

// DefaultDisallowedExtensions lists file types that must never be served
// from content or library directories.
var DefaultDisallowedExtensions = []string{
	"asp", "aspx", "bat", "cgi", "cmd", "com", "dll", "dylib", "exe", "jar",
	"jsp", "msi", "phar", "php", "pl", "ps1", "py", "rb", "sh", "so", "vbs",
}

// Limits bounds what the validator accepts.
type Limits struct {
	// MaxFileSize is the largest allowed uncompressed entry.
	MaxFileSize int64
	// MaxTotalSize is the largest allowed sum of uncompressed entries.
	MaxTotalSize int64
	// MaxDepth is the deepest allowed entry, counted in path components.
	MaxDepth int
	// DisallowedExtensions are compared case-insensitively, without the dot.
	DisallowedExtensions []string
	// CoreAPI is the provided core API version in semver form ("v1.27").
	CoreAPI string
	// Aggregate makes validation collect every violation instead of
	// stopping at the first one.
	Aggregate bool
}

// DefaultLimits returns the default limits with fail-fast validation.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:          DefaultMaxFileSize,
		MaxTotalSize:         DefaultMaxTotalSize,
		MaxDepth:             DefaultMaxDepth,
		DisallowedExtensions: slices.Clone(DefaultDisallowedExtensions),
		CoreAPI:              DefaultCoreAPI,
	}
}

func (l Limits) disallowed(name string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return "", false
	}
	for _, d := range l.DisallowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(d, "."), ext) {
			return ext, true
		}
	}
	return "", false
}

// cleanEntryName validates an archive entry name and returns it without a
// trailing slash. Names that are absolute, use backslashes, carry a volume
// name or climb out of the archive root are rejected.
func cleanEntryName(name string) (string, error) {
	trimmed := strings.TrimSuffix(name, "/")
	if trimmed == "" || strings.Contains(trimmed, `\`) || path.IsAbs(trimmed) ||
		(len(trimmed) >= 2 && trimmed[1] == ':') {
		return "", &h5p.UnsafeArchivePathError{File: name}
	}
	cleaned := path.Clean(trimmed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned != trimmed {
		return "", &h5p.UnsafeArchivePathError{File: name}
	}
	return cleaned, nil
}

func depth(name string) int {
	return strings.Count(name, "/") + 1
}
