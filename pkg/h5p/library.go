// SPDX-License-Identifier: MPL-2.0

package h5p

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

type (
	// Flag is a boolean that library manifests encode either as 0/1 or as a
	// JSON boolean. It is always written back as 0/1.
	Flag bool

	// CoreAPI is the core API version a library requires.
	CoreAPI struct {
		MajorVersion int `json:"majorVersion"`
		MinorVersion int `json:"minorVersion"`
	}

	// FilePath is one entry of preloadedJs / preloadedCss.
	FilePath struct {
		Path string `json:"path"`
	}

	// DropCSS names a library whose stylesheets are suppressed.
	DropCSS struct {
		MachineName string `json:"machineName"`
	}

	// LibraryMetadata is the decoded library.json of a library.
	LibraryMetadata struct {
		LibraryName

		PatchVersion          int             `json:"patchVersion"`
		Title                 string          `json:"title"`
		Runnable              Flag            `json:"runnable"`
		CoreAPI               *CoreAPI        `json:"coreApi,omitempty"`
		PreloadedDependencies []LibraryName   `json:"preloadedDependencies,omitempty"`
		EditorDependencies    []LibraryName   `json:"editorDependencies,omitempty"`
		DynamicDependencies   []LibraryName   `json:"dynamicDependencies,omitempty"`
		PreloadedJS           []FilePath      `json:"preloadedJs,omitempty"`
		PreloadedCSS          []FilePath      `json:"preloadedCss,omitempty"`
		DropLibraryCSS        []DropCSS       `json:"dropLibraryCss,omitempty"`
		EmbedTypes            []string        `json:"embedTypes,omitempty"`
		Fullscreen            Flag            `json:"fullscreen,omitempty"`
		Author                string          `json:"author,omitempty"`
		License               string          `json:"license,omitempty"`
		Description           string          `json:"description,omitempty"`
		MetadataSettings      json.RawMessage `json:"metadataSettings,omitempty"`
	}

	// InstalledLibrary is a library as known to storage, with its
	// installation-scoped flags.
	InstalledLibrary struct {
		LibraryMetadata

		// Restricted libraries may only be used by users allowed to create
		// restricted content.
		Restricted bool `json:"restricted"`
	}
)

// UnmarshalJSON accepts 0, 1, true and false.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "1", "true":
		*f = true
	case "0", "false", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %s (must be 0, 1, true or false)", data)
	}
	return nil
}

// MarshalJSON writes 0 or 1.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Name returns the library's name without its patch version.
func (m *LibraryMetadata) Name() LibraryName {
	return m.LibraryName
}

// FullVersion returns "major.minor.patch".
func (m *LibraryMetadata) FullVersion() string {
	return fmt.Sprintf("%d.%d.%d", m.MajorVersion, m.MinorVersion, m.PatchVersion)
}

// CoreAPIVersion returns the required core API as a semver string ("v1.19")
// or "" when none is declared.
func (m *LibraryMetadata) CoreAPIVersion() string {
	if m.CoreAPI == nil {
		return ""
	}
	return fmt.Sprintf("v%d.%d", m.CoreAPI.MajorVersion, m.CoreAPI.MinorVersion)
}

// AllDependencies returns preloaded, editor and dynamic dependencies without
// duplicates, in declaration order.
func (m *LibraryMetadata) AllDependencies() []LibraryName {
	seen := make(map[LibraryName]bool)
	var deps []LibraryName
	for _, group := range [][]LibraryName{m.PreloadedDependencies, m.EditorDependencies, m.DynamicDependencies} {
		for _, d := range group {
			if !seen[d] {
				seen[d] = true
				deps = append(deps, d)
			}
		}
	}
	return deps
}

// DependsOn reports whether name is a direct dependency of the library.
func (m *LibraryMetadata) DependsOn(name LibraryName) bool {
	return slices.Contains(m.AllDependencies(), name)
}

// Compare orders libraries by name and then by patch version.
func (l *InstalledLibrary) Compare(other *InstalledLibrary) int {
	return cmp.Or(
		l.LibraryName.Compare(other.LibraryName),
		cmp.Compare(l.PatchVersion, other.PatchVersion),
	)
}

// IsPatchOf reports whether candidate is the same major.minor as l with a
// strictly greater patch version. Only such a candidate may replace l.
func (l *InstalledLibrary) IsPatchOf(candidate *LibraryMetadata) bool {
	return l.LibraryName == candidate.LibraryName && candidate.PatchVersion > l.PatchVersion
}
