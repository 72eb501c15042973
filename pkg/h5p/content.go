// SPDX-License-Identifier: MPL-2.0

package h5p

import "fmt"

// Permissions a user can hold on a content object.
const (
	PermissionDelete   Permission = "delete"
	PermissionDownload Permission = "download"
	PermissionEdit     Permission = "edit"
	PermissionEmbed    Permission = "embed"
	PermissionView     Permission = "view"
)

type (
	// ContentID identifies a content object. Storage assigns it and never
	// reuses it.
	ContentID string

	// Permission is an action a user may perform on content.
	Permission string

	// Author is an entry of the authors list in h5p.json.
	Author struct {
		Name string `json:"name"`
		Role string `json:"role,omitempty"`
	}

	// Change is an entry of the changes list in h5p.json.
	Change struct {
		Date   string `json:"date,omitempty"`
		Author string `json:"author,omitempty"`
		Log    string `json:"log,omitempty"`
	}

	// ContentMetadata is the decoded h5p.json of a content object or package.
	ContentMetadata struct {
		Title                 string        `json:"title"`
		MainLibrary           string        `json:"mainLibrary"`
		Language              string        `json:"language"`
		PreloadedDependencies []LibraryName `json:"preloadedDependencies"`
		EditorDependencies    []LibraryName `json:"editorDependencies,omitempty"`
		DynamicDependencies   []LibraryName `json:"dynamicDependencies,omitempty"`
		EmbedTypes            []string      `json:"embedTypes"`
		License               string        `json:"license,omitempty"`
		LicenseVersion        string        `json:"licenseVersion,omitempty"`
		LicenseExtras         string        `json:"licenseExtras,omitempty"`
		Authors               []Author      `json:"authors,omitempty"`
		Source                string        `json:"source,omitempty"`
		YearFrom              int           `json:"yearFrom,omitempty"`
		YearTo                int           `json:"yearTo,omitempty"`
		Changes               []Change      `json:"changes,omitempty"`
		AuthorComments        string        `json:"authorComments,omitempty"`
		ExtraTitle            string        `json:"extraTitle,omitempty"`
		DefaultLanguage       string        `json:"defaultLanguage,omitempty"`
		A11yTitle             string        `json:"a11yTitle,omitempty"`
	}
)

// String returns the id as a string.
func (id ContentID) String() string { return string(id) }

// MainLibraryName resolves mainLibrary against the preloaded dependencies.
func (m *ContentMetadata) MainLibraryName() (LibraryName, error) {
	for _, dep := range m.PreloadedDependencies {
		if dep.MachineName == m.MainLibrary {
			return dep, nil
		}
	}
	return LibraryName{}, fmt.Errorf("main library %q is not among the preloaded dependencies", m.MainLibrary)
}

// AllDependencies returns preloaded, editor and dynamic dependencies without
// duplicates, in declaration order.
func (m *ContentMetadata) AllDependencies() []LibraryName {
	lib := LibraryMetadata{
		PreloadedDependencies: m.PreloadedDependencies,
		EditorDependencies:    m.EditorDependencies,
		DynamicDependencies:   m.DynamicDependencies,
	}
	return lib.AllDependencies()
}
