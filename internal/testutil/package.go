// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/klauspost/compress/zip"
)

// GreetingCard fixture values.
const (
	GreetingCardMachineName = "H5P.GreetingCard"
	GreetingCardGreeting    = "Hello world!"
	GreetingCardImage       = "images/earth.jpg"
)

var (
	// GreetingCardName is the library bundled by the greeting card package.
	GreetingCardName = h5p.LibraryName{MachineName: GreetingCardMachineName, MajorVersion: 1, MinorVersion: 0}
	// FontAwesomeName is the dependency bundled by the greeting card package.
	FontAwesomeName = h5p.LibraryName{MachineName: "FontAwesome", MajorVersion: 4, MinorVersion: 5}

	// EarthJPEG stands in for the greeting card's image.
	EarthJPEG = []byte("\xff\xd8\xff\xe0 earth \xff\xd9")
)

type (
	// PackageBuilder assembles package archives for tests. Entries are
	// written in the order they were added.
	PackageBuilder struct {
		entries []packageEntry
	}

	packageEntry struct {
		name string
		data []byte
	}
)

// NewPackageBuilder returns an empty builder.
func NewPackageBuilder() *PackageBuilder {
	return &PackageBuilder{}
}

// Add appends a raw entry.
func (b *PackageBuilder) Add(name string, data []byte) *PackageBuilder {
	b.entries = append(b.entries, packageEntry{name: name, data: data})
	return b
}

// AddJSON appends an entry holding v encoded as JSON.
func (b *PackageBuilder) AddJSON(name string, v any) *PackageBuilder {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return b.Add(name, data)
}

// AddLibrary appends the library.json of meta under its directory, followed
// by the given library-relative files.
func (b *PackageBuilder) AddLibrary(meta *h5p.LibraryMetadata, files map[string][]byte) *PackageBuilder {
	dir := meta.DirName()
	b.AddJSON(dir+"/"+h5p.LibraryManifestFile, meta)
	for name, data := range files {
		b.Add(dir+"/"+name, data)
	}
	return b
}

// Without returns a copy of the builder without the named entry.
func (b *PackageBuilder) Without(name string) *PackageBuilder {
	out := &PackageBuilder{}
	for _, e := range b.entries {
		if e.name != name {
			out.entries = append(out.entries, e)
		}
	}
	return out
}

// Bytes returns the archive.
func (b *PackageBuilder) Bytes(t testing.TB) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range b.entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// Write writes the archive to dir/name and returns its path.
func (b *PackageBuilder) Write(t testing.TB, dir, name string) string {
	t.Helper()
	return MustWriteFile(t, dir, filepath.Base(name), b.Bytes(t))
}

// GreetingCardLibrary returns the library.json of the greeting card library
// with the given patch version.
func GreetingCardLibrary(patch int) *h5p.LibraryMetadata {
	return &h5p.LibraryMetadata{
		LibraryName:           GreetingCardName,
		PatchVersion:          patch,
		Title:                 "Greeting Card",
		Runnable:              true,
		CoreAPI:               &h5p.CoreAPI{MajorVersion: 1, MinorVersion: 19},
		PreloadedJS:           []h5p.FilePath{{Path: "greetingcard.js"}},
		PreloadedCSS:          []h5p.FilePath{{Path: "greetingcard.css"}},
		PreloadedDependencies: []h5p.LibraryName{FontAwesomeName},
		EmbedTypes:            []string{"div"},
		License:               "MIT",
	}
}

// FontAwesomeLibrary returns the library.json of the bundled dependency.
func FontAwesomeLibrary() *h5p.LibraryMetadata {
	return &h5p.LibraryMetadata{
		LibraryName:  FontAwesomeName,
		PatchVersion: 3,
		Title:        "Font Awesome",
		PreloadedCSS: []h5p.FilePath{{Path: "h5p-font-awesome.min.css"}},
	}
}

// GreetingCardManifest returns the h5p.json of the greeting card package.
func GreetingCardManifest() *h5p.ContentMetadata {
	return &h5p.ContentMetadata{
		Title:                 "Greeting Card",
		MainLibrary:           GreetingCardMachineName,
		Language:              "en",
		PreloadedDependencies: []h5p.LibraryName{GreetingCardName},
		EmbedTypes:            []string{"div"},
		License:               "U",
	}
}

// GreetingCardParameters returns content.json of the greeting card package.
func GreetingCardParameters() map[string]any {
	return map[string]any{
		"greeting": GreetingCardGreeting,
		"image": map[string]any{
			"path": GreetingCardImage,
			"mime": "image/jpeg",
		},
	}
}

// GreetingCardPackage returns a builder for the greeting card package with
// the given library patch version. The library is added before its bundled
// dependency so that installation order has to be derived from the graph.
func GreetingCardPackage(patch int) *PackageBuilder {
	return NewPackageBuilder().
		AddJSON(h5p.PackageManifestFile, GreetingCardManifest()).
		AddJSON(h5p.ContentDir+"/"+h5p.ContentParametersFile, GreetingCardParameters()).
		Add(h5p.ContentDir+"/"+GreetingCardImage, EarthJPEG).
		AddLibrary(GreetingCardLibrary(patch), map[string][]byte{
			"greetingcard.js":  []byte("var H5P = H5P || {};"),
			"greetingcard.css": []byte(".greeting-card {}"),
			"semantics.json":   []byte(`[{"name":"greeting","type":"text"}]`),
			"language/de.json": []byte(`{"semantics":[{"label":"Gruß"}]}`),
		}).
		AddLibrary(FontAwesomeLibrary(), map[string][]byte{
			"h5p-font-awesome.min.css": []byte(".fa {}"),
		})
}
