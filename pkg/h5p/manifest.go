// SPDX-License-Identifier: MPL-2.0

package h5p

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/h5pkit/h5pkit/pkg/cueutil"

	"golang.org/x/text/language"
)

const (
	// PackageManifestFile is the content manifest at the root of a package.
	PackageManifestFile = "h5p.json"
	// LibraryManifestFile is the manifest inside every library directory.
	LibraryManifestFile = "library.json"
	// SemanticsFile describes a library's parameter schema.
	SemanticsFile = "semantics.json"
	// ContentDir holds content.json and the content's files inside a package.
	ContentDir = "content"
	// ContentParametersFile is the parameters document inside ContentDir.
	ContentParametersFile = "content.json"
	// LanguageDir holds a library's translation files.
	LanguageDir = "language"

	// UndeterminedLanguage is the language of content that declares none.
	UndeterminedLanguage = "und"
)

//go:embed schema.cue
var schemaBytes []byte

// ParseLibraryMetadata validates data against the library.json schema and
// decodes it. Any failure is reported as a *MalformedManifestError.
func ParseLibraryMetadata(data []byte, filename string) (*LibraryMetadata, error) {
	result, err := cueutil.ParseJSON[LibraryMetadata](schemaBytes, data, "#Library", cueutil.WithFilename(filename))
	if err != nil {
		return nil, &MalformedManifestError{File: filename, Err: err}
	}
	return result.Value, nil
}

// ParseContentMetadata validates data against the h5p.json schema and
// decodes it. Any failure is reported as a *MalformedManifestError.
func ParseContentMetadata(data []byte, filename string) (*ContentMetadata, error) {
	result, err := cueutil.ParseJSON[ContentMetadata](schemaBytes, data, "#Manifest", cueutil.WithFilename(filename))
	if err != nil {
		return nil, &MalformedManifestError{File: filename, Err: err}
	}
	if err := ValidateLanguage(result.Value.Language); err != nil {
		return nil, &MalformedManifestError{File: filename, Err: err}
	}
	return result.Value, nil
}

// ValidateLanguage checks that tag is a BCP 47 language tag.
func ValidateLanguage(tag string) error {
	if tag == UndeterminedLanguage {
		return nil
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("invalid language %q: %w", tag, err)
	}
	return nil
}

// ValidJSON reports whether data is a well-formed JSON document.
func ValidJSON(data []byte) error {
	var v any
	return json.Unmarshal(data, &v)
}
