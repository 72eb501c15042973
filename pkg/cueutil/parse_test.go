// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Manifest: {
	title:       string & !=""
	language:    string | *"und"
	count:       int & >=0
	enabled?:    bool
	...
}
`

type testManifest struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Count    int    `json:"count"`
	Enabled  bool   `json:"enabled,omitempty"`
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid document decodes with defaults", func(t *testing.T) {
		t.Parallel()

		result, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`{"title":"Greeting","count":2,"extra":"kept"}`), "#Manifest")
		if err != nil {
			t.Fatalf("ParseJSON() error = %v", err)
		}
		if result.Value.Title != "Greeting" {
			t.Errorf("Title = %q, want %q", result.Value.Title, "Greeting")
		}
		if result.Value.Language != "und" {
			t.Errorf("Language = %q, want default %q", result.Value.Language, "und")
		}
		if result.Value.Count != 2 {
			t.Errorf("Count = %d, want 2", result.Value.Count)
		}
	})

	t.Run("schema violation reports field path", func(t *testing.T) {
		t.Parallel()

		_, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`{"title":"x","count":-1}`), "#Manifest", WithFilename("h5p.json"))
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, ErrSyntax) {
			t.Errorf("schema violation must not be a syntax error: %v", err)
		}
		if !strings.Contains(err.Error(), "h5p.json") || !strings.Contains(err.Error(), "count") {
			t.Errorf("error should name file and field, got: %v", err)
		}
	})

	t.Run("missing required field fails", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`{"count":1}`), "#Manifest"); err == nil {
			t.Fatal("expected error for missing title")
		}
	})

	t.Run("malformed JSON is a syntax error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`{"title":`), "#Manifest")
		if !errors.Is(err, ErrSyntax) {
			t.Fatalf("expected ErrSyntax, got %v", err)
		}
	})

	t.Run("CUE syntax is rejected for JSON input", func(t *testing.T) {
		t.Parallel()

		_, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`title: "x"`), "#Manifest")
		if !errors.Is(err, ErrSyntax) {
			t.Fatalf("expected ErrSyntax, got %v", err)
		}
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()

		_, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`{"title":"x","count":1}`), "#Manifest", WithMaxFileSize(4))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Fatalf("expected size error, got %v", err)
		}
	})

	t.Run("unknown schema path", func(t *testing.T) {
		t.Parallel()

		_, err := ParseJSON[testManifest]([]byte(testSchema), []byte(`{"title":"x","count":1}`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "internal error") {
			t.Fatalf("expected internal error, got %v", err)
		}
	})
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("CUE document", func(t *testing.T) {
		t.Parallel()

		result, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte("title: \"cfg\"\ncount: 3\n"), "#Manifest")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Title != "cfg" || result.Value.Count != 3 {
			t.Errorf("unexpected value: %+v", result.Value)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte("title: \"cfg"), "#Manifest", WithFilename("config.cue"))
		if !errors.Is(err, ErrSyntax) {
			t.Fatalf("expected ErrSyntax, got %v", err)
		}
	})
}
