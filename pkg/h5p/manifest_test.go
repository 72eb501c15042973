// SPDX-License-Identifier: MPL-2.0

package h5p

import (
	"errors"
	"testing"
)

const greetingLibraryJSON = `{
  "title": "Greeting Card",
  "machineName": "Org.Greeting",
  "majorVersion": 1,
  "minorVersion": 0,
  "patchVersion": 6,
  "runnable": 1,
  "coreApi": {"majorVersion": 1, "minorVersion": 19},
  "preloadedJs": [{"path": "greetingcard.js"}],
  "preloadedCss": [{"path": "greetingcard.css"}],
  "preloadedDependencies": [{"machineName": "FontAwesome", "majorVersion": 4, "minorVersion": 5}],
  "author": "Joubel",
  "metadataSettings": {"disable": false}
}`

func TestParseLibraryMetadata(t *testing.T) {
	t.Parallel()

	meta, err := ParseLibraryMetadata([]byte(greetingLibraryJSON), "Org.Greeting-1.0/library.json")
	if err != nil {
		t.Fatalf("ParseLibraryMetadata() error = %v", err)
	}

	want := LibraryName{MachineName: "Org.Greeting", MajorVersion: 1, MinorVersion: 0}
	if meta.Name() != want {
		t.Errorf("Name() = %+v, want %+v", meta.Name(), want)
	}
	if meta.PatchVersion != 6 || meta.FullVersion() != "1.0.6" {
		t.Errorf("FullVersion() = %q", meta.FullVersion())
	}
	if !meta.Runnable {
		t.Error("Runnable should be true")
	}
	if meta.CoreAPIVersion() != "v1.19" {
		t.Errorf("CoreAPIVersion() = %q", meta.CoreAPIVersion())
	}
	if len(meta.PreloadedJS) != 1 || meta.PreloadedJS[0].Path != "greetingcard.js" {
		t.Errorf("PreloadedJS = %+v", meta.PreloadedJS)
	}
	if len(meta.PreloadedDependencies) != 1 || meta.PreloadedDependencies[0].MachineName != "FontAwesome" {
		t.Errorf("PreloadedDependencies = %+v", meta.PreloadedDependencies)
	}
}

func TestParseLibraryMetadataErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"title": `},
		{"missing title", `{"machineName":"H5P.A","majorVersion":1,"minorVersion":0,"patchVersion":0}`},
		{"string version", `{"title":"A","machineName":"H5P.A","majorVersion":"1","minorVersion":0,"patchVersion":0}`},
		{"bad machine name", `{"title":"A","machineName":"bad name","majorVersion":1,"minorVersion":0,"patchVersion":0}`},
		{"bad runnable", `{"title":"A","machineName":"H5P.A","majorVersion":1,"minorVersion":0,"patchVersion":0,"runnable":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseLibraryMetadata([]byte(tt.data), "library.json")
			if !errors.Is(err, ErrMalformedManifest) {
				t.Fatalf("expected ErrMalformedManifest, got %v", err)
			}
		})
	}
}

func TestParseContentMetadata(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		data := `{"title":"Greeting","mainLibrary":"Org.Greeting","preloadedDependencies":[{"machineName":"Org.Greeting","majorVersion":1,"minorVersion":0}]}`
		meta, err := ParseContentMetadata([]byte(data), "h5p.json")
		if err != nil {
			t.Fatalf("ParseContentMetadata() error = %v", err)
		}
		if meta.Language != UndeterminedLanguage {
			t.Errorf("Language = %q, want %q", meta.Language, UndeterminedLanguage)
		}
		if len(meta.EmbedTypes) != 1 || meta.EmbedTypes[0] != "div" {
			t.Errorf("EmbedTypes = %v", meta.EmbedTypes)
		}
		main, err := meta.MainLibraryName()
		if err != nil || main.Ubername() != "Org.Greeting-1.0" {
			t.Errorf("MainLibraryName() = %v, %v", main, err)
		}
	})

	tests := []struct {
		name string
		data string
	}{
		{"no dependencies", `{"title":"x","mainLibrary":"H5P.A","preloadedDependencies":[]}`},
		{"no title", `{"mainLibrary":"H5P.A","preloadedDependencies":[{"machineName":"H5P.A","majorVersion":1,"minorVersion":0}]}`},
		{"bad language", `{"title":"x","language":"not a tag!","mainLibrary":"H5P.A","preloadedDependencies":[{"machineName":"H5P.A","majorVersion":1,"minorVersion":0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseContentMetadata([]byte(tt.data), "h5p.json"); !errors.Is(err, ErrMalformedManifest) {
				t.Fatalf("expected ErrMalformedManifest, got %v", err)
			}
		})
	}
}

func TestMainLibraryNameMissing(t *testing.T) {
	t.Parallel()

	meta := &ContentMetadata{MainLibrary: "H5P.Missing", PreloadedDependencies: []LibraryName{{MachineName: "H5P.Other", MajorVersion: 1}}}
	if _, err := meta.MainLibraryName(); err == nil {
		t.Error("expected error for unresolvable main library")
	}
}

func TestFlagJSON(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Flag{"1": true, "true": true, "0": false, "false": false} {
		var f Flag
		if err := f.UnmarshalJSON([]byte(input)); err != nil {
			t.Fatalf("UnmarshalJSON(%s) error = %v", input, err)
		}
		if f != want {
			t.Errorf("UnmarshalJSON(%s) = %v, want %v", input, f, want)
		}
	}
	var f Flag
	if err := f.UnmarshalJSON([]byte(`"yes"`)); err == nil {
		t.Error("expected error for string flag")
	}
	if out, _ := Flag(true).MarshalJSON(); string(out) != "1" {
		t.Errorf("MarshalJSON(true) = %s", out)
	}
}

func TestInstalledLibraryIsPatchOf(t *testing.T) {
	t.Parallel()

	name := LibraryName{MachineName: "H5P.A", MajorVersion: 1, MinorVersion: 0}
	installed := &InstalledLibrary{LibraryMetadata: LibraryMetadata{LibraryName: name, PatchVersion: 6}}

	tests := []struct {
		candidate LibraryMetadata
		want      bool
	}{
		{LibraryMetadata{LibraryName: name, PatchVersion: 7}, true},
		{LibraryMetadata{LibraryName: name, PatchVersion: 6}, false},
		{LibraryMetadata{LibraryName: name, PatchVersion: 5}, false},
		{LibraryMetadata{LibraryName: LibraryName{MachineName: "H5P.A", MajorVersion: 1, MinorVersion: 1}, PatchVersion: 9}, false},
	}
	for _, tt := range tests {
		if got := installed.IsPatchOf(&tt.candidate); got != tt.want {
			t.Errorf("IsPatchOf(%s) = %v, want %v", tt.candidate.FullVersion(), got, tt.want)
		}
	}
}
