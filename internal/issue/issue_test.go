// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

// allIds lists every catalog entry in declaration order.
var allIds = []Id{
	FileNotFoundId,
	ConfigLoadFailedId,
	CorruptPackageId,
	InvalidManifestId,
	DisallowedFileId,
	PackageTooLargeId,
	UnresolvedDependencyId,
	DependencyCycleId,
	LibraryInUseId,
	LibraryNotFoundId,
	ContentNotFoundId,
	HubUnreachableId,
	InstallationDeniedId,
	InvalidContentTypeId,
}

func stubRender(t *testing.T) {
	t.Helper()
	originalRender := render
	t.Cleanup(func() { render = originalRender })
	render = func(in string, _ string) (string, error) {
		return in, nil
	}
}

func TestId_Constants(t *testing.T) {
	seen := make(map[Id]bool)
	for _, id := range allIds {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	if FileNotFoundId != 1 {
		t.Errorf("FileNotFoundId = %d, want 1", FileNotFoundId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(CorruptPackageId)
	if issue == nil {
		t.Fatal("Get(CorruptPackageId) returned nil")
	}
	if issue.Id() != CorruptPackageId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), CorruptPackageId)
	}
}

func TestIssue_DocLinksAreCloned(t *testing.T) {
	issue := Get(InvalidManifestId)
	links := issue.DocLinks()
	if len(links) == 0 {
		t.Fatal("InvalidManifest issue has no doc links")
	}

	original := links[0]
	links[0] = "modified"
	if issue.DocLinks()[0] != original {
		t.Error("DocLinks() should return a clone")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{FileNotFoundId, false, "File not found"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{CorruptPackageId, false, "not a valid archive"},
		{InvalidManifestId, false, "manifest is missing or invalid"},
		{DisallowedFileId, false, "disallowed file"},
		{PackageTooLargeId, false, "too large"},
		{UnresolvedDependencyId, false, "cannot be resolved"},
		{DependencyCycleId, false, "cycle"},
		{LibraryInUseId, false, "still in use"},
		{LibraryNotFoundId, false, "Library not found"},
		{ContentNotFoundId, false, "Content not found"},
		{HubUnreachableId, false, "hub is unreachable"},
		{InstallationDeniedId, false, "Installation denied"},
		{InvalidContentTypeId, false, "Unknown content type"},
		{Id(9999), true, "unknown id"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain %q", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()
	if len(issues) != len(allIds) {
		t.Fatalf("Values() returned %d issues, want %d", len(issues), len(allIds))
	}
	for i, issue := range issues {
		if issue.Id() != allIds[i] {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), allIds[i])
		}
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	stubRender(t)

	testIssue := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue\n\nThis is a test.",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	for _, want := range []string{"See also", "<https://docs.example.com>", "<https://external.example.com>"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("Render() output missing %q:\n%s", want, rendered)
		}
	}
}

func TestIssue_Render_NoLinks(t *testing.T) {
	stubRender(t)

	testIssue := &Issue{
		id:    Id(9998),
		mdMsg: "# Test Issue\n\nNo links here.",
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}
}

func TestIssue_Render_Glamour(t *testing.T) {
	rendered, err := Get(LibraryNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "Library not found") {
		t.Errorf("rendered output lost the heading:\n%s", rendered)
	}
}

func TestAllIssuesAreRenderable(t *testing.T) {
	stubRender(t)

	for _, issue := range Values() {
		if issue.MarkdownMsg() == "" {
			t.Errorf("Issue %d has empty MarkdownMsg", issue.Id())
		}
		rendered, err := issue.Render("")
		if err != nil {
			t.Errorf("Issue %d failed to render: %v", issue.Id(), err)
		}
		if rendered == "" {
			t.Errorf("Issue %d rendered to empty string", issue.Id())
		}
	}
}

func TestForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"corrupt archive", &h5p.CorruptArchiveError{Path: "x.h5p", Err: errors.New("zip: not a valid zip file")}, CorruptPackageId},
		{"missing manifest", &h5p.MissingManifestError{File: "h5p.json"}, InvalidManifestId},
		{"wrapped unresolved dependency", fmt.Errorf("import: %w", &h5p.UnresolvedDependencyError{
			Dependency: h5p.LibraryName{MachineName: "H5P.Missing", MajorVersion: 1},
			RequiredBy: "content",
		}), UnresolvedDependencyId},
		{"cycle", fmt.Errorf("%w: H5P.A", h5p.ErrDependencyCycle), DependencyCycleId},
		{"hub", h5p.ErrRemoteUnreachable, HubUnreachableId},
		{"no content type", h5p.ErrNoContentTypeSpecified, InvalidContentTypeId},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForError(tt.err)
			if got == nil || got.Id() != tt.want {
				t.Errorf("ForError(%v) = %v, want issue %d", tt.err, got, tt.want)
			}
		})
	}

	if ForError(nil) != nil {
		t.Error("ForError(nil) should be nil")
	}
	if ForError(errors.New("something else")) != nil {
		t.Error("ForError(unknown) should be nil")
	}
}

func TestErrorIssuesReferenceCatalog(t *testing.T) {
	for _, e := range errorIssues {
		if Get(e.id) == nil {
			t.Errorf("error %v maps to missing issue %d", e.err, e.id)
		}
	}
}
