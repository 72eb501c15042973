// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "import package"},
			expected: "failed to import package",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "import package",
				Resource:  "./greeting-card.h5p",
			},
			expected: "failed to import package: ./greeting-card.h5p",
		},
		{
			name: "operation with cause",
			err: &ActionableError{
				Operation: "load configuration",
				Cause:     errors.New("syntax error at line 5"),
			},
			expected: "failed to load configuration: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "import package",
				Resource:  "./greeting-card.h5p",
				Cause:     errors.New("file not found"),
			},
			expected: "failed to import package: ./greeting-card.h5p: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	err := &ActionableError{
		Operation: "install content type",
		Cause:     &h5p.InstallationDeniedError{ID: "H5P.Blanks", UserID: "2"},
	}
	if !errors.Is(err, h5p.ErrInstallationDenied) {
		t.Error("errors.Is should find the sentinel through the cause")
	}
	var denied *h5p.InstallationDeniedError
	if !errors.As(err, &denied) || denied.ID != "H5P.Blanks" {
		t.Errorf("errors.As = %v", denied)
	}

	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Issue(t *testing.T) {
	t.Parallel()

	notFound := &h5p.LibraryNotFoundError{Library: h5p.LibraryName{MachineName: "H5P.X", MajorVersion: 1}}

	tests := []struct {
		name string
		err  *ActionableError
		want Id
	}{
		{"derived from cause", &ActionableError{Operation: "remove library", Cause: notFound}, LibraryNotFoundId},
		{"linked entry wins", &ActionableError{Operation: "load configuration", IssueID: ConfigLoadFailedId, Cause: notFound}, ConfigLoadFailedId},
		{"no cause", &ActionableError{Operation: "anything"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.err.Issue()
			if tt.want == 0 {
				if got != nil {
					t.Errorf("Issue() = %v, want nil", got.Id())
				}
				return
			}
			if got == nil || got.Id() != tt.want {
				t.Errorf("Issue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForError_LinkedIssue(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("load configuration").
		WithIssue(ConfigLoadFailedId).
		Wrap(errors.New("expected string")).
		BuildError()
	wrapped := fmt.Errorf("startup: %w", err)

	if got := ForError(wrapped); got == nil || got.Id() != ConfigLoadFailedId {
		t.Errorf("ForError() = %v, want ConfigLoadFailed", got)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name:     "simple error non-verbose",
			err:      &ActionableError{Operation: "load configuration"},
			contains: []string{"failed to load configuration"},
			excludes: []string{"•", "Error chain"},
		},
		{
			name: "error with suggestions",
			err: &ActionableError{
				Operation:   "import package",
				Resource:    "./greeting-card.h5p",
				Suggestions: []string{"Run 'h5pkit package validate --all'", "Check file permissions"},
			},
			contains: []string{
				"failed to import package",
				"./greeting-card.h5p",
				"• Run 'h5pkit package validate --all'",
				"• Check file permissions",
			},
		},
		{
			name: "verbose shows chain",
			err: &ActionableError{
				Operation: "import package",
				Cause:     fmt.Errorf("outer: %w", errors.New("inner")),
			},
			verbose:  true,
			contains: []string{"Error chain:", "1. outer: inner", "2. inner"},
		},
		{
			name: "non-verbose hides chain",
			err: &ActionableError{
				Operation: "import package",
				Cause:     errors.New("inner"),
			},
			excludes: []string{"Error chain:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Format() missing %q:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Format() should not contain %q:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestErrorContext_BuildError(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("some/path").BuildError() != nil {
		t.Error("BuildError() without operation should be an untyped nil")
	}

	err := NewErrorContext().
		WithOperation("load configuration").
		WithResource("/etc/h5pkit/config.cue").
		WithSuggestion("Check syntax").
		WithSuggestion("Unset H5PKIT_CONFIG").
		WithIssue(ConfigLoadFailedId).
		Wrap(errors.New("parse error")).
		BuildError()

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() = %T, want *ActionableError", err)
	}
	if ae.Operation != "load configuration" || ae.Resource != "/etc/h5pkit/config.cue" {
		t.Errorf("BuildError() = %+v", ae)
	}
	if len(ae.Suggestions) != 2 || !ae.HasSuggestions() {
		t.Errorf("Suggestions = %v, want 2", ae.Suggestions)
	}
	if ae.IssueID != ConfigLoadFailedId {
		t.Errorf("IssueID = %v, want %v", ae.IssueID, ConfigLoadFailedId)
	}
	if ae.Cause == nil || ae.Cause.Error() != "parse error" {
		t.Errorf("Cause = %v", ae.Cause)
	}
}
