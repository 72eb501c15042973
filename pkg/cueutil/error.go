// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrFileTooLarge is returned when a document exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

type (
	// Problem is one schema violation of a document.
	Problem struct {
		// Path is the JSON path of the offending field, e.g.
		// "preloadedDependencies[0].majorVersion". Empty for document-level
		// problems.
		Path    string
		Message string
	}

	// ValidationError lists every schema violation CUE reported for File.
	ValidationError struct {
		File     string
		Problems []Problem
	}
)

// Error renders one problem inline and several as an indented list:
//
//	H5P.Example-1.0/library.json: preloadedDependencies[0].majorVersion: conflicting values "1" and int
//	config.cue: validation failed:
//	  hub.refresh_interval: expected string, got int
//	  log_level: 3 errors in empty disjunction
func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.File + ": " + e.Problems[0].String()
	}
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// FormatError converts a CUE error into a *ValidationError for file. Errors
// that carry no CUE detail are wrapped with the file name only.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	ve := &ValidationError{File: file, Problems: make([]Problem, 0, len(cueErrs))}
	for _, ce := range cueErrs {
		p := Problem{Path: formatPath(cueerrors.Path(ce)), Message: ce.Error()}
		// Some messages repeat the path as a prefix.
		if p.Path != "" {
			if rest, ok := strings.CutPrefix(p.Message, p.Path); ok {
				p.Message = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			}
		}
		ve.Problems = append(ve.Problems, p)
	}
	return ve
}

// formatPath joins CUE path selectors into JSON-path notation:
// ["deps", "0", "name"] becomes "deps[0].name". A leading numeric selector
// is a field name, not an index.
func formatPath(selectors []string) string {
	var sb strings.Builder
	for i, sel := range selectors {
		if _, err := strconv.ParseUint(sel, 10, 64); err == nil && i > 0 {
			sb.WriteString("[" + sel + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(sel)
	}
	return sb.String()
}

// CheckFileSize returns an error wrapping ErrFileTooLarge when data is
// larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, file string) error {
	if size := int64(len(data)); size > maxSize {
		return fmt.Errorf("%s: %w: %d bytes exceeds maximum %d bytes", file, ErrFileTooLarge, size, maxSize)
	}
	return nil
}
