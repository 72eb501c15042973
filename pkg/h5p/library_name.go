// SPDX-License-Identifier: MPL-2.0

package h5p

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// HyphenForm renders names as "H5P.Example-1.0". It is the form used for
	// directory names inside packages and storage.
	HyphenForm NameForm = iota
	// WhitespaceForm renders names as "H5P.Example 1.0". Editors and content
	// parameters use it.
	WhitespaceForm
)

var (
	machineNamePattern = regexp.MustCompile(`^[A-Za-z][\w.-]*$`)
	hyphenNamePattern  = regexp.MustCompile(`^([A-Za-z][\w.-]*)-(\d+)\.(\d+)$`)
	spaceNamePattern   = regexp.MustCompile(`^([A-Za-z][\w.-]*) (\d+)\.(\d+)$`)
)

type (
	// NameForm selects one of the two textual forms of a LibraryName.
	NameForm int

	// LibraryName identifies a library by machine name and major/minor version.
	// Two values are equal when all three fields are equal, so LibraryName can
	// be used as a map key.
	LibraryName struct {
		MachineName  string `json:"machineName"`
		MajorVersion int    `json:"majorVersion"`
		MinorVersion int    `json:"minorVersion"`
	}

	// ParseOptions selects the forms accepted by ParseLibraryNameWith.
	ParseOptions struct {
		AllowHyphen     bool
		AllowWhitespace bool
	}
)

// ParseLibraryName parses the hyphen form ("H5P.Example-1.0").
func ParseLibraryName(s string) (LibraryName, error) {
	return ParseLibraryNameWith(s, ParseOptions{AllowHyphen: true})
}

// ParseLibraryNameWith parses s accepting only the forms enabled in opts.
// With no form enabled every input fails.
func ParseLibraryNameWith(s string, opts ParseOptions) (LibraryName, error) {
	var patterns []string
	if opts.AllowHyphen {
		patterns = append(patterns, "H5P.Example-1.0")
		if m := hyphenNamePattern.FindStringSubmatch(s); m != nil {
			if name, ok := fromMatch(m); ok {
				return name, nil
			}
		}
	}
	if opts.AllowWhitespace {
		patterns = append(patterns, "H5P.Example 1.0")
		if m := spaceNamePattern.FindStringSubmatch(s); m != nil {
			if name, ok := fromMatch(m); ok {
				return name, nil
			}
		}
	}
	return LibraryName{}, &InvalidLibraryNameFormatError{Value: s, Patterns: patterns}
}

func fromMatch(m []string) (LibraryName, bool) {
	major, err := strconv.Atoi(m[2])
	if err != nil {
		return LibraryName{}, false
	}
	minor, err := strconv.Atoi(m[3])
	if err != nil {
		return LibraryName{}, false
	}
	return LibraryName{MachineName: m[1], MajorVersion: major, MinorVersion: minor}, true
}

// IsValidMachineName reports whether s is syntactically a library machine name.
func IsValidMachineName(s string) bool {
	return machineNamePattern.MatchString(s)
}

// Format renders the name in the requested form.
func (n LibraryName) Format(form NameForm) string {
	sep := "-"
	if form == WhitespaceForm {
		sep = " "
	}
	return fmt.Sprintf("%s%s%d.%d", n.MachineName, sep, n.MajorVersion, n.MinorVersion)
}

// Ubername returns the hyphen form.
func (n LibraryName) Ubername() string {
	return n.Format(HyphenForm)
}

// String returns the whitespace form.
func (n LibraryName) String() string {
	return n.Format(WhitespaceForm)
}

// DirName is the directory a library occupies inside a package and in storage.
func (n LibraryName) DirName() string {
	return n.Ubername()
}

// Validate checks the machine name and versions.
func (n LibraryName) Validate() error {
	if !IsValidMachineName(n.MachineName) || n.MajorVersion < 0 || n.MinorVersion < 0 {
		return &InvalidLibraryNameFormatError{Value: n.Ubername(), Patterns: []string{"H5P.Example-1.0"}}
	}
	return nil
}

// Compare orders names by machine name, then major, then minor version.
func (n LibraryName) Compare(other LibraryName) int {
	return cmp.Or(
		strings.Compare(n.MachineName, other.MachineName),
		cmp.Compare(n.MajorVersion, other.MajorVersion),
		cmp.Compare(n.MinorVersion, other.MinorVersion),
	)
}
