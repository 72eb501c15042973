// SPDX-License-Identifier: MPL-2.0

package cmd

import "strconv"

const (
	ExitFailure = 1
	// ExitInvalidPackage reports a package that failed validation, so
	// scripts can tell a bad upload from an operational failure.
	ExitInvalidPackage = 2
)

// ExitError carries the process exit code out of a RunE handler. Rendered
// marks errors already printed by App.failWith so the fang error handler
// stays quiet.
type ExitError struct {
	Code     int
	Err      error
	Rendered bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
