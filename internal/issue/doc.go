// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into user-facing guidance.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions. The issue catalog holds Markdown explanations for each error
// kind of the library manager, rendered for the terminal with glamour.
package issue
