// SPDX-License-Identifier: MPL-2.0

// Package packaging validates, imports and exports package archives: ZIP
// files holding h5p.json, an optional content/ directory and one directory
// per bundled library.
//
// Import runs validate, extract, install libraries in dependency order, and
// then either creates content or moves content files to temporary storage.
// Validation has no side effects. The staging directory used for extraction
// is removed on every exit path.
package packaging
