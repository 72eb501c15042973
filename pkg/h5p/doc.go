// SPDX-License-Identifier: MPL-2.0

// Package h5p holds the domain model shared by the library manager, the
// content manager and the package pipeline: library names, library and
// content manifests, users and permissions, and every error kind the
// pipeline reports.
//
// Manifests (library.json and h5p.json) are validated against the embedded
// CUE schema in schema.cue before they are decoded.
package h5p
