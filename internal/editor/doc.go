// SPDX-License-Identifier: MPL-2.0

// Package editor is the facade a hosting application talks to while content
// is being authored. It combines the library and content managers and the
// package importer into the handful of calls an editor needs: library
// overviews and assets, saving content with a generated h5p.json, loading it
// back and uploading packages.
package editor
