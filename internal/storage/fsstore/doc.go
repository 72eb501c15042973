// SPDX-License-Identifier: MPL-2.0

// Package fsstore implements library, content and temporary file storage on
// an afero file system. Production code uses afero.NewOsFs rooted at the
// configured data directories; tests use afero.NewMemMapFs.
//
// Layout:
//
//	<libraries>/<Machine.Name-M.m>/library.json ...
//	<content>/<id>/h5p.json
//	<content>/<id>/content.json
//	<content>/<id>/files/<path>
//	<temporary>/<user>/<path>
package fsstore
