// SPDX-License-Identifier: MPL-2.0

// Package kvstore holds small named blobs such as the site UUID and the
// content type cache. Memory keeps values in process, JSONFile in a single
// JSON document and SQLite in a database table.
package kvstore
