// SPDX-License-Identifier: MPL-2.0

// Package migrations embeds the key-value store schema.
package migrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
