// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Values are resolved in layers: built-in defaults, then config.cue from the
// user configuration directory (or an explicit path), then H5PKIT_*
// environment variables. The file is validated against the embedded #Config
// schema (config_schema.cue) before it is merged, so unknown fields and
// malformed values are reported with their CUE path.
package config
