// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates documents against embedded CUE schemas.
//
// Every manifest the library manager reads (library.json, h5p.json) and the
// application config file go through the same 3-step flow:
//
//  1. Compile the embedded schema
//  2. Compile (or extract, for JSON) the user document and unify with the schema
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseJSON[LibraryMetadata](
//	    schemaBytes,
//	    libraryJSON,
//	    "#Library",
//	    cueutil.WithFilename("H5P.Example-1.0/library.json"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes the JSON path of the offending field
//	}
//	return result.Value, nil
package cueutil
