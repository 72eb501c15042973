// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

// ErrSyntax is returned when the document is not well-formed (before any
// schema validation happens).
var ErrSyntax = errors.New("syntax error")

// ParseResult contains the result of a successful parse operation.
type ParseResult[T any] struct {
	// Value is the decoded Go struct.
	Value *T

	// Unified is the unified CUE value, available for callers that need to
	// inspect fields the Go struct does not carry.
	Unified cue.Value
}

// ParseAndDecode compiles data as CUE, unifies it with the definition at
// schemaPath in schema and decodes the result into T. The config loader uses
// it for config.cue.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := newSettings(opts)
	filename := options.name

	if err := CheckFileSize(data, options.limit, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, FormatError(userValue.Err(), filename))
	}

	return unifyAndDecode[T](ctx, schema, schemaPath, userValue, options)
}

// ParseJSON runs the 3-step flow for a JSON document. The document is
// extracted with the strict JSON decoder, so CUE-only syntax is rejected.
//
// Decoding goes through encoding/json on the unified value, which means schema
// defaults are applied and custom json.Unmarshaler implementations on T work.
func ParseJSON[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := newSettings(opts)
	filename := options.name

	if err := CheckFileSize(data, options.limit, filename); err != nil {
		return nil, err
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, FormatError(err, filename))
	}

	ctx := cuecontext.New()
	userValue := ctx.BuildExpr(expr, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, FormatError(userValue.Err(), filename))
	}

	return unifyAndDecode[T](ctx, schema, schemaPath, userValue, options)
}

func unifyAndDecode[T any](ctx *cue.Context, schema []byte, schemaPath string, userValue cue.Value, options settings) (*ParseResult[T], error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)

	if err := unified.Validate(cue.Concrete(options.requireConcrete)); err != nil {
		return nil, FormatError(err, options.name)
	}

	var result T
	if options.requireConcrete {
		raw, err := unified.MarshalJSON()
		if err != nil {
			return nil, FormatError(err, options.name)
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("%s: %w", options.name, err)
		}
	} else if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, options.name)
	}

	return &ParseResult[T]{
		Value:   &result,
		Unified: unified,
	}, nil
}
