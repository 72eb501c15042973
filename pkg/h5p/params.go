// SPDX-License-Identifier: MPL-2.0

package h5p

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrInvalidParameters is returned when content parameters are not valid JSON.
	ErrInvalidParameters = errors.New("content parameters are not valid JSON")
	// ErrParamsTooDeep is returned when content parameters nest deeper than
	// MaxParamsDepth.
	ErrParamsTooDeep = errors.New("content parameters are nested too deeply")
)

type (
	// FileReference is a file object found inside content parameters.
	FileReference struct {
		// Path is an sjson/gjson path to the "path" property.
		Path string
		// File is the referenced file, relative to the content directory.
		File string
	}

	// visitFunc is called for every object in a parameter document with the
	// object's path (empty for the root).
	visitFunc func(path string, obj gjson.Result)
)

// FindLibraryReferences returns every sub-content library referenced by a
// "library" property ("H5P.Image 1.1"), deduplicated in document order.
func FindLibraryReferences(params []byte) ([]LibraryName, error) {
	if !gjson.ValidBytes(params) {
		return nil, ErrInvalidParameters
	}
	seen := make(map[LibraryName]bool)
	var names []LibraryName
	err := walkObjects(gjson.ParseBytes(params), func(_ string, obj gjson.Result) {
		lib := obj.Get("library")
		if lib.Type != gjson.String {
			return
		}
		name, err := ParseLibraryNameWith(lib.String(), ParseOptions{AllowWhitespace: true})
		if err != nil || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// FindFileReferences returns every file object ({"path": "...", "mime": ...})
// whose path is local to the content. Remote URLs are skipped.
func FindFileReferences(params []byte) ([]FileReference, error) {
	if !gjson.ValidBytes(params) {
		return nil, ErrInvalidParameters
	}
	var refs []FileReference
	err := walkObjects(gjson.ParseBytes(params), func(path string, obj gjson.Result) {
		p := obj.Get("path")
		if p.Type != gjson.String || !isLocalFile(p.String()) {
			return
		}
		refs = append(refs, FileReference{Path: joinPath(path, "path"), File: strings.TrimSuffix(p.String(), TemporaryFileMarker)})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// RewriteFileReferences replaces every local file path for which rewrite
// returns true.
func RewriteFileReferences(params []byte, rewrite func(file string) (string, bool)) ([]byte, error) {
	refs, err := FindFileReferences(params)
	if err != nil {
		return nil, err
	}
	out := params
	for _, ref := range refs {
		replacement, ok := rewrite(ref.File)
		if !ok {
			continue
		}
		if out, err = sjson.SetBytes(out, ref.Path, replacement); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TemporaryFileMarker is appended to file references that point into
// temporary storage instead of content storage.
const TemporaryFileMarker = "#tmp"

func isLocalFile(p string) bool {
	return p != "" && !strings.Contains(p, "://") && !strings.HasPrefix(p, "/")
}

// MaxParamsDepth bounds the nesting of objects and arrays in content
// parameters.
const MaxParamsDepth = 1000

type walkFrame struct {
	value gjson.Result
	path  string
	depth int
}

// walkObjects visits every object in document order. Each child is parsed
// once from its parent's raw text.
func walkObjects(root gjson.Result, visit visitFunc) error {
	stack := []walkFrame{{value: root}}
	var children []walkFrame
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f.value.IsObject() && !f.value.IsArray() {
			continue
		}
		if f.depth >= MaxParamsDepth {
			return fmt.Errorf("%w: more than %d levels", ErrParamsTooDeep, MaxParamsDepth)
		}
		if f.value.IsObject() {
			visit(f.path, f.value)
		}

		children = children[:0]
		i := 0
		f.value.ForEach(func(key, child gjson.Result) bool {
			if !child.IsObject() && !child.IsArray() {
				i++
				return true
			}
			k := key.String()
			if f.value.IsArray() {
				k = strconv.Itoa(i)
			}
			children = append(children, walkFrame{value: child, path: joinPath(f.path, k), depth: f.depth + 1})
			i++
			return true
		})
		for j := len(children) - 1; j >= 0; j-- {
			stack = append(stack, children[j])
		}
	}
	return nil
}

func joinPath(base, key string) string {
	escaped := escapePathComponent(key)
	if base == "" {
		return escaped
	}
	return base + "." + escaped
}

func escapePathComponent(key string) string {
	var sb strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`\.*?|#@:!=<>%`, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
