// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/h5pkit/h5pkit/internal/dag"
	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/klauspost/compress/zip"
	"golang.org/x/mod/semver"
)

// contentRequirer names the content as the declaring side of a dependency.
const contentRequirer = "content"

type (
	// InstalledChecker answers whether a library is installed.
	// *library.Manager implements it.
	InstalledChecker interface {
		IsInstalled(ctx context.Context, name h5p.LibraryName) (bool, error)
	}

	// Validator checks package archives without touching any storage.
	Validator struct {
		libraries InstalledChecker
		limits    Limits
		logger    *slog.Logger
	}

	// ValidatorOption configures a Validator.
	ValidatorOption func(*Validator)

	// Package describes a validated archive.
	Package struct {
		Path     string
		Manifest *h5p.ContentMetadata
		// Libraries are the bundled libraries in installation order:
		// every library comes after the bundled libraries it depends on.
		Libraries  []*PackageLibrary
		HasContent bool
		// TotalSize is the sum of uncompressed entry sizes.
		TotalSize int64
	}

	// PackageLibrary is a library bundled in a package.
	PackageLibrary struct {
		DirName  string
		Metadata *h5p.LibraryMetadata
	}

	// collector gathers violations. In fail-fast mode the first one stops
	// validation.
	collector struct {
		aggregate bool
		errs      []error
	}

	archive struct {
		files map[string]*zip.File
		dirs  []string
	}
)

// WithValidatorLogger sets the logger. The default discards everything.
func WithValidatorLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a Validator that resolves dependencies against the
// bundled libraries and against libraries.
func NewValidator(libraries InstalledChecker, limits Limits, opts ...ValidatorOption) *Validator {
	v := &Validator{
		libraries: libraries,
		limits:    limits,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Limits returns the validator's limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// add records err and reports whether validation must stop.
func (c *collector) add(err error) bool {
	c.errs = append(c.errs, err)
	return !c.aggregate
}

func (c *collector) stopped() bool {
	return !c.aggregate && len(c.errs) > 0
}

func (c *collector) err() error {
	switch {
	case len(c.errs) == 0:
		return nil
	case !c.aggregate:
		return c.errs[0]
	default:
		return &h5p.AggregateValidationError{Errors: c.errs}
	}
}

// Validate checks the archive at archivePath. A corrupt archive is always
// reported on its own; every other violation is collected when the limits ask
// for aggregation.
func (v *Validator) Validate(ctx context.Context, archivePath string) (pkg *Package, err error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &h5p.CorruptArchiveError{Path: archivePath, Err: err}
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	c := &collector{aggregate: v.limits.Aggregate}
	pkg = &Package{Path: archivePath}

	arc := v.checkEntries(reader.File, pkg, c)
	if c.stopped() {
		return nil, c.err()
	}

	v.checkManifest(arc, pkg, c)
	if c.stopped() {
		return nil, c.err()
	}

	v.checkLibraries(arc, pkg, c)
	if c.stopped() {
		return nil, c.err()
	}

	if err := v.checkDependencies(ctx, pkg, c); err != nil {
		return nil, err
	}
	if err := c.err(); err != nil {
		return nil, err
	}

	v.logger.Debug("package validated", "path", archivePath, "libraries", len(pkg.Libraries), "content", pkg.HasContent)
	return pkg, nil
}

func (v *Validator) checkEntries(files []*zip.File, pkg *Package, c *collector) *archive {
	arc := &archive{files: make(map[string]*zip.File, len(files))}
	seenDirs := make(map[string]bool)
	totalReported := false

	for _, f := range files {
		name, err := cleanEntryName(f.Name)
		if err != nil {
			if c.add(err) {
				return arc
			}
			continue
		}
		if d := depth(name); v.limits.MaxDepth > 0 && d > v.limits.MaxDepth {
			if c.add(&h5p.PackageTooLargeError{File: name + " (depth)", Size: int64(d), Limit: int64(v.limits.MaxDepth)}) {
				return arc
			}
			continue
		}

		if top, _, nested := strings.Cut(name, "/"); nested || f.FileInfo().IsDir() {
			if top != h5p.ContentDir && !seenDirs[top] {
				seenDirs[top] = true
				arc.dirs = append(arc.dirs, top)
			}
		}
		if f.FileInfo().IsDir() {
			continue
		}

		if ext, bad := v.limits.disallowed(name); bad {
			if c.add(&h5p.DisallowedFileTypeError{File: name, Extension: ext}) {
				return arc
			}
			continue
		}

		size := int64(f.UncompressedSize64)
		if v.limits.MaxFileSize > 0 && size > v.limits.MaxFileSize {
			if c.add(&h5p.PackageTooLargeError{File: name, Size: size, Limit: v.limits.MaxFileSize}) {
				return arc
			}
			continue
		}
		pkg.TotalSize += size
		if v.limits.MaxTotalSize > 0 && pkg.TotalSize > v.limits.MaxTotalSize && !totalReported {
			totalReported = true
			if c.add(&h5p.PackageTooLargeError{Size: pkg.TotalSize, Limit: v.limits.MaxTotalSize}) {
				return arc
			}
		}

		arc.files[name] = f
	}
	return arc
}

func (v *Validator) checkManifest(arc *archive, pkg *Package, c *collector) {
	f, ok := arc.files[h5p.PackageManifestFile]
	if !ok {
		c.add(&h5p.MissingManifestError{File: h5p.PackageManifestFile})
		return
	}
	data, err := v.readEntry(f)
	if err != nil {
		c.add(&h5p.MalformedManifestError{File: h5p.PackageManifestFile, Err: err})
		return
	}
	meta, err := h5p.ParseContentMetadata(data, h5p.PackageManifestFile)
	if err != nil {
		c.add(err)
		return
	}
	if _, err := meta.MainLibraryName(); err != nil {
		if c.add(&h5p.MalformedManifestError{File: h5p.PackageManifestFile, Err: err}) {
			return
		}
	}
	pkg.Manifest = meta

	paramsPath := path.Join(h5p.ContentDir, h5p.ContentParametersFile)
	params, ok := arc.files[paramsPath]
	if !ok {
		return
	}
	pkg.HasContent = true
	data, err = v.readEntry(params)
	if err == nil {
		err = h5p.ValidJSON(data)
	}
	if err != nil {
		c.add(&h5p.MalformedManifestError{File: paramsPath, Err: err})
	}
}

func (v *Validator) checkLibraries(arc *archive, pkg *Package, c *collector) {
	for _, dir := range arc.dirs {
		lib, err := v.checkLibrary(arc, dir, c)
		if err != nil {
			if c.add(err) {
				return
			}
			continue
		}
		if lib != nil {
			pkg.Libraries = append(pkg.Libraries, lib)
		}
		if c.stopped() {
			return
		}
	}
}

// checkLibrary returns the fatal error for the library directory, if any.
// Non-fatal problems (semantics, language files) go to c directly.
func (v *Validator) checkLibrary(arc *archive, dir string, c *collector) (*PackageLibrary, error) {
	manifestPath := dir + "/" + h5p.LibraryManifestFile
	f, ok := arc.files[manifestPath]
	if !ok {
		return nil, &h5p.MissingManifestError{File: manifestPath}
	}
	data, err := v.readEntry(f)
	if err != nil {
		return nil, &h5p.MalformedManifestError{File: manifestPath, Err: err}
	}
	meta, err := h5p.ParseLibraryMetadata(data, manifestPath)
	if err != nil {
		return nil, err
	}
	if err := library.CheckDirectoryName(meta, dir); err != nil {
		return nil, err
	}

	if required := meta.CoreAPIVersion(); required != "" && v.limits.CoreAPI != "" &&
		semver.Compare(required, v.limits.CoreAPI) > 0 {
		if c.add(&h5p.CoreAPIIncompatibleError{Library: meta.Name(), Required: required, Provided: v.limits.CoreAPI}) {
			return nil, nil
		}
	}

	for _, name := range slices.Sorted(func(yield func(string) bool) {
		for name := range arc.files {
			if !yield(name) {
				return
			}
		}
	}) {
		rel, inLib := strings.CutPrefix(name, dir+"/")
		if !inLib || !isJSONDocument(rel) {
			continue
		}
		data, err := v.readEntry(arc.files[name])
		if err == nil {
			err = h5p.ValidJSON(data)
		}
		if err != nil {
			if c.add(&h5p.InvalidSemanticsError{Library: meta.Name(), File: rel, Err: err}) {
				return nil, nil
			}
		}
	}

	return &PackageLibrary{DirName: dir, Metadata: meta}, nil
}

// isJSONDocument reports whether a library-relative file must parse as JSON.
func isJSONDocument(rel string) bool {
	if rel == h5p.SemanticsFile {
		return true
	}
	dir, file := path.Split(rel)
	return dir == h5p.LanguageDir+"/" && strings.HasSuffix(file, ".json")
}

func (v *Validator) checkDependencies(ctx context.Context, pkg *Package, c *collector) error {
	bundled := make(map[h5p.LibraryName]bool, len(pkg.Libraries))
	for _, lib := range pkg.Libraries {
		bundled[lib.Metadata.Name()] = true
	}

	installed := make(map[h5p.LibraryName]bool)
	resolves := func(dep h5p.LibraryName) (bool, error) {
		if bundled[dep] {
			return true, nil
		}
		if ok, cached := installed[dep]; cached {
			return ok, nil
		}
		ok, err := v.libraries.IsInstalled(ctx, dep)
		if err != nil {
			return false, fmt.Errorf("failed to check installed library %s: %w", dep.Ubername(), err)
		}
		installed[dep] = ok
		return ok, nil
	}

	check := func(deps []h5p.LibraryName, requiredBy string) (bool, error) {
		for _, dep := range deps {
			ok, err := resolves(dep)
			if err != nil {
				return true, err
			}
			if !ok && c.add(&h5p.UnresolvedDependencyError{Dependency: dep, RequiredBy: requiredBy}) {
				return true, nil
			}
		}
		return false, nil
	}

	for _, lib := range pkg.Libraries {
		if stop, err := check(lib.Metadata.AllDependencies(), lib.Metadata.Ubername()); stop || err != nil {
			return err
		}
	}
	// h5p.json dependencies must resolve even when the package only carries
	// libraries.
	if pkg.Manifest != nil {
		requirer := h5p.PackageManifestFile
		if pkg.HasContent {
			requirer = contentRequirer
		}
		if stop, err := check(pkg.Manifest.AllDependencies(), requirer); stop || err != nil {
			return err
		}
	}

	ordered, err := installOrder(pkg.Libraries)
	if err != nil {
		c.add(err)
		return nil
	}
	pkg.Libraries = ordered
	return nil
}

// installOrder sorts bundled libraries so that dependencies come first.
func installOrder(libs []*PackageLibrary) ([]*PackageLibrary, error) {
	byName := make(map[h5p.LibraryName]*PackageLibrary, len(libs))
	g := dag.New[h5p.LibraryName]()
	for _, lib := range libs {
		byName[lib.Metadata.Name()] = lib
		g.AddNode(lib.Metadata.Name())
	}
	for _, lib := range libs {
		for _, dep := range lib.Metadata.AllDependencies() {
			if _, ok := byName[dep]; ok {
				g.AddEdge(dep, lib.Metadata.Name())
			}
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", h5p.ErrDependencyCycle, err)
	}
	out := make([]*PackageLibrary, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

// readEntry reads a manifest-sized archive entry.
func (v *Validator) readEntry(f *zip.File) (data []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	limit := v.limits.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	return io.ReadAll(io.LimitReader(rc, limit))
}
