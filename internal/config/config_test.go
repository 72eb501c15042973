// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/h5pkit/h5pkit/internal/issue"
	"github.com/h5pkit/h5pkit/internal/testutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// load runs the loader against dir with an isolated environment.
func load(t *testing.T, dir string, environment map[string]string) (*Config, error) {
	t.Helper()
	if environment == nil {
		environment = map[string]string{}
	}
	if _, ok := environment["H5PKIT_DATA_DIR"]; !ok {
		environment["H5PKIT_DATA_DIR"] = filepath.Join(dir, "data")
	}
	return NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir, Environment: environment})
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.LogLevel != LogLevelWarn {
		t.Errorf("LogLevel = %s, want warn", cfg.LogLevel)
	}
	if cfg.Store.Kind != StoreJSON {
		t.Errorf("Store.Kind = %s, want json", cfg.Store.Kind)
	}
	if cfg.Hub.RefreshInterval != 24*time.Hour || cfg.TemporaryFileLifetime != 24*time.Hour {
		t.Errorf("durations = %s, %s", cfg.Hub.RefreshInterval, cfg.TemporaryFileLifetime)
	}
	if cfg.DataDir != "" {
		t.Errorf("DataDir = %q, want empty until loaded", cfg.DataDir)
	}

	cfg.DataDir = "/srv/h5p"
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults with a data dir should be valid: %v", err)
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := load(t, dir, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty without a config file", cfg.Source)
	}
	data := filepath.Join(dir, "data")
	if cfg.LibrariesDir != filepath.Join(data, "libraries") ||
		cfg.ContentDir != filepath.Join(data, "content") ||
		cfg.TemporaryDir != filepath.Join(data, "temporary") {
		t.Errorf("derived dirs = %q, %q, %q", cfg.LibrariesDir, cfg.ContentDir, cfg.TemporaryDir)
	}
	if cfg.Store.Path != filepath.Join(data, "hub-cache.json") {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Limits != DefaultConfig().Limits {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.MustWriteFile(t, dir, "config.cue", []byte(`
log_level: "debug"
temporary_file_lifetime: "2h"
store: {
	kind: "sqlite"
}
hub: {
	refresh_interval: "30m"
	restricted: ["H5P.Blanks"]
}
limits: {
	max_depth: 4
	aggregate: true
}
`))

	cfg, err := load(t, dir, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	if cfg.LogLevel != LogLevelDebug || cfg.TemporaryFileLifetime != 2*time.Hour {
		t.Errorf("LogLevel, lifetime = %s, %s", cfg.LogLevel, cfg.TemporaryFileLifetime)
	}
	if cfg.Store.Kind != StoreSQLite || filepath.Base(cfg.Store.Path) != "hub-cache.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Hub.RefreshInterval != 30*time.Minute || !slices.Equal(cfg.Hub.Restricted, []string{"H5P.Blanks"}) {
		t.Errorf("Hub = %+v", cfg.Hub)
	}
	if cfg.Limits.MaxDepth != 4 || !cfg.Limits.Aggregate || cfg.Limits.MaxFileSize != DefaultConfig().Limits.MaxFileSize {
		t.Errorf("Limits = %+v, want file values merged over defaults", cfg.Limits)
	}
	if cfg.Hub.ContentTypesEndpoint != DefaultConfig().Hub.ContentTypesEndpoint {
		t.Errorf("unset endpoint lost its default: %q", cfg.Hub.ContentTypesEndpoint)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, dir, "config.cue", []byte(`
log_level: "debug"
hub: {
	enable_restricted: true
}
`))

	cfg, err := load(t, dir, map[string]string{
		"H5PKIT_DATA_DIR":                   "/srv/h5p",
		"H5PKIT_LOG_LEVEL":                  "error",
		"H5PKIT_STORE_KIND":                 "memory",
		"H5PKIT_HUB_CONTENT_TYPES_ENDPOINT": "http://127.0.0.1:8080/content-types/",
		"H5PKIT_HUB_REFRESH_INTERVAL":       "5m",
		"H5PKIT_HUB_RESTRICTED":             "H5P.Blanks,H5P.Essay",
		"H5PKIT_HUB_ENABLE_RESTRICTED":      "false",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/srv/h5p" || cfg.LogLevel != LogLevelError {
		t.Errorf("DataDir, LogLevel = %q, %s", cfg.DataDir, cfg.LogLevel)
	}
	if cfg.Store.Kind != StoreMemory || cfg.Store.Path != "" {
		t.Errorf("Store = %+v, want memory without a path", cfg.Store)
	}
	if cfg.Hub.ContentTypesEndpoint != "http://127.0.0.1:8080/content-types/" || cfg.Hub.RefreshInterval != 5*time.Minute {
		t.Errorf("Hub = %+v", cfg.Hub)
	}
	if !slices.Equal(cfg.Hub.Restricted, []string{"H5P.Blanks", "H5P.Essay"}) {
		t.Errorf("Restricted = %v", cfg.Hub.Restricted)
	}
	if cfg.Hub.EnableRestricted {
		t.Error("H5PKIT_HUB_ENABLE_RESTRICTED=false should override the file")
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.MustWriteFile(t, dir, "custom.cue", []byte(`platform: {name: "moodle", version: "4.3"}`))

	cfg, err := load(t, t.TempDir(), map[string]string{"H5PKIT_CONFIG": path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != path || cfg.Platform.Name != "moodle" || cfg.Platform.Version != "4.3" {
		t.Errorf("Source, Platform = %q, %+v", cfg.Source, cfg.Platform)
	}

	_, err = load(t, dir, map[string]string{"H5PKIT_CONFIG": filepath.Join(dir, "missing.cue")})
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) || actionable.Operation != "load configuration" {
		t.Fatalf("missing explicit file: error = %v, want actionable load error", err)
	}
	if actionable.IssueID != issue.FileNotFoundId {
		t.Errorf("IssueID = %v, want FileNotFound", actionable.IssueID)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		file        string
		environment map[string]string
		wantInvalid bool
	}{
		{name: "syntax error", file: `log_level: "debug`},
		{name: "unknown field", file: `colour: "blue"`},
		{name: "bad enum", file: `log_level: "loud"`},
		{name: "bad duration", file: `hub: {refresh_interval: "soon"}`},
		{name: "bad endpoint scheme", file: `hub: {registration_endpoint: "ftp://example.com"}`},
		{name: "negative limit", file: `limits: {max_depth: -1}`},
		{name: "total below file size", file: `limits: {max_file_size: 100, max_total_size: 10}`, wantInvalid: true},
		{name: "bad env log level", environment: map[string]string{"H5PKIT_LOG_LEVEL": "loud"}, wantInvalid: true},
		{name: "bad env endpoint", environment: map[string]string{"H5PKIT_HUB_REGISTRATION_ENDPOINT": "not a url"}, wantInvalid: true},
		{name: "unparsable env duration", environment: map[string]string{"H5PKIT_HUB_REFRESH_INTERVAL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if tt.file != "" {
				testutil.MustWriteFile(t, dir, "config.cue", []byte(tt.file))
			}
			cfg, err := load(t, dir, tt.environment)
			if err == nil {
				t.Fatalf("Load() = %+v, want error", cfg)
			}
			var actionable *issue.ActionableError
			if !errors.As(err, &actionable) || !actionable.HasSuggestions() {
				t.Errorf("error %v should be actionable with suggestions", err)
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.wantInvalid {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = %v, want %v (err: %v)", got, tt.wantInvalid, err)
			}
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.DataDir = "/srv/h5p"
	want.LogLevel = LogLevelInfo
	want.Store = StoreConfig{Kind: StoreSQLite, Path: "/srv/h5p/cache.db"}
	want.Hub.Restricted = []string{"H5P.Blanks"}
	want.Hub.EnableRestricted = true
	want.Platform.Version = "1.2.3"
	want.Limits.Aggregate = true

	dir := t.TempDir()
	if err := Save(want, filepath.Join(dir, "config.cue")); err != nil {
		t.Fatal(err)
	}
	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir, Environment: map[string]string{}})
	if err != nil {
		t.Fatalf("Load() of generated file: %v", err)
	}

	got.Source = ""
	want.LibrariesDir = "/srv/h5p/libraries"
	want.ContentDir = "/srv/h5p/content"
	want.TemporaryDir = "/srv/h5p/temporary"
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	testutil.MustWriteFile(t, dir, "config.cue", []byte(`log_level: "error"`))

	// An existing file is left alone.
	if again, err := CreateDefaultConfig(dir); err != nil || again != path {
		t.Fatalf("CreateDefaultConfig() again = %q, %v", again, err)
	}
	cfg, err := load(t, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != LogLevelError {
		t.Errorf("LogLevel = %s, existing file was overwritten", cfg.LogLevel)
	}
}

// TestSchemaMatchesStruct keeps config_schema.cue and the mapstructure tags
// of Config in sync, one level deep.
func TestSchemaMatchesStruct(t *testing.T) {
	t.Parallel()

	schema := cuecontext.New().CompileBytes(configSchema).LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		t.Fatal(schema.Err())
	}

	var check func(path string, val cue.Value, typ reflect.Type)
	check = func(path string, val cue.Value, typ reflect.Type) {
		cueFields := map[string]cue.Value{}
		iter, err := val.Fields(cue.Optional(true))
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		for iter.Next() {
			cueFields[strings.TrimSuffix(iter.Selector().String(), "?")] = iter.Value()
		}

		for i := range typ.NumField() {
			field := typ.Field(i)
			tag := field.Tag.Get("mapstructure")
			if tag == "-" {
				continue
			}
			sub, ok := cueFields[tag]
			if !ok {
				t.Errorf("%s%s: missing from the CUE schema", path, tag)
				continue
			}
			delete(cueFields, tag)
			if field.Type.Kind() == reflect.Struct {
				check(path+tag+".", sub, field.Type)
			}
		}
		for name := range cueFields {
			t.Errorf("%s%s: in the CUE schema but not in Config", path, name)
		}
	}
	check("", schema, reflect.TypeFor[Config]())
}
