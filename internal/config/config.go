// SPDX-License-Identifier: MPL-2.0

package config

import (
	"cmp"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h5pkit/h5pkit/internal/issue"
	"github.com/h5pkit/h5pkit/pkg/cueutil"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "h5pkit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema []byte

// storeFiles names the default store file per kind, relative to DataDir.
var storeFiles = map[StoreKind]string{
	StoreJSON:   "hub-cache.json",
	StoreSQLite: "hub-cache.db",
}

// envOverrides are the H5PKIT_* environment variables. Unset variables
// leave the file and default values alone.
type envOverrides struct {
	ConfigFile              string        `env:"H5PKIT_CONFIG"`
	DataDir                 string        `env:"H5PKIT_DATA_DIR"`
	LogLevel                string        `env:"H5PKIT_LOG_LEVEL"`
	StoreKind               string        `env:"H5PKIT_STORE_KIND"`
	StorePath               string        `env:"H5PKIT_STORE_PATH"`
	HubRegistrationEndpoint string        `env:"H5PKIT_HUB_REGISTRATION_ENDPOINT"`
	HubContentTypesEndpoint string        `env:"H5PKIT_HUB_CONTENT_TYPES_ENDPOINT"`
	HubRefreshInterval      time.Duration `env:"H5PKIT_HUB_REFRESH_INTERVAL"`
	HubRestricted           []string      `env:"H5PKIT_HUB_RESTRICTED" envSeparator:","`
	HubEnableRestricted     *bool         `env:"H5PKIT_HUB_ENABLE_RESTRICTED"`
}

// ConfigDir returns the h5pkit configuration directory below the user
// configuration directory of the platform.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultDataDir returns $XDG_DATA_HOME/h5pkit, falling back to
// ~/.local/share/h5pkit.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// loadWithOptions resolves the configuration in layers: defaults, the
// config file, then environment overrides.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Environment: opts.Environment}); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read environment").
			WithSuggestion("Check the H5PKIT_* environment variables").
			Wrap(err).
			BuildError()
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	resolvedPath := ""
	explicitPath := cmp.Or(opts.ConfigFilePath, overrides.ConfigFile)
	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(explicitPath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Unset H5PKIT_CONFIG to use the default location").
				WithIssue(issue.FileNotFoundId).
				Wrap(fmt.Errorf("config file not found: %s", explicitPath)).
				BuildError()
		}
		resolvedPath = explicitPath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, err
		}
		if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(cuePath) {
			resolvedPath = cuePath
		}
		// No config file: defaults and environment only.
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'h5pkit config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	applyOverrides(v, overrides)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := resolveDirs(&cfg); err != nil {
		return nil, err
	}
	cfg.Source = resolvedPath

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(cmp.Or(resolvedPath, "environment")).
			WithSuggestion("Fix the settings listed above").
			WithSuggestion("Run 'h5pkit config init' to write a valid default file").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("core_api", defaults.CoreAPI)
	v.SetDefault("temporary_file_lifetime", defaults.TemporaryFileLifetime)
	v.SetDefault("store.kind", string(defaults.Store.Kind))
	v.SetDefault("hub.registration_endpoint", defaults.Hub.RegistrationEndpoint)
	v.SetDefault("hub.content_types_endpoint", defaults.Hub.ContentTypesEndpoint)
	v.SetDefault("hub.refresh_interval", defaults.Hub.RefreshInterval)
	v.SetDefault("hub.restricted", defaults.Hub.Restricted)
	v.SetDefault("hub.enable_restricted", defaults.Hub.EnableRestricted)
	v.SetDefault("platform.name", defaults.Platform.Name)
	v.SetDefault("platform.version", defaults.Platform.Version)
	v.SetDefault("limits.max_file_size", defaults.Limits.MaxFileSize)
	v.SetDefault("limits.max_total_size", defaults.Limits.MaxTotalSize)
	v.SetDefault("limits.max_depth", defaults.Limits.MaxDepth)
	v.SetDefault("limits.aggregate", defaults.Limits.Aggregate)
}

func applyOverrides(v *viper.Viper, o envOverrides) {
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("data_dir", o.DataDir)
	set("log_level", o.LogLevel)
	set("store.kind", o.StoreKind)
	set("store.path", o.StorePath)
	set("hub.registration_endpoint", o.HubRegistrationEndpoint)
	set("hub.content_types_endpoint", o.HubContentTypesEndpoint)
	if o.HubRefreshInterval != 0 {
		v.Set("hub.refresh_interval", o.HubRefreshInterval)
	}
	if o.HubRestricted != nil {
		v.Set("hub.restricted", o.HubRestricted)
	}
	if o.HubEnableRestricted != nil {
		v.Set("hub.enable_restricted", *o.HubEnableRestricted)
	}
}

// resolveDirs fills the directories and store path derived from DataDir.
func resolveDirs(cfg *Config) error {
	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		cfg.DataDir = dir
	}
	cfg.LibrariesDir = cmp.Or(cfg.LibrariesDir, filepath.Join(cfg.DataDir, "libraries"))
	cfg.ContentDir = cmp.Or(cfg.ContentDir, filepath.Join(cfg.DataDir, "content"))
	cfg.TemporaryDir = cmp.Or(cfg.TemporaryDir, filepath.Join(cfg.DataDir, "temporary"))
	if name, ok := storeFiles[cfg.Store.Kind]; ok && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.DataDir, name)
	}
	return nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. The file decodes to a map rather than
// a Config so unset fields keep their viper defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	result, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithConcrete(false), cueutil.WithFilename(path))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to dir unless a
// config file already exists there, and returns the file path.
func CreateDefaultConfig(dir string) (string, error) {
	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	return cfgPath, Save(DefaultConfig(), cfgPath)
}

// Save writes cfg to path as CUE.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration. Empty
// directories are left out so they keep deriving from data_dir.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// h5pkit configuration file\n\n")

	writeString := func(indent, key, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s%s: %q\n", indent, key, value)
		}
	}

	writeString("", "data_dir", cfg.DataDir)
	writeString("", "libraries_dir", cfg.LibrariesDir)
	writeString("", "content_dir", cfg.ContentDir)
	writeString("", "temporary_dir", cfg.TemporaryDir)
	writeString("", "log_level", string(cfg.LogLevel))
	writeString("", "core_api", cfg.CoreAPI)
	writeString("", "temporary_file_lifetime", cfg.TemporaryFileLifetime.String())

	sb.WriteString("\nstore: {\n")
	writeString("\t", "kind", string(cfg.Store.Kind))
	writeString("\t", "path", cfg.Store.Path)
	sb.WriteString("}\n")

	sb.WriteString("\nhub: {\n")
	writeString("\t", "registration_endpoint", cfg.Hub.RegistrationEndpoint)
	writeString("\t", "content_types_endpoint", cfg.Hub.ContentTypesEndpoint)
	writeString("\t", "refresh_interval", cfg.Hub.RefreshInterval.String())
	if len(cfg.Hub.Restricted) > 0 {
		sb.WriteString("\trestricted: [\n")
		for _, name := range cfg.Hub.Restricted {
			fmt.Fprintf(&sb, "\t\t%q,\n", name)
		}
		sb.WriteString("\t]\n")
	}
	fmt.Fprintf(&sb, "\tenable_restricted: %v\n", cfg.Hub.EnableRestricted)
	sb.WriteString("}\n")

	sb.WriteString("\nplatform: {\n")
	writeString("\t", "name", cfg.Platform.Name)
	writeString("\t", "version", cfg.Platform.Version)
	sb.WriteString("}\n")

	sb.WriteString("\nlimits: {\n")
	fmt.Fprintf(&sb, "\tmax_file_size: %d\n", cfg.Limits.MaxFileSize)
	fmt.Fprintf(&sb, "\tmax_total_size: %d\n", cfg.Limits.MaxTotalSize)
	fmt.Fprintf(&sb, "\tmax_depth: %d\n", cfg.Limits.MaxDepth)
	fmt.Fprintf(&sb, "\taggregate: %v\n", cfg.Limits.Aggregate)
	sb.WriteString("}\n")

	return sb.String()
}
