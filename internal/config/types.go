// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// LogLevelDebug logs everything, including skipped installs.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs installs, imports and catalog refreshes.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs cleanup failures and unreachable hubs only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failed operations only.
	LogLevelError LogLevel = "error"

	// StoreMemory keeps the hub cache in memory; it is lost on exit.
	StoreMemory StoreKind = "memory"
	// StoreJSON keeps the hub cache in a JSON file.
	StoreJSON StoreKind = "json"
	// StoreSQLite keeps the hub cache in an SQLite database.
	StoreSQLite StoreKind = "sqlite"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidStoreKind is returned when a StoreKind value is not recognized.
	ErrInvalidStoreKind = errors.New("invalid store kind")
	// ErrInvalidSetting is the sentinel error wrapped by InvalidSettingError.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of log records written by the CLI.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// StoreKind selects the key-value store backing the hub cache.
	StoreKind string

	// InvalidStoreKindError is returned when a StoreKind value is not recognized.
	InvalidStoreKindError struct {
		Value StoreKind
	}

	// InvalidSettingError is returned for a single field with an unusable value.
	InvalidSettingError struct {
		Field  string
		Value  string
		Reason string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// DataDir is the root of all stored data. The directories below
		// default to subdirectories of it.
		DataDir      string `json:"data_dir" mapstructure:"data_dir"`
		LibrariesDir string `json:"libraries_dir" mapstructure:"libraries_dir"`
		ContentDir   string `json:"content_dir" mapstructure:"content_dir"`
		TemporaryDir string `json:"temporary_dir" mapstructure:"temporary_dir"`
		// LogLevel sets the minimum level of CLI log output.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// CoreAPI is the "MAJOR.MINOR" core API version libraries are checked against.
		CoreAPI string `json:"core_api" mapstructure:"core_api"`
		// TemporaryFileLifetime is how long files of an editor session are kept.
		TemporaryFileLifetime time.Duration `json:"temporary_file_lifetime" mapstructure:"temporary_file_lifetime"`
		// Store configures the hub cache storage.
		Store StoreConfig `json:"store" mapstructure:"store"`
		// Hub configures the remote content type catalog.
		Hub HubConfig `json:"hub" mapstructure:"hub"`
		// Platform is reported to the hub on registration and refresh.
		Platform PlatformConfig `json:"platform" mapstructure:"platform"`
		// Limits bound what package validation accepts.
		Limits LimitsConfig `json:"limits" mapstructure:"limits"`

		// Source is the config file the values were read from, empty when
		// only defaults and environment applied.
		Source string `json:"-" mapstructure:"-"`
	}

	// StoreConfig selects the hub cache store.
	StoreConfig struct {
		Kind StoreKind `json:"kind" mapstructure:"kind"`
		// Path defaults to a file in DataDir named after the kind.
		Path string `json:"path" mapstructure:"path"`
	}

	// HubConfig configures the content type hub.
	HubConfig struct {
		RegistrationEndpoint string        `json:"registration_endpoint" mapstructure:"registration_endpoint"`
		ContentTypesEndpoint string        `json:"content_types_endpoint" mapstructure:"content_types_endpoint"`
		RefreshInterval      time.Duration `json:"refresh_interval" mapstructure:"refresh_interval"`
		// Restricted lists machine names only privileged users may use.
		Restricted []string `json:"restricted" mapstructure:"restricted"`
		// EnableRestricted lifts the restriction for everybody.
		EnableRestricted bool `json:"enable_restricted" mapstructure:"enable_restricted"`
	}

	// PlatformConfig describes the hosting platform.
	PlatformConfig struct {
		Name    string `json:"name" mapstructure:"name"`
		Version string `json:"version" mapstructure:"version"`
	}

	// LimitsConfig bounds package validation.
	LimitsConfig struct {
		MaxFileSize  int64 `json:"max_file_size" mapstructure:"max_file_size"`
		MaxTotalSize int64 `json:"max_total_size" mapstructure:"max_total_size"`
		MaxDepth     int   `json:"max_depth" mapstructure:"max_depth"`
		// Aggregate collects every violation instead of stopping at the first.
		Aggregate bool `json:"aggregate" mapstructure:"aggregate"`
	}
)

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, &InvalidSettingError{Field: "data_dir", Value: c.DataDir, Reason: "must not be empty"})
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if !semver.IsValid("v" + c.CoreAPI) {
		errs = append(errs, &InvalidSettingError{Field: "core_api", Value: c.CoreAPI, Reason: `must look like "1.27"`})
	}
	if c.TemporaryFileLifetime <= 0 {
		errs = append(errs, &InvalidSettingError{Field: "temporary_file_lifetime", Value: c.TemporaryFileLifetime.String(), Reason: "must be positive"})
	}
	for _, sub := range []interface{ IsValid() (bool, []error) }{c.Store, c.Hub, c.Limits} {
		if valid, fieldErrs := sub.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Validate returns the *InvalidConfigError of IsValid, or nil.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

// IsValid returns whether the StoreConfig has valid fields.
func (c StoreConfig) IsValid() (bool, []error) {
	return c.Kind.IsValid()
}

// IsValid returns whether the HubConfig has valid fields.
func (c HubConfig) IsValid() (bool, []error) {
	var errs []error
	if err := checkEndpoint("hub.registration_endpoint", c.RegistrationEndpoint); err != nil {
		errs = append(errs, err)
	}
	if err := checkEndpoint("hub.content_types_endpoint", c.ContentTypesEndpoint); err != nil {
		errs = append(errs, err)
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, &InvalidSettingError{Field: "hub.refresh_interval", Value: c.RefreshInterval.String(), Reason: "must be positive"})
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the LimitsConfig has valid fields.
func (c LimitsConfig) IsValid() (bool, []error) {
	var errs []error
	if c.MaxFileSize <= 0 {
		errs = append(errs, &InvalidSettingError{Field: "limits.max_file_size", Value: fmt.Sprint(c.MaxFileSize), Reason: "must be positive"})
	}
	if c.MaxTotalSize < c.MaxFileSize {
		errs = append(errs, &InvalidSettingError{Field: "limits.max_total_size", Value: fmt.Sprint(c.MaxTotalSize), Reason: "must not be below max_file_size"})
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, &InvalidSettingError{Field: "limits.max_depth", Value: fmt.Sprint(c.MaxDepth), Reason: "must be positive"})
	}
	return len(errs) == 0, errs
}

func checkEndpoint(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &InvalidSettingError{Field: field, Value: raw, Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface for InvalidSettingError.
func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidSetting for errors.Is() compatibility.
func (e *InvalidSettingError) Unwrap() error { return ErrInvalidSetting }

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error {
	return ErrInvalidLogLevel
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidStoreKindError.
func (e *InvalidStoreKindError) Error() string {
	return fmt.Sprintf("invalid store kind %q (valid: memory, json, sqlite)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStoreKindError) Unwrap() error {
	return ErrInvalidStoreKind
}

// String returns the string representation of the StoreKind.
func (k StoreKind) String() string { return string(k) }

// IsValid returns whether the StoreKind is one of the defined kinds.
func (k StoreKind) IsValid() (bool, []error) {
	switch k {
	case StoreMemory, StoreJSON, StoreSQLite:
		return true, nil
	default:
		return false, []error{&InvalidStoreKindError{Value: k}}
	}
}

// DefaultConfig returns the default configuration. DataDir is left empty
// and resolved when loading.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:              LogLevelWarn,
		CoreAPI:               "1.27",
		TemporaryFileLifetime: 24 * time.Hour,
		Store: StoreConfig{
			Kind: StoreJSON,
		},
		Hub: HubConfig{
			RegistrationEndpoint: "https://api.h5p.org/v1/sites",
			ContentTypesEndpoint: "https://api.h5p.org/v1/content-types/",
			RefreshInterval:      24 * time.Hour,
			Restricted:           []string{},
		},
		Platform: PlatformConfig{
			Name: AppName,
		},
		Limits: LimitsConfig{
			MaxFileSize:  16 << 20,
			MaxTotalSize: 256 << 20,
			MaxDepth:     16,
		},
	}
}
