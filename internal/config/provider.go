// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects where Load reads from. The zero value reads
// config.cue from ConfigDir and overrides from the process environment.
type LoadOptions struct {
	// ConfigFilePath is an explicit config file, usually from --config. It
	// must exist.
	ConfigFilePath string
	// ConfigDirPath replaces ConfigDir() in lookups; tests point it at a
	// temp dir.
	ConfigDirPath string
	// Environment, when non-nil, is used instead of os.Environ for the
	// H5PKIT_* overrides.
	Environment map[string]string
}

// Provider is what the CLI needs from this package. Tests substitute a stub
// that returns a fixed *Config or a load error.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

// cueProvider layers defaults, config.cue and the environment.
type cueProvider struct{}

func NewProvider() Provider { return cueProvider{} }

func (cueProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return loadWithOptions(ctx, opts)
}
