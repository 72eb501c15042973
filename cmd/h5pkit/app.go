// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/h5pkit/h5pkit/internal/config"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/cobra"
)

// defaultMarkdownStyle is the glamour style issue help and library details
// are rendered with.
const defaultMarkdownStyle = "dark"

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: all Cobra command handlers receive an App reference and open
	// the domain services through it.
	App struct {
		Config        ConfigProvider
		User          h5p.User
		markdownStyle string
		stdout        io.Writer
		stderr        io.Writer

		// Values of the persistent root flags.
		configPath string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		// User is who the CLI acts as. The default may do everything.
		User h5p.User
		// MarkdownStyle is a glamour style name; tests use "notty".
		MarkdownStyle string
		Stdout        io.Writer
		Stderr        io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.User == nil {
		deps.User = h5p.AdminUser(config.AppName)
	}
	if deps.MarkdownStyle == "" {
		deps.MarkdownStyle = defaultMarkdownStyle
	}

	return &App{
		Config:        deps.Config,
		User:          deps.User,
		markdownStyle: deps.MarkdownStyle,
		stdout:        deps.Stdout,
		stderr:        deps.Stderr,
	}
}

// loadConfig loads the configuration honoring the --config flag.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
}

// fail renders err and returns an ExitError with ExitFailure.
func (a *App) fail(cmd *cobra.Command, err error) error {
	return a.failWith(cmd, ExitFailure, err)
}

// failWith renders err to the command's stderr and returns an ExitError that
// Execute does not print again.
func (a *App) failWith(cmd *cobra.Command, code int, err error) error {
	renderError(cmd.ErrOrStderr(), err, a.verbose, a.markdownStyle)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: code, Err: err, Rendered: true}
}
