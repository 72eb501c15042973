// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for h5pkit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "h5pkit",
		Short: "Manage H5P libraries, content and packages",
		Long: TitleStyle.Render("h5pkit") + SubtitleStyle.Render(" - Manage H5P libraries, content and packages") + `

h5pkit keeps a local store of versioned H5P libraries and the content
built on them. Packages (.h5p files) are validated before anything is
installed, libraries are installed in dependency order and only replaced
by newer patch versions, and content types can be installed straight
from the H5P Hub.

` + SubtitleStyle.Render("Examples:") + `
  h5pkit package validate course.h5p   Check a package without installing it
  h5pkit package import course.h5p     Install its libraries and create content
  h5pkit library list                  List installed libraries
  h5pkit hub list                      Show the content type catalog
  h5pkit config show                   Show current configuration`,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/h5pkit/config.cue)")

	rootCmd.AddCommand(
		newLibraryCommand(app),
		newPackageCommand(app),
		newContentCommand(app),
		newHubCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code of a returned ExitError.
// This is called by main.main().
func Execute() {
	rootCmd := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}

// handleError prints errors that commands did not render themselves.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Rendered {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
