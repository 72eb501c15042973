// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/h5pkit/h5pkit/internal/library"
	"github.com/h5pkit/h5pkit/internal/packaging"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/cobra"
)

// stdinArg reads a package from standard input.
const stdinArg = "-"

type importFlags struct {
	contentID     string
	librariesOnly bool
	temporary     bool
}

// newPackageCommand creates the `h5pkit package` command tree.
func newPackageCommand(app *App) *cobra.Command {
	pkgCmd := &cobra.Command{
		Use:   "package",
		Short: "Validate, import and export .h5p packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var all bool
	validateCmd := &cobra.Command{
		Use:   "validate <file.h5p>",
		Short: "Validate a package without installing anything",
		Long: `Validate a package without installing anything.

The archive layout, manifests, file types, size limits and the dependency
graph are checked against the installed libraries. By default validation
stops at the first violation; --all reports every violation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePackage(cmd, app, args[0], all)
		},
	}
	validateCmd.Flags().BoolVar(&all, "all", false, "report every violation instead of stopping at the first")
	pkgCmd.AddCommand(validateCmd)

	var flags importFlags
	importCmd := &cobra.Command{
		Use:   "import <file.h5p|->",
		Short: "Install the libraries of a package and create its content",
		Long: `Install the libraries of a package and create its content.

Libraries are installed in dependency order. An installed library is only
replaced by a newer patch version of the same major.minor. Pass "-" to read
the package from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importPackage(cmd, app, args[0], flags)
		},
	}
	importCmd.Flags().StringVar(&flags.contentID, "content-id", "", "replace the content with this id instead of creating new content")
	importCmd.Flags().BoolVar(&flags.librariesOnly, "libraries-only", false, "install the libraries and ignore the content")
	importCmd.Flags().BoolVar(&flags.temporary, "temporary", false, "move the content files to temporary storage instead of creating content")
	importCmd.MarkFlagsMutuallyExclusive("libraries-only", "temporary", "content-id")
	pkgCmd.AddCommand(importCmd)

	pkgCmd.AddCommand(&cobra.Command{
		Use:   "export <content-id> <file.h5p>",
		Short: "Export content with every library it uses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportPackage(cmd, app, h5p.ContentID(args[0]), args[1])
		},
	})

	return pkgCmd
}

func validatePackage(cmd *cobra.Command, app *App, file string, all bool) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	validator := s.validator
	if all {
		limits := validator.Limits()
		limits.Aggregate = true
		validator = packaging.NewValidator(s.libraries, limits, packaging.WithValidatorLogger(s.logger))
	}

	pkg, err := validator.Validate(cmd.Context(), file)
	if err != nil {
		return app.failWith(cmd, ExitInvalidPackage, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s is valid\n", successIcon, CmdStyle.Render(file))
	if pkg.Manifest != nil {
		fmt.Fprintf(out, "  Content:   %s (%s)\n", pkg.Manifest.Title, pkg.Manifest.MainLibrary)
	}
	fmt.Fprintf(out, "  Size:      %d bytes\n", pkg.TotalSize)
	if len(pkg.Libraries) > 0 {
		fmt.Fprintln(out, "  Libraries (install order):")
		for _, lib := range pkg.Libraries {
			fmt.Fprintf(out, "    %s %s\n", lib.DirName, SubtitleStyle.Render(lib.Metadata.FullVersion()))
		}
	}
	return nil
}

func importPackage(cmd *cobra.Command, app *App, file string, flags importFlags) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	id := h5p.ContentID(flags.contentID)

	switch {
	case file == stdinArg && (flags.librariesOnly || flags.temporary):
		return app.fail(cmd, fmt.Errorf("--libraries-only and --temporary need a package file, not %q", stdinArg))

	case file == stdinArg:
		result, err := s.editor.UploadPackage(ctx, cmd.InOrStdin(), app.User, id)
		if err != nil {
			return app.fail(cmd, err)
		}
		printInstallResults(out, result.Libraries)
		fmt.Fprintf(out, "%s Created content %s\n", successIcon, CmdStyle.Render(result.Content.ID.String()))

	case flags.librariesOnly:
		results, err := s.importer.InstallLibrariesFromPackage(ctx, file)
		if err != nil {
			return app.fail(cmd, err)
		}
		printInstallResults(out, results)

	case flags.temporary:
		result, err := s.importer.AddPackageLibrariesAndTemporaryFiles(ctx, file, app.User)
		if err != nil {
			return app.fail(cmd, err)
		}
		printInstallResults(out, result.Libraries)
		for _, name := range slices.Sorted(maps.Keys(result.Files)) {
			fmt.Fprintf(out, "%s %s -> %s\n", successIcon, name, CmdStyle.Render(result.Files[name]))
		}

	default:
		result, err := s.importer.AddPackageLibrariesAndContent(ctx, file, app.User, id)
		if err != nil {
			return app.fail(cmd, err)
		}
		printInstallResults(out, result.Libraries)
		fmt.Fprintf(out, "%s Created content %s\n", successIcon, CmdStyle.Render(result.Content.ID.String()))
	}
	return nil
}

// printInstallResults prints one line per bundled library.
func printInstallResults(w io.Writer, results []*library.InstallResult) {
	for _, r := range results {
		name := CmdStyle.Render(r.NewVersion.Ubername())
		switch r.Type {
		case library.InstallNew:
			fmt.Fprintf(w, "%s Installed %s %s\n", successIcon, name, r.NewVersion.FullVersion())
		case library.InstallPatch:
			fmt.Fprintf(w, "%s Updated %s %s -> %s\n", successIcon, name, r.OldVersion.FullVersion(), r.NewVersion.FullVersion())
		case library.InstallSkip:
			fmt.Fprintf(w, "%s Kept %s %s\n", skipIcon, name, r.OldVersion.FullVersion())
		}
	}
}

func exportPackage(cmd *cobra.Command, app *App, id h5p.ContentID, target string) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	if err := s.exporter.ExportToFile(cmd.Context(), id, app.User, target); err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %s to %s\n", successIcon, CmdStyle.Render(id.String()), target)
	return nil
}
