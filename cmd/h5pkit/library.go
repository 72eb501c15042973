// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// anyNameForm accepts library names in hyphen and whitespace form.
var anyNameForm = h5p.ParseOptions{AllowHyphen: true, AllowWhitespace: true}

// newLibraryCommand creates the `h5pkit library` command tree.
func newLibraryCommand(app *App) *cobra.Command {
	libCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and remove installed libraries",
		Long: `Inspect and remove installed libraries.

Libraries are named "Machine.Name-MAJOR.MINOR" or "Machine.Name MAJOR.MINOR".
Only one patch version of each major.minor is installed at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	libCmd.AddCommand(&cobra.Command{
		Use:   "list [machine-name...]",
		Short: "List installed libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listLibraries(cmd, app, args)
		},
	})

	libCmd.AddCommand(&cobra.Command{
		Use:   "show <library>",
		Short: "Show details of an installed library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLibrary(cmd, app, args[0])
		},
	})

	var language string
	assetsCmd := &cobra.Command{
		Use:   "assets <library>",
		Short: "List the scripts and styles a library loads, dependencies first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showAssets(cmd, app, args[0], language)
		},
	}
	assetsCmd.Flags().StringVarP(&language, "language", "l", "", "language of the translations to include (default en)")
	libCmd.AddCommand(assetsCmd)

	libCmd.AddCommand(&cobra.Command{
		Use:   "remove <library>",
		Short: "Remove a library no other library depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeLibrary(cmd, app, args[0])
		},
	})

	return libCmd
}

func listLibraries(cmd *cobra.Command, app *App, machineNames []string) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	installed, err := s.libraries.GetInstalled(cmd.Context(), machineNames...)
	if err != nil {
		return app.fail(cmd, err)
	}
	out := cmd.OutOrStdout()
	if len(installed) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("No libraries installed."))
		return nil
	}

	var rows [][]string
	for _, name := range slices.Sorted(maps.Keys(installed)) {
		for _, lib := range installed[name] {
			rows = append(rows, []string{
				lib.MachineName,
				lib.FullVersion(),
				lib.Title,
				yesNo(bool(lib.Runnable)),
				yesNo(lib.Restricted),
			})
		}
	}
	fmt.Fprintln(out, renderTable([]string{"Library", "Version", "Title", "Runnable", "Restricted"}, rows))
	return nil
}

func showLibrary(cmd *cobra.Command, app *App, arg string) (err error) {
	name, err := h5p.ParseLibraryNameWith(arg, anyNameForm)
	if err != nil {
		return app.fail(cmd, err)
	}
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	ctx := cmd.Context()
	lib, err := s.libraries.LoadLibrary(ctx, name)
	if err != nil {
		return app.fail(cmd, err)
	}
	dependents, err := s.libraries.Dependents(ctx, name)
	if err != nil {
		return app.fail(cmd, err)
	}
	languages, err := s.libraries.ListLanguages(ctx, name)
	if err != nil {
		return app.fail(cmd, err)
	}

	rendered, err := glamour.Render(libraryMarkdown(lib, dependents, languages), app.markdownStyle)
	if err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// libraryMarkdown describes lib as a markdown document.
func libraryMarkdown(lib *h5p.InstalledLibrary, dependents []h5p.LibraryName, languages []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", lib.Title)
	fmt.Fprintf(&sb, "- **Name:** `%s`\n", lib.Ubername())
	fmt.Fprintf(&sb, "- **Version:** %s\n", lib.FullVersion())
	fmt.Fprintf(&sb, "- **Runnable:** %s\n", yesNo(bool(lib.Runnable)))
	fmt.Fprintf(&sb, "- **Restricted:** %s\n", yesNo(lib.Restricted))
	if v := lib.CoreAPIVersion(); v != "" {
		fmt.Fprintf(&sb, "- **Core API:** %s\n", strings.TrimPrefix(v, "v"))
	}
	if lib.License != "" {
		fmt.Fprintf(&sb, "- **License:** %s\n", lib.License)
	}
	if lib.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", lib.Description)
	}

	writeNames := func(title string, names []h5p.LibraryName) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", title)
		for _, n := range names {
			fmt.Fprintf(&sb, "- `%s`\n", n.Ubername())
		}
	}
	writeNames("Preloaded dependencies", lib.PreloadedDependencies)
	writeNames("Editor dependencies", lib.EditorDependencies)
	writeNames("Dynamic dependencies", lib.DynamicDependencies)
	writeNames("Used by", dependents)

	if len(languages) > 0 {
		fmt.Fprintf(&sb, "\n## Languages\n\n%s\n", strings.Join(languages, ", "))
	}
	return sb.String()
}

func showAssets(cmd *cobra.Command, app *App, arg, language string) (err error) {
	name, err := h5p.ParseLibraryNameWith(arg, anyNameForm)
	if err != nil {
		return app.fail(cmd, err)
	}
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	assets, err := s.editor.LibraryAssets(cmd.Context(), name, language)
	if err != nil {
		return app.fail(cmd, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render("Scripts"))
	for _, script := range assets.Scripts {
		fmt.Fprintf(out, "  %s\n", script)
	}
	fmt.Fprintln(out, TitleStyle.Render("Styles"))
	for _, style := range assets.Styles {
		fmt.Fprintf(out, "  %s\n", style)
	}
	if len(assets.Translations) > 0 {
		fmt.Fprintln(out, TitleStyle.Render("Translations"))
		for _, machineName := range slices.Sorted(maps.Keys(assets.Translations)) {
			fmt.Fprintf(out, "  %s\n", machineName)
		}
	}
	return nil
}

func removeLibrary(cmd *cobra.Command, app *App, arg string) (err error) {
	name, err := h5p.ParseLibraryNameWith(arg, anyNameForm)
	if err != nil {
		return app.fail(cmd, err)
	}
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	if err := s.libraries.Uninstall(cmd.Context(), name); err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", successIcon, CmdStyle.Render(name.Ubername()))
	return nil
}

// closeServices closes s and reports a close failure through err unless an
// error is already being returned.
func closeServices(s *services, err *error) {
	if closeErr := s.Close(); closeErr != nil && *err == nil {
		*err = closeErr
	}
}
