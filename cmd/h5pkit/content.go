// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/cobra"
)

// newContentCommand creates the `h5pkit content` command tree.
func newContentCommand(app *App) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect and delete content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	contentCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listContent(cmd, app)
		},
	})

	contentCmd.AddCommand(&cobra.Command{
		Use:   "show <content-id>",
		Short: "Show the metadata and parameters of content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showContent(cmd, app, h5p.ContentID(args[0]))
		},
	})

	contentCmd.AddCommand(&cobra.Command{
		Use:   "delete <content-id>",
		Short: "Delete content and all of its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteContent(cmd, app, h5p.ContentID(args[0]))
		},
	})

	contentCmd.AddCommand(&cobra.Command{
		Use:   "prune-temporary",
		Short: "Delete expired temporary files of editor sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pruneTemporary(cmd, app)
		},
	})

	return contentCmd
}

func listContent(cmd *cobra.Command, app *App) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	ctx := cmd.Context()
	ids, err := s.contents.ListContent(ctx, app.User)
	if err != nil {
		return app.fail(cmd, err)
	}
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("No content."))
		return nil
	}

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		meta, err := s.contents.LoadMetadata(ctx, id, app.User)
		if err != nil {
			return app.fail(cmd, err)
		}
		main, err := meta.MainLibraryName()
		library := meta.MainLibrary
		if err == nil {
			library = main.Ubername()
		}
		rows = append(rows, []string{id.String(), meta.Title, library, meta.Language})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Library", "Language"}, rows))
	return nil
}

func showContent(cmd *cobra.Command, app *App, id h5p.ContentID) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	ctx := cmd.Context()
	c, err := s.editor.LoadContent(ctx, id, app.User)
	if err != nil {
		return app.fail(cmd, err)
	}
	files, err := s.contents.ListContentFiles(ctx, id, app.User)
	if err != nil {
		return app.fail(cmd, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render(c.Metadata.Title))
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("id"), c.ID)
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("library"), c.Library)
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("language"), c.Metadata.Language)
	if c.Metadata.License != "" {
		fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("license"), c.Metadata.License)
	}
	deps := make([]string, len(c.Metadata.PreloadedDependencies))
	for i, dep := range c.Metadata.PreloadedDependencies {
		deps[i] = dep.Ubername()
	}
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("dependencies"), strings.Join(deps, ", "))
	if len(files) > 0 {
		fmt.Fprintf(out, "%s:\n", CmdStyle.Render("files"))
		for _, f := range files {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("params"), c.Parameters)
	return nil
}

func deleteContent(cmd *cobra.Command, app *App, id h5p.ContentID) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	if err := s.contents.DeleteContent(cmd.Context(), id, app.User); err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted content %s\n", successIcon, CmdStyle.Render(id.String()))
	return nil
}

func pruneTemporary(cmd *cobra.Command, app *App) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	n, err := s.temporary.DeleteExpired(cmd.Context(), time.Now())
	if err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %d expired temporary file(s)\n", successIcon, n)
	return nil
}
