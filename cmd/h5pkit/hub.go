// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/h5pkit/h5pkit/internal/hub"

	"github.com/spf13/cobra"
)

// newHubCommand creates the `h5pkit hub` command tree.
func newHubCommand(app *App) *cobra.Command {
	hubCmd := &cobra.Command{
		Use:   "hub",
		Short: "Browse and install content types from the hub",
		Long: `Browse and install content types from the hub.

The content type catalog is cached locally and refreshed once the refresh
interval has passed. When the hub cannot be reached the cached catalog is
used and marked as outdated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	hubCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List content types with their local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listContentTypes(cmd, app)
		},
	})

	var force bool
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the cached content type catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateCatalog(cmd, app, force)
		},
	}
	updateCmd.Flags().BoolVarP(&force, "force", "f", false, "refresh even if the cached catalog is still fresh")
	hubCmd.AddCommand(updateCmd)

	hubCmd.AddCommand(&cobra.Command{
		Use:   "install <machine-name>",
		Short: "Download a content type and install its libraries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return installContentType(cmd, app, args[0])
		},
	})

	return hubCmd
}

func listContentTypes(cmd *cobra.Command, app *App) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	list, err := s.repository.Get(cmd.Context(), app.User)
	if err != nil {
		return app.fail(cmd, err)
	}
	out := cmd.OutOrStdout()
	if list.Outdated {
		fmt.Fprintf(out, "%s %s\n", skipIcon, WarningStyle.Render("The content type catalog is outdated; run 'h5pkit hub update' when the hub is reachable."))
	}
	if len(list.Libraries) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("No content types available."))
		return nil
	}

	rows := make([][]string, 0, len(list.Libraries))
	for _, e := range list.Libraries {
		rows = append(rows, []string{
			e.MachineName,
			fmt.Sprintf("%d.%d.%d", e.MajorVersion, e.MinorVersion, e.PatchVersion),
			localVersion(e),
			e.Title,
			contentTypeState(e),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Content type", "Hub", "Installed", "Title", "State"}, rows))
	return nil
}

func localVersion(e *hub.ContentTypeEntry) string {
	if !e.Installed {
		return "-"
	}
	return fmt.Sprintf("%d.%d.%d", e.LocalMajorVersion, e.LocalMinorVersion, e.LocalPatchVersion)
}

// contentTypeState summarizes the flags of e for one table cell.
func contentTypeState(e *hub.ContentTypeEntry) string {
	var state []string
	switch {
	case e.Installed && !e.IsUpToDate:
		state = append(state, "update available")
	case e.Installed:
		state = append(state, "up to date")
	}
	if e.IsRecommended {
		state = append(state, "recommended")
	}
	if e.Restricted {
		state = append(state, "restricted")
	}
	if !e.CanInstall {
		state = append(state, "not installable")
	}
	return strings.Join(state, ", ")
}

func updateCatalog(cmd *cobra.Command, app *App, force bool) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if force {
		if err := s.cache.ForceUpdate(ctx); err != nil {
			return app.fail(cmd, err)
		}
	} else {
		updated, err := s.cache.UpdateIfNecessary(ctx)
		if err != nil {
			return app.fail(cmd, err)
		}
		if !updated {
			outdated, err := s.cache.IsOutdated(ctx)
			if err != nil {
				return app.fail(cmd, err)
			}
			if outdated {
				fmt.Fprintf(out, "%s %s\n", skipIcon, WarningStyle.Render("The hub could not be reached; keeping the cached catalog."))
				return nil
			}
			fmt.Fprintf(out, "%s The content type catalog is up to date\n", skipIcon)
			return nil
		}
	}

	types, err := s.cache.Get(ctx)
	if err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(out, "%s Fetched %d content type(s)\n", successIcon, len(types))
	return nil
}

func installContentType(cmd *cobra.Command, app *App, id string) (err error) {
	s, err := app.openServices(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeServices(s, &err)

	ctx := cmd.Context()
	if _, err := s.cache.UpdateIfNecessary(ctx); err != nil {
		return app.fail(cmd, err)
	}
	if _, err := s.repository.Install(ctx, id, app.User); err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Installed content type %s\n", successIcon, CmdStyle.Render(id))
	return nil
}
