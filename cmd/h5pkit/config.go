// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h5pkit/h5pkit/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `h5pkit config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage h5pkit configuration",
		Long: `Manage h5pkit configuration.

Configuration is stored in:
  - Linux: ~/.config/h5pkit/config.cue
  - macOS: ~/Library/Application Support/h5pkit/config.cue
  - Windows: %APPDATA%\h5pkit\config.cue

Values are resolved from built-in defaults, then the config file, then
H5PKIT_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		},
	})

	var dir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, app, dir)
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", "", "directory to create config.cue in (default is the platform config directory)")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App) error {
	cfg, err := app.loadConfig(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)

	if cfg.Source != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	value := func(indent, key string, v any) {
		fmt.Fprintf(out, "%s%s: %s\n", indent, keyStyle.Render(key), valueStyle.Render(fmt.Sprint(v)))
	}

	value("", "data_dir", cfg.DataDir)
	value("", "libraries_dir", cfg.LibrariesDir)
	value("", "content_dir", cfg.ContentDir)
	value("", "temporary_dir", cfg.TemporaryDir)
	value("", "log_level", cfg.LogLevel)
	value("", "core_api", cfg.CoreAPI)
	value("", "temporary_file_lifetime", cfg.TemporaryFileLifetime)

	configSection(out, "store")
	value("  ", "kind", cfg.Store.Kind)
	value("  ", "path", cfg.Store.Path)

	configSection(out, "hub")
	value("  ", "registration_endpoint", cfg.Hub.RegistrationEndpoint)
	value("  ", "content_types_endpoint", cfg.Hub.ContentTypesEndpoint)
	value("  ", "refresh_interval", cfg.Hub.RefreshInterval)
	if len(cfg.Hub.Restricted) == 0 {
		fmt.Fprintf(out, "  %s: %s\n", keyStyle.Render("restricted"), SubtitleStyle.Render("(none configured)"))
	} else {
		value("  ", "restricted", strings.Join(cfg.Hub.Restricted, ", "))
	}
	value("  ", "enable_restricted", cfg.Hub.EnableRestricted)

	configSection(out, "platform")
	value("  ", "name", cfg.Platform.Name)
	value("  ", "version", cfg.Platform.Version)

	configSection(out, "limits")
	value("  ", "max_file_size", cfg.Limits.MaxFileSize)
	value("  ", "max_total_size", cfg.Limits.MaxTotalSize)
	value("  ", "max_depth", cfg.Limits.MaxDepth)
	value("  ", "aggregate", cfg.Limits.Aggregate)

	return nil
}

func configSection(w io.Writer, name string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render(name))
}

func initConfig(cmd *cobra.Command, app *App, dir string) error {
	if dir == "" {
		var err error
		if dir, err = config.ConfigDir(); err != nil {
			return app.fail(cmd, err)
		}
	}

	cfgPath, err := config.CreateDefaultConfig(dir)
	if err != nil {
		return app.fail(cmd, fmt.Errorf("failed to create config: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration at %s\n", successIcon, cfgPath)
	return nil
}

func showConfigPath(cmd *cobra.Command, app *App) error {
	out := cmd.OutOrStdout()
	if app.configPath != "" {
		fmt.Fprintf(out, "Config file: %s\n", app.configPath)
		return nil
	}

	cfgDir, err := config.ConfigDir()
	if err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(out, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(out, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))

	if dataDir, err := config.DefaultDataDir(); err == nil {
		fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	}
	return nil
}
