// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/h5pkit/h5pkit/internal/config"
	"github.com/h5pkit/h5pkit/internal/issue"
)

func TestConfigShow(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t, nil)
	out := c.mustRun(t, "config", "show")
	assertContains(t, out,
		"Current Configuration",
		"(using defaults)",
		c.cfg.LibrariesDir,
		"json",
		"(none configured)",
		"1.27",
	)

	out = c.mustRun(t, "--config", "/etc/h5pkit/config.cue", "config", "show")
	assertContains(t, out, "/etc/h5pkit/config.cue")
}

func TestConfigShow_LoadFailure(t *testing.T) {
	t.Parallel()

	loadErr := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("unexpected token")).
		BuildError()
	c := newTestCLIWithConfig(t, &stubConfig{err: loadErr}, t.TempDir())
	_, err := c.run(t, "config", "show")
	assertExitCode(t, err, ExitFailure)
	assertContains(t, c.stderr.String(), "unexpected token", "Failed to load configuration")
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t, nil)
	out := c.mustRun(t, "config", "dump")
	assertContains(t, out,
		`data_dir: "`+c.cfg.DataDir+`"`,
		`kind: "json"`,
		`refresh_interval: "24h0m0s"`,
	)
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t, nil)
	dir := filepath.Join(t.TempDir(), "h5pkit")

	out := c.mustRun(t, "config", "init", "--dir", dir)
	want := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
	assertContains(t, out, want)

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	assertContains(t, string(data), "h5pkit configuration file", `kind: "json"`)

	// An existing file is left alone.
	if err := os.WriteFile(want, []byte("log_level: \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.mustRun(t, "config", "init", "--dir", dir)
	data, err = os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "log_level: \"debug\"\n" {
		t.Errorf("config init overwrote an existing file:\n%s", data)
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t, nil)
	out := c.mustRun(t, "--config", "/tmp/custom.cue", "config", "path")
	assertContains(t, out, "Config file: /tmp/custom.cue")
}
