// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/h5pkit/h5pkit/internal/config"
	"github.com/h5pkit/h5pkit/internal/hub"
	"github.com/h5pkit/h5pkit/internal/testutil"
)

type (
	// stubConfig returns a fixed configuration.
	stubConfig struct {
		cfg *config.Config
		err error
	}

	// testCLI runs commands against an App with its own data directory.
	testCLI struct {
		app    *App
		cfg    *config.Config
		dir    string
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	}

	// fakeHub serves the hub protocol for the CLI.
	fakeHub struct {
		*httptest.Server

		catalogStatus atomic.Int32
		catalog       []hub.ContentType
		packages      map[string][]byte
	}
)

func (s *stubConfig) Load(_ context.Context, opts config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	if opts.ConfigFilePath != "" {
		cfg.Source = opts.ConfigFilePath
	}
	return &cfg, nil
}

// newTestCLI creates an App whose data lives below a temporary directory
// and whose hub is h. A nil h points the hub at an address nothing listens on.
func newTestCLI(t *testing.T, h *fakeHub) *testCLI {
	t.Helper()
	dir := t.TempDir()

	hubURL := "http://127.0.0.1:1"
	if h != nil {
		hubURL = h.URL
	}

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.LibrariesDir = filepath.Join(dir, "libraries")
	cfg.ContentDir = filepath.Join(dir, "content")
	cfg.TemporaryDir = filepath.Join(dir, "temporary")
	cfg.Store = config.StoreConfig{Kind: config.StoreJSON, Path: filepath.Join(dir, "hub.json")}
	cfg.Hub.RegistrationEndpoint = hubURL + "/register"
	cfg.Hub.ContentTypesEndpoint = hubURL + "/content-types/"
	cfg.Platform.Version = "test"

	return newTestCLIWithConfig(t, &stubConfig{cfg: cfg}, dir)
}

func newTestCLIWithConfig(t *testing.T, provider *stubConfig, dir string) *testCLI {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	app := NewApp(Dependencies{
		Config:        provider,
		MarkdownStyle: "notty",
		Stdout:        stdout,
		Stderr:        stderr,
	})
	return &testCLI{app: app, cfg: provider.cfg, dir: dir, stdout: stdout, stderr: stderr}
}

// run executes args and returns what was written to stdout.
func (c *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return c.runWithInput(t, nil, args...)
}

func (c *testCLI) runWithInput(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	c.stdout.Reset()
	c.stderr.Reset()

	rootCmd := NewRootCommand(c.app)
	if stdin != nil {
		rootCmd.SetIn(stdin)
	}
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return c.stdout.String(), err
}

// mustRun fails the test when args fail.
func (c *testCLI) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, args...)
	if err != nil {
		t.Fatalf("h5pkit %s: %v\nstderr:\n%s", strings.Join(args, " "), err, c.stderr.String())
	}
	return out
}

// writePackage writes the greeting card package with the given patch
// version and returns its path.
func (c *testCLI) writePackage(t *testing.T, patch int) string {
	t.Helper()
	return testutil.GreetingCardPackage(patch).Write(t, t.TempDir(), "greeting-card.h5p")
}

// importContent imports the greeting card package and returns the new
// content id.
func (c *testCLI) importContent(t *testing.T) string {
	t.Helper()
	out := c.mustRun(t, "package", "import", c.writePackage(t, 7))
	return createdContentID(t, out)
}

func createdContentID(t *testing.T, out string) string {
	t.Helper()
	for line := range strings.Lines(out) {
		if strings.Contains(line, "Created content") {
			fields := strings.Fields(line)
			return fields[len(fields)-1]
		}
	}
	t.Fatalf("no content id in output:\n%s", out)
	return ""
}

func assertExitCode(t *testing.T, err error, want int) {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != want {
		t.Errorf("exit code = %d, want %d", exitErr.Code, want)
	}
	if !exitErr.Rendered {
		t.Error("ExitError.Rendered = false, want true")
	}
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("output does not contain %q:\n%s", want, got)
		}
	}
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{
		catalog: []hub.ContentType{
			{
				ID:            testutil.GreetingCardMachineName,
				Version:       hub.Version{Major: 1, Minor: 0, Patch: 7},
				Title:         "Greeting Card",
				IsRecommended: true,
			},
			{
				ID:      "H5P.Blanks",
				Version: hub.Version{Major: 1, Minor: 12, Patch: 3},
				Title:   "Fill in the Blanks",
			},
		},
		packages: map[string][]byte{testutil.GreetingCardMachineName: testutil.GreetingCardPackage(7).Bytes(t)},
	}
	h.catalogStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"uuid": "5f7d0f43-9a56-4d55-8d8e-0f6a7b1c2d3e"})
	})
	mux.HandleFunc("POST /content-types/{$}", func(w http.ResponseWriter, r *http.Request) {
		if status := int(h.catalogStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		writeJSON(t, w, map[string]any{"contentTypes": h.catalog})
	})
	mux.HandleFunc("GET /content-types/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := h.packages[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	})

	h.Server = httptest.NewServer(mux)
	t.Cleanup(h.Close)
	return h
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}
