// SPDX-License-Identifier: MPL-2.0

package content_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/h5pkit/h5pkit/internal/content"
	"github.com/h5pkit/h5pkit/internal/storage/fsstore"
	"github.com/h5pkit/h5pkit/internal/testutil"
	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/spf13/afero"
)

var errDiskFull = errors.New("disk full")

// failingStore fails every AddContentFile call for one file name.
type failingStore struct {
	*fsstore.ContentStore
	failOn string
}

func (s *failingStore) AddContentFile(ctx context.Context, id h5p.ContentID, file string, r io.Reader, user h5p.User) error {
	if file == s.failOn {
		return errDiskFull
	}
	return s.ContentStore.AddContentFile(ctx, id, file, r, user)
}

func newStore(t *testing.T) *fsstore.ContentStore {
	t.Helper()
	store, err := fsstore.NewContentStore(afero.NewMemMapFs(), "/content")
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func packageDir(t *testing.T) fstest.MapFS {
	t.Helper()
	manifest, err := json.Marshal(testutil.GreetingCardManifest())
	if err != nil {
		t.Fatal(err)
	}
	params, err := json.Marshal(testutil.GreetingCardParameters())
	if err != nil {
		t.Fatal(err)
	}
	return fstest.MapFS{
		"h5p.json":                              {Data: manifest},
		"content/content.json":                  {Data: params},
		"content/" + testutil.GreetingCardImage: {Data: testutil.EarthJPEG},
		"content/audio/hello.mp3":               {Data: []byte("mp3")},
		"H5P.GreetingCard-1.0/library.json":     {Data: []byte("{}")},
	}
}

func TestCopyContentFromDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	manager := content.New(store, content.WithCopyConcurrency(2))
	user := h5p.AdminUser("1")

	result, err := manager.CopyContentFromDirectory(ctx, packageDir(t), user, "")
	if err != nil {
		t.Fatalf("CopyContentFromDirectory() error = %v", err)
	}
	if result.Metadata.Title != "Greeting Card" {
		t.Errorf("Title = %q", result.Metadata.Title)
	}
	slices.Sort(result.Files)
	if !slices.Equal(result.Files, []string{"audio/hello.mp3", testutil.GreetingCardImage}) {
		t.Errorf("Files = %v", result.Files)
	}

	params, err := manager.LoadContent(ctx, result.ID, user)
	if err != nil || !strings.Contains(string(params), testutil.GreetingCardGreeting) {
		t.Errorf("LoadContent() = %s, %v", params, err)
	}
	rc, err := manager.GetContentFileStream(ctx, result.ID, testutil.GreetingCardImage, user)
	if err != nil {
		t.Fatalf("GetContentFileStream() error = %v", err)
	}
	if got := testutil.MustReadAll(t, rc); string(got) != string(testutil.EarthJPEG) {
		t.Errorf("image content mismatch")
	}
}

func TestCopyContentFromDirectory_RollsBackOnFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &failingStore{ContentStore: newStore(t), failOn: "audio/hello.mp3"}
	manager := content.New(store)
	user := h5p.AdminUser("1")

	_, err := manager.CopyContentFromDirectory(ctx, packageDir(t), user, "")
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected the copy error, got %v", err)
	}

	ids, err := manager.ListContent(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("failed copy must not leave content behind, found %v", ids)
	}
}

func TestCopyContentFromDirectory_MissingManifest(t *testing.T) {
	t.Parallel()

	dir := packageDir(t)
	delete(dir, "content/content.json")

	_, err := content.New(newStore(t)).CopyContentFromDirectory(context.Background(), dir, h5p.AdminUser("1"), "")
	var missing *h5p.MissingManifestError
	if !errors.As(err, &missing) || missing.File != "content/content.json" {
		t.Fatalf("expected MissingManifestError for content.json, got %v", err)
	}
}

func TestCreateOrUpdateContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	manager := content.New(newStore(t))
	user := h5p.AdminUser("1")
	meta := testutil.GreetingCardManifest()

	id, err := manager.CreateOrUpdateContent(ctx, meta, json.RawMessage(`{"greeting":"a"}`), user, "")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	again, err := manager.CreateOrUpdateContent(ctx, meta, json.RawMessage(`{"greeting":"b"}`), user, id)
	if err != nil || again != id {
		t.Fatalf("update = %s, %v", again, err)
	}
	params, _ := manager.LoadContent(ctx, id, user)
	if !strings.Contains(string(params), `"b"`) {
		t.Errorf("update not applied: %s", params)
	}

	if err := manager.AddContentFile(ctx, id, "notes.txt", strings.NewReader("x"), user); err != nil {
		t.Fatal(err)
	}
	if ok, _ := manager.ContentFileExists(ctx, id, "notes.txt"); !ok {
		t.Error("file should exist")
	}
	if err := manager.DeleteContentFile(ctx, id, "notes.txt", user); err != nil {
		t.Fatal(err)
	}
	if err := manager.DeleteContent(ctx, id, user); err != nil {
		t.Fatal(err)
	}
	if ok, _ := manager.ContentExists(ctx, id); ok {
		t.Error("content should be gone")
	}
	if _, err := manager.LoadMetadata(ctx, id, user); !errors.Is(err, h5p.ErrContentNotFound) {
		t.Errorf("LoadMetadata() error = %v", err)
	}
}
