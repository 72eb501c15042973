// SPDX-License-Identifier: MPL-2.0

package hub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/h5pkit/h5pkit/internal/hub"
	"github.com/h5pkit/h5pkit/internal/testutil"
)

const siteUUID = "7c1b42a4-5b6e-4e2f-9a55-3f0f3f0e5a11"

// fakeHub serves the catalog protocol and counts calls.
type fakeHub struct {
	*httptest.Server

	registrations atomic.Int32
	fetches       atomic.Int32
	downloads     atomic.Int32

	registerStatus atomic.Int32
	catalogStatus  atomic.Int32
	catalog        []hub.ContentType
	packages       map[string][]byte
}

func greetingCardType() hub.ContentType {
	return hub.ContentType{
		ID:            testutil.GreetingCardMachineName,
		Version:       hub.Version{Major: 1, Minor: 0, Patch: 7},
		Title:         "Greeting Card",
		Summary:       "Says hello",
		IsRecommended: true,
		Popularity:    10,
		Categories:    []string{"Other"},
	}
}

func blanksType() hub.ContentType {
	return hub.ContentType{
		ID:      "H5P.Blanks",
		Version: hub.Version{Major: 1, Minor: 12, Patch: 3},
		Title:   "Fill in the Blanks",
	}
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{
		catalog:  []hub.ContentType{greetingCardType(), blanksType()},
		packages: map[string][]byte{testutil.GreetingCardMachineName: testutil.GreetingCardPackage(7).Bytes(t)},
	}
	h.registerStatus.Store(http.StatusOK)
	h.catalogStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		h.registrations.Add(1)
		if status := int(h.registerStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		writeJSON(t, w, map[string]string{"uuid": siteUUID})
	})
	mux.HandleFunc("POST /content-types/{$}", func(w http.ResponseWriter, r *http.Request) {
		h.fetches.Add(1)
		var req struct {
			UUID string `json:"uuid"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UUID != siteUUID {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if status := int(h.catalogStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		writeJSON(t, w, map[string]any{"contentTypes": h.catalog})
	})
	mux.HandleFunc("GET /content-types/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.downloads.Add(1)
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

func (h *fakeHub) client() *hub.Client {
	return hub.NewClient(
		hub.WithHTTPClient(h.Server.Client()),
		hub.WithEndpoints(h.URL+"/register", h.URL+"/content-types/"),
	)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}
