// SPDX-License-Identifier: MPL-2.0

package hub

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/h5pkit/h5pkit/pkg/h5p"
)

const (
	// DefaultRegistrationEndpoint is the public hub's site registration URL.
	DefaultRegistrationEndpoint = "https://api.h5p.org/v1/sites"
	// DefaultContentTypesEndpoint is the public hub's catalog URL.
	DefaultContentTypesEndpoint = "https://api.h5p.org/v1/content-types/"

	// maxJSONResponseBytes bounds catalog and registration responses.
	maxJSONResponseBytes = 10 << 20
)

var errNoUUID = errors.New("response carries no uuid")

type (
	// Version is a full major.minor.patch version.
	Version struct {
		Major int `json:"major"`
		Minor int `json:"minor"`
		Patch int `json:"patch"`
	}

	// Screenshot is a catalog screenshot.
	Screenshot struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	}

	// ContentType is one catalog descriptor.
	ContentType struct {
		// ID is the library's machine name.
		ID                   string          `json:"id"`
		Version              Version         `json:"version"`
		CoreAPIVersionNeeded h5p.CoreAPI     `json:"coreApiVersionNeeded"`
		Title                string          `json:"title"`
		Summary              string          `json:"summary,omitempty"`
		Description          string          `json:"description,omitempty"`
		Icon                 string          `json:"icon,omitempty"`
		CreatedAt            string          `json:"createdAt,omitempty"`
		UpdatedAt            string          `json:"updatedAt,omitempty"`
		IsRecommended        bool            `json:"isRecommended"`
		Popularity           int             `json:"popularity"`
		Screenshots          []Screenshot    `json:"screenshots,omitempty"`
		License              json.RawMessage `json:"license,omitempty"`
		Example              string          `json:"example,omitempty"`
		Tutorial             string          `json:"tutorial,omitempty"`
		Keywords             []string        `json:"keywords,omitempty"`
		Categories           []string        `json:"categories,omitempty"`
		Owner                string          `json:"owner,omitempty"`
		// DownloadURL overrides <contentTypesEndpoint>/<ID> when set.
		DownloadURL string `json:"downloadUrl,omitempty"`
	}

	// PlatformInfo describes this installation to the catalog.
	PlatformInfo struct {
		Name           string `json:"platform_name"`
		Version        string `json:"platform_version"`
		CoreAPIVersion string `json:"core_api_version"`
		Disabled       bool   `json:"disabled"`
		LocalID        string `json:"local_id,omitempty"`
		Type           string `json:"type,omitempty"`
		UsesLibraryHub bool   `json:"uses_library_hub"`
	}

	// Remote is the catalog protocol. *Client implements it.
	Remote interface {
		Register(ctx context.Context, info PlatformInfo) (string, error)
		FetchContentTypes(ctx context.Context, uuid string, info PlatformInfo) ([]ContentType, error)
		Download(ctx context.Context, ct ContentType) (io.ReadCloser, error)
	}

	// Client speaks the catalog protocol over HTTP with JSON bodies.
	Client struct {
		httpClient           *http.Client
		registrationEndpoint string
		contentTypesEndpoint string
		userAgent            string
	}

	// ClientOption configures a Client.
	ClientOption func(*Client)

	registrationRequest struct {
		PlatformInfo
	}

	registrationResponse struct {
		UUID string `json:"uuid"`
	}

	catalogRequest struct {
		PlatformInfo
		UUID string `json:"uuid"`
	}

	catalogResponse struct {
		ContentTypes []ContentType `json:"contentTypes"`
	}
)

// String returns "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions numerically.
func (v Version) Compare(other Version) int {
	return cmp.Or(
		cmp.Compare(v.Major, other.Major),
		cmp.Compare(v.Minor, other.Minor),
		cmp.Compare(v.Patch, other.Patch),
	)
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoints overrides the registration and catalog endpoints. Empty
// values keep the defaults.
func WithEndpoints(registration, contentTypes string) ClientOption {
	return func(cl *Client) {
		if registration != "" {
			cl.registrationEndpoint = registration
		}
		if contentTypes != "" {
			cl.contentTypesEndpoint = contentTypes
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a Client for the public hub unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:           http.DefaultClient,
		registrationEndpoint: DefaultRegistrationEndpoint,
		contentTypesEndpoint: DefaultContentTypesEndpoint,
		userAgent:            "h5pkit/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register registers the site and returns the UUID the catalog assigned.
func (c *Client) Register(ctx context.Context, info PlatformInfo) (string, error) {
	var resp registrationResponse
	if err := c.postJSON(ctx, c.registrationEndpoint, registrationRequest{PlatformInfo: info}, &resp); err != nil {
		return "", err
	}
	if resp.UUID == "" {
		return "", &h5p.RemoteUnreachableError{Endpoint: c.registrationEndpoint, Err: errNoUUID}
	}
	return resp.UUID, nil
}

// FetchContentTypes returns the catalog in the order the remote sent it.
func (c *Client) FetchContentTypes(ctx context.Context, uuid string, info PlatformInfo) ([]ContentType, error) {
	var resp catalogResponse
	if err := c.postJSON(ctx, c.contentTypesEndpoint, catalogRequest{PlatformInfo: info, UUID: uuid}, &resp); err != nil {
		return nil, err
	}
	if resp.ContentTypes == nil {
		resp.ContentTypes = []ContentType{}
	}
	return resp.ContentTypes, nil
}

// Download streams the package of ct. The caller closes the reader.
func (c *Client) Download(ctx context.Context, ct ContentType) (io.ReadCloser, error) {
	target := ct.DownloadURL
	if target == "" {
		target = strings.TrimRight(c.contentTypesEndpoint, "/") + "/" + url.PathEscape(ct.ID)
	}
	resp, err := c.do(ctx, http.MethodGet, target, http.NoBody, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &h5p.RemoteUnreachableError{Endpoint: redactURL(target), StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return &h5p.RemoteUnreachableError{Endpoint: redactURL(endpoint), StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(out); err != nil {
		return &h5p.RemoteUnreachableError{Endpoint: redactURL(endpoint), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// do executes a request; transport failures become *h5p.RemoteUnreachableError.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &h5p.RemoteUnreachableError{Endpoint: redactURL(endpoint), Err: err}
	}
	return resp, nil
}

// redactURL strips query and fragment from a URL for error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
