// SPDX-License-Identifier: MPL-2.0

package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store keys.
const (
	UUIDKey       = "uuid"
	CacheKey      = "contentTypeCache"
	LastUpdateKey = "contentTypeCacheUpdatedAt"
)

// DefaultRefreshInterval is how long a fetched catalog stays fresh.
const DefaultRefreshInterval = 24 * time.Hour

type (
	// KeyValueStore persists the site UUID and the cached catalog.
	KeyValueStore interface {
		Load(ctx context.Context, key string) ([]byte, bool, error)
		Save(ctx context.Context, key string, value []byte) error
	}

	// Clock supplies the current time.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// CacheSettings configure a ContentTypeCache.
	CacheSettings struct {
		RefreshInterval time.Duration
		Platform        PlatformInfo
	}

	// ContentTypeCache keeps the last successfully fetched catalog.
	ContentTypeCache struct {
		remote   Remote
		store    KeyValueStore
		settings CacheSettings
		clock    Clock
		logger   *slog.Logger
		flight   singleflight.Group
	}

	// CacheOption configures a ContentTypeCache.
	CacheOption func(*ContentTypeCache)
)

func (systemClock) Now() time.Time { return time.Now() }

// WithClock sets the clock used for staleness checks.
func WithClock(clock Clock) CacheOption {
	return func(c *ContentTypeCache) {
		c.clock = clock
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *ContentTypeCache) {
		c.logger = logger
	}
}

// NewContentTypeCache creates a cache over store. A zero refresh interval
// uses DefaultRefreshInterval.
func NewContentTypeCache(remote Remote, store KeyValueStore, settings CacheSettings, opts ...CacheOption) *ContentTypeCache {
	if settings.RefreshInterval <= 0 {
		settings.RefreshInterval = DefaultRefreshInterval
	}
	c := &ContentTypeCache{
		remote:   remote,
		store:    store,
		settings: settings,
		clock:    systemClock{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterOrGetUUID returns the stored site UUID, registering the site first
// if there is none.
func (c *ContentTypeCache) RegisterOrGetUUID(ctx context.Context) (string, error) {
	var uuid string
	found, err := c.load(ctx, UUIDKey, &uuid)
	if err != nil {
		return "", err
	}
	if found && uuid != "" {
		return uuid, nil
	}

	uuid, err = c.remote.Register(ctx, c.settings.Platform)
	if err != nil {
		return "", err
	}
	if err := c.save(ctx, UUIDKey, uuid); err != nil {
		return "", err
	}
	c.logger.Info("site registered", "uuid", uuid)
	return uuid, nil
}

// LastUpdate returns when the catalog was last fetched successfully.
func (c *ContentTypeCache) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	var last time.Time
	found, err := c.load(ctx, LastUpdateKey, &last)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return last, true, nil
}

// IsOutdated reports whether the catalog is older than the refresh interval
// or was never fetched.
func (c *ContentTypeCache) IsOutdated(ctx context.Context) (bool, error) {
	last, found, err := c.LastUpdate(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return c.clock.Now().Sub(last) > c.settings.RefreshInterval, nil
}

// UpdateIfNecessary refreshes an outdated catalog and reports whether it did.
// A failed fetch keeps the previous catalog and timestamp and is only
// logged; errors are returned for store failures alone. Concurrent callers
// share one refresh.
func (c *ContentTypeCache) UpdateIfNecessary(ctx context.Context) (bool, error) {
	v, err, _ := c.flight.Do("update", func() (any, error) {
		outdated, err := c.IsOutdated(ctx)
		if err != nil || !outdated {
			return false, err
		}
		types, err := c.fetch(ctx)
		if err != nil {
			c.logger.Warn("content type catalog refresh failed, keeping cached catalog", "error", err)
			return false, nil
		}
		if err := c.persist(ctx, types); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// ForceUpdate refreshes the catalog regardless of its age and returns any
// fetch failure.
func (c *ContentTypeCache) ForceUpdate(ctx context.Context) error {
	_, err, _ := c.flight.Do("update", func() (any, error) {
		types, err := c.fetch(ctx)
		if err != nil {
			return false, err
		}
		return true, c.persist(ctx, types)
	})
	return err
}

// Get returns the cached descriptors, restricted to machineNames when given.
// The result is empty, not nil, before the first successful fetch.
func (c *ContentTypeCache) Get(ctx context.Context, machineNames ...string) ([]ContentType, error) {
	types := []ContentType{}
	if _, err := c.load(ctx, CacheKey, &types); err != nil {
		return nil, err
	}
	if len(machineNames) == 0 {
		return types, nil
	}
	return slices.DeleteFunc(types, func(ct ContentType) bool {
		return !slices.Contains(machineNames, ct.ID)
	}), nil
}

// Download streams the package of ct from the remote.
func (c *ContentTypeCache) Download(ctx context.Context, ct ContentType) (io.ReadCloser, error) {
	return c.remote.Download(ctx, ct)
}

func (c *ContentTypeCache) fetch(ctx context.Context) ([]ContentType, error) {
	uuid, err := c.RegisterOrGetUUID(ctx)
	if err != nil {
		return nil, err
	}
	return c.remote.FetchContentTypes(ctx, uuid, c.settings.Platform)
}

func (c *ContentTypeCache) persist(ctx context.Context, types []ContentType) error {
	if err := c.save(ctx, CacheKey, types); err != nil {
		return err
	}
	if err := c.save(ctx, LastUpdateKey, c.clock.Now().UTC()); err != nil {
		return err
	}
	c.logger.Info("content type catalog updated", "contentTypes", len(types))
	return nil
}

func (c *ContentTypeCache) load(ctx context.Context, key string, v any) (bool, error) {
	data, found, err := c.store.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (c *ContentTypeCache) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
