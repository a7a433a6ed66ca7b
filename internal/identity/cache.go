// Package identity tracks the last email address successfully synced for each
// member id. The cache is what lets a deletion or email-change event locate a
// remote contact whose event payload no longer carries a usable address.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sambatesdesign/ChimpLink/internal/blobstore"
)

// Cache maps stringified member ids to their last successfully synced email.
// Every mutation is a full load-modify-save round trip against the blob
// store, serialized by a mutex so concurrent events cannot drop each other's
// writes within this process.
type Cache struct {
	mu     sync.Mutex
	store  blobstore.Store
	logger *slog.Logger
}

func NewCache(store blobstore.Store, logger *slog.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// Get returns the cached email for a member id. It never fails: a missing
// entry, a missing blob, or any load error all come back as ("", false) so
// event processing can continue on its missing-identity branch.
func (c *Cache) Get(ctx context.Context, memberID string) (string, bool) {
	if memberID == "" {
		return "", false
	}
	entries, err := c.load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "cache load failed, treating as miss",
			"member_id", memberID,
			"error", err,
		)
		return "", false
	}
	email, ok := entries[memberID]
	return email, ok && email != ""
}

// Put records the email most recently synced for a member id, overwriting any
// previous value. The write is visible to the next Get in this process as soon
// as Put returns.
func (c *Cache) Put(ctx context.Context, memberID, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	entries[memberID] = email
	return c.save(ctx, entries)
}

// Remove drops the entry for a member id. Removing an absent key is a no-op.
func (c *Cache) Remove(ctx context.Context, memberID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	if _, ok := entries[memberID]; !ok {
		return nil
	}
	delete(entries, memberID)
	return c.save(ctx, entries)
}

// Snapshot returns a copy of the whole cache for the admin dump endpoint.
func (c *Cache) Snapshot(ctx context.Context) (map[string]string, error) {
	return c.load(ctx)
}

func (c *Cache) load(ctx context.Context) (map[string]string, error) {
	data, err := c.store.Load(ctx, blobstore.KeyCache)
	if errors.Is(err, blobstore.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode cache blob: %w", err)
	}
	return entries, nil
}

func (c *Cache) save(ctx context.Context, entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache blob: %w", err)
	}
	return c.store.Save(ctx, blobstore.KeyCache, data)
}
