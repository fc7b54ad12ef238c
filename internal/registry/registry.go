// Package registry reconciles the local cache snapshot with the remote
// store listing. It owns the before/after cache discipline: remote first,
// cache only on confirmation, so the snapshot never claims state the
// service did not acknowledge.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/studiolex/lexstore/internal/cache"
	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/model"
)

// RemoteAPI is the narrow remote surface the registry needs.
type RemoteAPI interface {
	CreateStore(ctx context.Context, displayName, description string) (*model.Store, error)
	ListStores(ctx context.Context) ([]model.Store, error)
	DeleteStore(ctx context.Context, name string) error
}

// Config holds registry tuning.
type Config struct {
	// StaleAge is how old a cached listing may be before List refreshes it
	// from the remote. Zero disables age-based refresh.
	StaleAge time.Duration
}

// Registry exposes store lifecycle operations backed by the remote service
// and the persisted cache.
type Registry struct {
	remote RemoteAPI
	cache  *cache.Store
	cfg    Config
	logger *slog.Logger

	// mu serializes cache read-modify-write sequences. Remote calls run
	// outside it so list/create/delete can overlap on the network.
	mu sync.Mutex
}

// New creates a registry.
func New(remote RemoteAPI, cacheStore *cache.Store, cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		remote: remote,
		cache:  cacheStore,
		cfg:    cfg,
		logger: logger,
	}
}

// List returns the known stores. The cached view is served directly when it
// is fresh enough and forceRefresh is false (offline-capable read);
// otherwise the remote listing is fetched, merged, and persisted.
func (r *Registry) List(ctx context.Context, forceRefresh bool) ([]model.Store, error) {
	if !forceRefresh {
		snap := r.cache.Load()
		if !snap.IsEmpty() && !snap.Stale(r.cfg.StaleAge, time.Now()) {
			return snap.Stores, nil
		}
	}
	return r.Sync(ctx)
}

// Sync fetches the authoritative remote listing, merges it into the cache,
// persists the result, and returns the merged view. Store entries carrying
// locally-assigned default metadata keep it across the merge: the remote
// never stores those defaults.
func (r *Registry) Sync(ctx context.Context) ([]model.Store, error) {
	stores, err := r.remote.ListStores(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.cache.Load()
	merged := current.Merge(stores, authoritativeNames(current), time.Now())
	if err := r.cache.Persist(merged); err != nil {
		// The listing itself succeeded; a persist failure only costs the
		// next process run a refresh.
		r.logger.Warn("failed to persist cache snapshot after sync", "error", err)
	}

	r.logger.Debug("synced store listing", "stores", len(merged.Stores))
	return merged.Stores, nil
}

// Create creates a store remotely, then inserts it into the cache. On any
// remote failure the cache is left untouched and the error propagates
// unchanged.
func (r *Registry) Create(ctx context.Context, displayName, description string) (*model.Store, error) {
	store, err := r.remote.CreateStore(ctx, displayName, description)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.cache.Load()
	snap.Upsert(*store)
	if err := r.cache.Persist(snap); err != nil {
		// The store exists remotely; failing the create here would lie.
		r.logger.Warn("store created but cache persist failed",
			"store", store.Name,
			"error", err)
	}

	r.logger.Info("created store", "store", store.Name, "display_name", store.DisplayName)
	return store, nil
}

// Delete deletes a store remotely, then removes the cache entry. A remote
// not-found is treated as already deleted: the cache entry (if any) is
// still removed and no error surfaces, making delete idempotent.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := r.remote.DeleteStore(ctx, name); err != nil {
		if lexerrors.KindOf(err) != lexerrors.KindNotFound {
			return err
		}
		r.logger.Debug("store already absent remotely, treating as deleted", "store", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.cache.Load()
	if snap.Remove(name) {
		if err := r.cache.Persist(snap); err != nil {
			r.logger.Warn("store deleted but cache persist failed",
				"store", name,
				"error", err)
		}
	}

	r.logger.Info("deleted store", "store", name)
	return nil
}

// Resolve finds a store by its stable name or, failing that, by display
// name. A cache miss triggers one remote sync before giving up. Display
// names are not required to be unique; an ambiguous match is an error
// rather than a silent first-wins pick.
func (r *Registry) Resolve(ctx context.Context, nameOrDisplay string) (*model.Store, error) {
	if nameOrDisplay == "" {
		return nil, lexerrors.New(lexerrors.ErrCodeStoreNameEmpty, "store name is required", nil)
	}

	snap := r.cache.Load()
	if store, err := matchStore(snap.Stores, nameOrDisplay); store != nil || err != nil {
		return store, err
	}

	stores, err := r.Sync(ctx)
	if err != nil {
		return nil, err
	}
	if store, err := matchStore(stores, nameOrDisplay); store != nil || err != nil {
		return store, err
	}
	return nil, lexerrors.New(lexerrors.ErrCodeNotFound,
		fmt.Sprintf("store not found: %s", nameOrDisplay), nil).
		WithSuggestion("Run 'lexstore stores list --refresh' to see available stores")
}

// SetDefaults assigns local default metadata to a cached store. Defaults
// live only in the cache (the remote does not store them) and survive
// syncs: an entry with defaults is locally authoritative for that field.
func (r *Registry) SetDefaults(name string, defaults map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.cache.Load()
	store, ok := snap.Get(name)
	if !ok {
		return lexerrors.New(lexerrors.ErrCodeNotFound,
			fmt.Sprintf("store not in cache: %s", name), nil).
			WithSuggestion("Run 'lexstore stores list --refresh' first")
	}

	store.DefaultMetadata = defaults
	snap.Upsert(store)
	return r.cache.Persist(snap)
}

// RecordUploaded bumps the cached file count after a successful upload
// batch so the local view reflects the new documents before the next sync.
func (r *Registry) RecordUploaded(name string, count int) {
	if count <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.cache.Load()
	store, ok := snap.Get(name)
	if !ok {
		return
	}

	store.FileCount += count
	snap.Upsert(store)
	if err := r.cache.Persist(snap); err != nil {
		r.logger.Warn("failed to persist cache snapshot after upload",
			"store", name,
			"error", err)
	}
}

// matchStore resolves a key against a listing: stable name first, then
// display name. Returns (nil, nil) on no match.
func matchStore(stores []model.Store, key string) (*model.Store, error) {
	for _, s := range stores {
		if s.Name == key {
			s := s
			return &s, nil
		}
	}

	var matches []model.Store
	for _, s := range stores {
		if s.DisplayName == key {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		s := matches[0]
		return &s, nil
	default:
		return nil, lexerrors.New(lexerrors.ErrCodeInvalidInput,
			fmt.Sprintf("display name %q matches %d stores, use the store name instead", key, len(matches)), nil)
	}
}

// authoritativeNames lists cached stores whose default metadata was set
// locally; those entries keep their defaults over the remote's view.
func authoritativeNames(snap cache.Snapshot) []string {
	var names []string
	for _, s := range snap.Stores {
		if len(s.DefaultMetadata) > 0 {
			names = append(names, s.Name)
		}
	}
	return names
}
