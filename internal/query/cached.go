package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/studiolex/lexstore/internal/model"
)

// DefaultQueryCacheSize is the default number of query results to keep.
// Answers with citations run a few KB each, so 128 entries stays well
// under a MB of memory.
const DefaultQueryCacheSize = 128

// CachedExecutor wraps an Executor with LRU caching so repeating the same
// question against the same store skips the remote round trip. Only
// successful results are cached; errors always re-execute.
type CachedExecutor struct {
	inner Executor
	cache *lru.Cache[string, model.QueryResult]
}

// NewCachedExecutor creates a caching decorator around the given executor.
func NewCachedExecutor(inner Executor, cacheSize int) *CachedExecutor {
	if cacheSize <= 0 {
		cacheSize = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, model.QueryResult](cacheSize)
	return &CachedExecutor{
		inner: inner,
		cache: cache,
	}
}

// cacheKey derives a fixed-length key from the full request. Filters are
// serialized with encoding/json, which orders map keys, so equal filter
// sets produce equal keys regardless of construction order. An empty key
// means the request is uncacheable.
func (c *CachedExecutor) cacheKey(req model.QueryRequest) string {
	filters := []byte("{}")
	if len(req.Filters) > 0 {
		b, err := json.Marshal(req.Filters)
		if err != nil {
			return ""
		}
		filters = b
	}
	h := sha256.New()
	h.Write([]byte(req.StoreName))
	h.Write([]byte{0})
	h.Write([]byte(req.QueryText))
	h.Write([]byte{0})
	h.Write(filters)
	return hex.EncodeToString(h.Sum(nil))
}

// Execute returns the cached result when available, otherwise delegates
// and caches the outcome. Cached results are copied on the way out so a
// caller holding a previous result can never see later mutations.
func (c *CachedExecutor) Execute(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	key := c.cacheKey(req)
	if key == "" {
		return c.inner.Execute(ctx, req)
	}

	if cached, ok := c.cache.Get(key); ok {
		result := cached
		result.Citations = slices.Clone(cached.Citations)
		return &result, nil
	}

	result, err := c.inner.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	// Clone before storing: the first caller still holds result, and its
	// citations slice must not alias the cached copy.
	stored := *result
	stored.Citations = slices.Clone(result.Citations)
	c.cache.Add(key, stored)
	return result, nil
}

// Purge drops every cached result.
func (c *CachedExecutor) Purge() {
	c.cache.Purge()
}

// Len reports how many results are currently cached.
func (c *CachedExecutor) Len() int {
	return c.cache.Len()
}
