package refine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of proposals kept per call kind
const DefaultCacheSize = 1024

// Cache keeps refinement proposals keyed by a hash of their request.
// Cached values are shared; callers must not mutate them.
type Cache struct {
	splits      *lru.Cache[string, *SplitProposal]
	compares    *lru.Cache[string, *CompareProposal]
	hierarchies *lru.Cache[string, *HierarchyProposal]
}

// NewCache creates a cache holding up to maxLen proposals of each kind
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	splits, _ := lru.New[string, *SplitProposal](maxLen)
	compares, _ := lru.New[string, *CompareProposal](maxLen)
	hierarchies, _ := lru.New[string, *HierarchyProposal](maxLen)
	return &Cache{splits: splits, compares: compares, hierarchies: hierarchies}
}

// Size returns the number of cached proposals
func (c *Cache) Size() int {
	return c.splits.Len() + c.compares.Len() + c.hierarchies.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.splits.Purge()
	c.compares.Purge()
	c.hierarchies.Purge()
}

// ComputeHash returns the hex SHA-256 of a request's JSON encoding
func ComputeHash(req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

type caching struct {
	next  Refiner
	cache *Cache
}

// WithCache wraps r so identical requests are answered from cache
func WithCache(r Refiner, cache *Cache) Refiner {
	return &caching{next: r, cache: cache}
}

func cached[Req any, Resp any](ctx context.Context, store *lru.Cache[string, Resp], req Req, call func(context.Context, Req) (Resp, error)) (Resp, error) {
	key, err := ComputeHash(req)
	if err != nil {
		return call(ctx, req)
	}
	if resp, ok := store.Get(key); ok {
		return resp, nil
	}
	resp, err := call(ctx, req)
	if err != nil {
		return resp, err
	}
	store.Add(key, resp)
	return resp, nil
}

func (c *caching) Split(ctx context.Context, req SplitRequest) (*SplitProposal, error) {
	return cached(ctx, c.cache.splits, req, c.next.Split)
}

func (c *caching) Compare(ctx context.Context, req CompareRequest) (*CompareProposal, error) {
	return cached(ctx, c.cache.compares, req, c.next.Compare)
}

func (c *caching) ProposeHierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyProposal, error) {
	return cached(ctx, c.cache.hierarchies, req, c.next.ProposeHierarchy)
}

func (c *caching) Provider() string {
	return c.next.Provider()
}
