// Package embedcache memoizes embedding vectors by content. Vectors live in
// memory and, when a durable backend is configured, in persistent storage so
// that they survive restarts.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kalambet/skillgap/internal/logger"
)

// Backend is the durable key-value store behind the cache.
type Backend interface {
	GetCachedEmbedding(ctx context.Context, key string) ([]byte, bool, error)
	PutCachedEmbedding(ctx context.Context, key string, blob []byte) error
}

// ComputeFunc produces the vector for a normalized text on a cache miss.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries  int    `json:"entries"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Computes uint64 `json:"computes"`
	Degraded bool   `json:"degraded"`
}

var errEmptyVector = errors.New("compute returned an empty vector")

// DefaultComputeTimeout bounds one shared compute call.
const DefaultComputeTimeout = 30 * time.Second

// Cache is safe for concurrent use. Concurrent misses on the same key share
// one compute call.
type Cache struct {
	backend   Backend
	normalize func(string) string
	log       *zap.Logger
	timeout   time.Duration

	mu  sync.RWMutex
	mem map[string][]float32

	group    singleflight.Group
	degraded atomic.Bool

	hits, misses, computes atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used to report degradation.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = logger.OrNop(l) }
}

// WithComputeTimeout bounds each compute call. Compute runs detached from
// the callers' contexts, so this is the only limit on it.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithNormalizer sets the function applied to text before keying and
// computing. The default lower-cases and collapses whitespace.
func WithNormalizer(fn func(string) string) Option {
	return func(c *Cache) {
		if fn != nil {
			c.normalize = fn
		}
	}
}

// New returns a cache backed by backend. A nil backend keeps vectors in
// memory only.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:   backend,
		normalize: defaultNormalize,
		log:       zap.NewNop(),
		mem:       make(map[string][]float32),
		timeout:   DefaultComputeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultNormalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key derives the storage key for a normalized text and embedding source.
func Key(normalized, sourceID string) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrCompute returns the vector for text under sourceID, calling compute
// on a miss. Backend failures never reach the caller: the cache switches to
// memory-only mode for the rest of its lifetime. Compute errors and context
// cancellation are returned so the caller can fall back. A caller that gives
// up does not cancel the compute for other callers waiting on the same key.
// Returned vectors are shared and must not be modified.
func (c *Cache) GetOrCompute(ctx context.Context, text, sourceID string, compute ComputeFunc) ([]float32, error) {
	normalized := c.normalize(text)
	key := Key(normalized, sourceID)

	if v, ok := c.fromMemory(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	if v, ok := c.fromBackend(ctx, key); ok {
		c.hits.Add(1)
		c.remember(key, v)
		return v, nil
	}
	c.misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		c.computes.Add(1)
		cctx, cancel := context.WithTimeout(detached, c.timeout)
		defer cancel()
		vec, err := compute(cctx, normalized)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, errEmptyVector
		}
		c.remember(key, vec)
		c.persist(detached, key, vec)
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("computing embedding: %w", res.Err)
		}
		return res.Val.([]float32), nil
	}
}

// Stats reports cache counters. Degraded is true only after a configured
// backend failed.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.mem)
	c.mu.RUnlock()
	return Stats{
		Entries:  entries,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
		Degraded: c.degraded.Load(),
	}
}

// Reset drops every in-memory vector. Persisted vectors are not touched.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.mem = make(map[string][]float32)
	c.mu.Unlock()
}

func (c *Cache) fromMemory(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.mem[key]
	return v, ok
}

func (c *Cache) remember(key string, v []float32) {
	c.mu.Lock()
	c.mem[key] = v
	c.mu.Unlock()
}

func (c *Cache) fromBackend(ctx context.Context, key string) ([]float32, bool) {
	if c.backend == nil || c.degraded.Load() {
		return nil, false
	}
	blob, ok, err := c.backend.GetCachedEmbedding(ctx, key)
	if err != nil {
		c.fail("read", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	v, err := decodeFloat32s(blob)
	if err != nil || len(v) == 0 {
		c.log.Warn("discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return v, true
}

func (c *Cache) persist(ctx context.Context, key string, v []float32) {
	if c.backend == nil || c.degraded.Load() {
		return
	}
	if err := c.backend.PutCachedEmbedding(ctx, key, encodeFloat32s(v)); err != nil {
		c.fail("write", err)
	}
}

// fail switches the cache to memory-only mode. Cancellation of the caller's
// context says nothing about the backend and is ignored.
func (c *Cache) fail(op string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if c.degraded.CompareAndSwap(false, true) {
		c.log.Warn("embedding cache storage unavailable, continuing in memory only",
			zap.String("op", op), zap.Error(err))
	}
}
