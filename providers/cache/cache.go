// Package cache implements the provider manager's response cache: keyed
// by (operation_type, params_fingerprint), TTL per call, time-only
// invalidation, never touched by writes.
//
// Two tiers back it, each grounded on a real dependency from the example
// corpus: a small in-process object cache (hashicorp/golang-lru/v2) for
// decoded responses, and a larger byte-oriented cache
// (VictoriaMetrics/fastcache) for the provider's raw pre-parse payload,
// so a cache hit can skip both the network call and, for identical
// fingerprints, the JSON decode.
package cache

import (
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one cached response.
type Key struct {
	OperationType string
	Fingerprint   string
}

func (k Key) string() string {
	return k.OperationType + "|" + k.Fingerprint
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is safe for concurrent use: object-tier reads and writes both take
// c.mu for a short critical section, and the raw tier relies on
// fastcache's own internal locking, matching the "Shared resource policy".
type Cache struct {
	mu     sync.Mutex
	objs   *lru.Cache[string, entry]
	raw    *fastcache.Cache
}

// New builds a cache holding up to maxObjects decoded responses and
// maxRawBytes of raw provider payload bytes.
func New(maxObjects int, maxRawBytes int) *Cache {
	objs, err := lru.New[string, entry](maxObjects)
	if err != nil {
		// Only returns an error for size <= 0; callers always pass a
		// positive configured size, so this is unreachable in practice.
		objs, _ = lru.New[string, entry](128)
	}
	return &Cache{
		objs: objs,
		raw:  fastcache.New(maxRawBytes),
	}
}

// GetObject returns a previously cached decoded value if present and not
// expired.
func (c *Cache) GetObject(k Key, now time.Time) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.objs.Get(k.string())
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		c.objs.Remove(k.string())
		return nil, false
	}
	return e.value, true
}

// PutObject caches a decoded value with the given TTL.
func (c *Cache) PutObject(k Key, value any, ttl time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objs.Add(k.string(), entry{value: value, expiresAt: now.Add(ttl)})
}

// GetRaw returns cached raw bytes for k, if present. fastcache has no TTL
// concept of its own, so the cache encodes an expiry timestamp prefix;
// absence of a valid, unexpired prefix is treated as a miss.
func (c *Cache) GetRaw(k Key, now time.Time) ([]byte, bool) {
	buf, ok := c.raw.HasGet(nil, []byte(k.string()))
	if !ok || len(buf) < 8 {
		return nil, false
	}
	expiresUnix := decodeUnix(buf[:8])
	if now.Unix() > expiresUnix {
		c.raw.Del([]byte(k.string()))
		return nil, false
	}
	return buf[8:], true
}

// PutRaw caches raw bytes for k with the given TTL.
func (c *Cache) PutRaw(k Key, raw []byte, ttl time.Duration, now time.Time) {
	buf := make([]byte, 8+len(raw))
	encodeUnix(buf[:8], now.Add(ttl).Unix())
	copy(buf[8:], raw)
	c.raw.Set([]byte(k.string()), buf)
}

func encodeUnix(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func decodeUnix(b []byte) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}
