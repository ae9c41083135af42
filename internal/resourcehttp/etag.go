package resourcehttp

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/keithlinneman/resource/internal/cryptoutil"
)

// etagKey identifies one loaded version of an entry. A reload that moves
// the fingerprint or the size yields a new key.
type etagKey struct {
	name    string
	modTime int64
	size    int
}

// etagEntry pins the buffer a digest was computed from. Snapshots of one
// loaded version share a buffer, so a hit on a different buffer means the
// entry was reloaded without moving its fingerprint or size.
type etagEntry struct {
	tag   string
	first *byte
}

// etagCache memoizes content digests so unchanged resources are hashed
// once per version rather than once per request.
type etagCache struct {
	lru *expirable.LRU[etagKey, etagEntry]
}

func newETagCache(size int, ttl time.Duration) *etagCache {
	if size <= 0 {
		size = DefaultETagCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultETagTTL
	}
	return &etagCache{lru: expirable.NewLRU[etagKey, etagEntry](size, nil, ttl)}
}

func keyOf(name string, data []byte, modTime time.Time) etagKey {
	return etagKey{name: name, modTime: modTime.UnixNano(), size: len(data)}
}

func firstByte(data []byte) *byte {
	if len(data) == 0 {
		return nil
	}
	return &data[0]
}

func (c *etagCache) get(name string, data []byte, modTime time.Time) string {
	k := keyOf(name, data, modTime)
	if ent, ok := c.lru.Get(k); ok && ent.first == firstByte(data) {
		return ent.tag
	}
	tag := cryptoutil.ETag(data)
	c.lru.Add(k, etagEntry{tag: tag, first: firstByte(data)})
	return tag
}
