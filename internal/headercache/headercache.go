// Package headercache is a small bounded cache of fixed-size header blocks
// read by central.Archive, keyed by their archive-relative offset. It
// exists so that Lookup/Glob and repeated Entries() walks over the same
// *Archive don't force a fresh read of local-header bytes already seen
// earlier in the process. (central.Archive holds the whole central
// directory in memory after Open, so central headers are never cached.)
//
// Grounded on internal/spinner's block cache in the teacher repo
// (tinylfu.New[ckey, []byte](nBlock, nBlock*10, bhasher, tinylfu.OnEvict(...))),
// adapted from a fixed-size-block cache for decompressed file data to a
// small-record cache for ZIP header bytes.
package headercache

import (
	"hash/maphash"

	"github.com/dgryski/go-tinylfu"
)

var seed = maphash.MakeSeed()

// Cache holds up to capacity recently read header blocks for one archive.
type Cache struct {
	t *tinylfu.T[int64, []byte]
}

// New creates a cache holding up to capacity entries. A capacity of 0
// disables caching (every Get misses).
func New(capacity int) *Cache {
	if capacity <= 0 {
		return &Cache{}
	}
	return &Cache{t: tinylfu.New[int64, []byte](capacity, capacity*10, hashOffset)}
}

// Get returns the cached block at offset, if present.
func (c *Cache) Get(offset int64) ([]byte, bool) {
	if c.t == nil {
		return nil, false
	}
	return c.t.Get(offset)
}

// Put stores block under offset. The slice is retained as-is and must not
// be mutated by the caller afterward.
func (c *Cache) Put(offset int64, block []byte) {
	if c.t == nil {
		return
	}
	c.t.Add(offset, block)
}

func hashOffset(off int64) uint64 { return maphash.Comparable(seed, off) }
