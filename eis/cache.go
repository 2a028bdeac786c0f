package eis

import (
	"github.com/bebop/bwtidx/bitpack"
	"github.com/bebop/bwtidx/seqrange"
)

// decodedSuperBucket is the fully-walked form of one super-bucket: every
// block's composition index and the bit offset of its permIdx field in the
// var stream, computed once per cache miss instead of per query.
type decodedSuperBucket struct {
	bucket    int
	compIdx   []int
	varOffset []uint64
	prev      []uint64 // snapshot of e.prevBucket[bucket], kept alongside for rankSubCode
}

func (s *decodedSuperBucket) prevCount(sym int) uint64 {
	return s.prev[sym]
}

// decodeSuperBucket walks every block of super-bucket bucket once, reading
// compIdxBits from cw and accumulating each block's permIdxBits width into
// a running var offset - the query algorithm run for the whole bucket
// instead of stopping at one target block.
func (e *EIS) decodeSuperBucket(bucket int) *decodedSuperBucket {
	sb := &decodedSuperBucket{
		bucket:    bucket,
		compIdx:   make([]int, e.blocksPerSuperBucket),
		varOffset: make([]uint64, e.blocksPerSuperBucket),
		prev:      e.prevBucket[bucket],
	}

	running := e.varBitOffset[bucket]
	base := bucket * e.blocksPerSuperBucket
	for i := 0; i < e.blocksPerSuperBucket; i++ {
		ci := int(getCompIdx(e, base+i))
		sb.compIdx[i] = ci
		sb.varOffset[i] = running
		running += uint64(e.comp.PermIdxBits(ci))
	}
	return sb
}

func getCompIdx(e *EIS, blk int) uint64 {
	return bitpack.GetUint(e.cw, uint64(blk)*e.compIdxBits, e.compIdxBits)
}

// Cache is a direct-mapped cache of decoded super-buckets, keyed on
// bucket mod len(slots). A cache instance belongs to one Hint and must
// not be shared across concurrently-running queries.
type Cache struct {
	slots []*decodedSuperBucket
}

// DefaultCacheSize is the default slot count.
const DefaultCacheSize = 32

// NewCache returns an empty direct-mapped cache with n slots.
func NewCache(n int) *Cache {
	if n <= 0 {
		n = DefaultCacheSize
	}
	return &Cache{slots: make([]*decodedSuperBucket, n)}
}

func (c *Cache) fetch(e *EIS, bucket int) *decodedSuperBucket {
	slot := bucket % len(c.slots)
	if s := c.slots[slot]; s != nil && s.bucket == bucket {
		return s
	}
	s := e.decodeSuperBucket(bucket)
	c.slots[slot] = s
	return s
}

// Hint is a caller-owned bundle of position memories: the sequence-range
// list's search hint and a super-block Cache. Queries against the same EIS
// sharing a Hint amortize to O(1) under sequential access; concurrent
// queries must each use their own Hint.
type Hint struct {
	srl   seqrange.Hint
	cache *Cache
}

// NewHint returns a Hint with a default-sized cache.
func NewHint() *Hint {
	return &Hint{cache: NewCache(DefaultCacheSize)}
}

// NewHintWithCacheSize returns a Hint whose super-block cache has n slots.
func NewHintWithCacheSize(n int) *Hint {
	return &Hint{cache: NewCache(n)}
}
