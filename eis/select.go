package eis

import (
	"fmt"
	"sort"

	"github.com/bebop/bwtidx/mralphabet"
)

// Select returns the position of the rank-th occurrence (1-indexed) of
// domain byte sym, the inverse of Rank. Its behavior is an addition, not
// a reimplementation of any select contract original_source enforces.
func (e *EIS) Select(sym byte, rank uint64, hint *Hint) (uint64, error) {
	if rank == 0 {
		return 0, &Error{"eis: rank must be >= 1"}
	}

	code, inAlphabet := e.alphabet.MapSymbol(sym)
	if !inAlphabet {
		return 0, &Error{fmt.Sprintf("eis: symbol %q not in alphabet", sym)}
	}
	ri := rangeIndexOf(e.alphabet, code)
	if ri >= 0 && e.alphabet.RangeMode(ri) == mralphabet.RegionsList {
		return e.selectInRanges(code, rank)
	}

	subCode, ok := e.sub.MapSymbol(sym)
	if !ok {
		return 0, &Error{fmt.Sprintf("eis: symbol %q not in block-encoded sub-alphabet", sym)}
	}
	return e.selectSubCode(subCode, sym, rank, hint)
}

// selectSubCode binary searches the super-bucket prevBucket snapshots for
// the bucket where the raw (pre-REGIONS_LIST-correction) subCode count
// first reaches rank, then linearly unpacks blocks from that bucket's
// start, skipping any position whose REGIONS_LIST overlay means its true
// symbol differs from sym (this only matters when subCode is the
// fallback code). The walk starts one bucket before the one the binary
// search lands on and runs forward. Raw counts only ever overcount true
// occurrences of the fallback symbol, never undercount them, so the
// owning bucket is never before the bucket the walk starts from.
func (e *EIS) selectSubCode(subCode byte, sym byte, rank uint64, hint *Hint) (uint64, error) {
	bucket := sort.Search(e.numSuperBuckets, func(b int) bool {
		return e.prevBucket[b][subCode] >= rank
	})
	if bucket > 0 {
		bucket--
	}

	lastBlk := e.numSuperBuckets * e.blocksPerSuperBucket
	var found uint64
	for blk := bucket * e.blocksPerSuperBucket; blk < lastBlk; blk++ {
		block, err := e.decodeBlock(blk, hint)
		if err != nil {
			return 0, err
		}
		base := uint64(blk) * uint64(e.blockSize)
		for i, c := range block {
			pos := base + uint64(i)
			if pos >= e.length {
				return 0, &Error{fmt.Sprintf("eis: symbol %q has fewer than %d occurrences", sym, rank)}
			}
			if c != subCode {
				continue
			}
			got, err := e.Get(pos, true, hint)
			if err != nil {
				return 0, err
			}
			if got != sym {
				continue
			}
			found++
			if found == rank {
				return pos, nil
			}
		}
	}
	return 0, &Error{fmt.Sprintf("eis: symbol %q has fewer than %d occurrences", sym, rank)}
}

// selectInRanges answers Select for a REGIONS_LIST symbol by walking the
// sequence-range list in order, which is already sorted by position.
func (e *EIS) selectInRanges(code mralphabet.Symbol, rank uint64) (uint64, error) {
	var seen uint64
	for i := 0; i < e.ranges.Len(); i++ {
		r := e.ranges.At(i)
		if r.Sym != byte(code) {
			continue
		}
		if seen+uint64(r.Len) >= rank {
			return r.StartPos + (rank - seen - 1), nil
		}
		seen += uint64(r.Len)
	}
	return 0, &Error{fmt.Sprintf("eis: symbol has fewer than %d occurrences", rank)}
}
