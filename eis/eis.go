// Package eis implements the block-compressed encoded index sequence:
// given the byte stream of a BWT and a multi-range alphabet, it builds a
// table that answers get(pos) and rank(sym, pos) in time bounded by the
// configured super-bucket size rather than the whole sequence length.
//
// Construction partitions the alphabet's BlockCompositionInclude range
// into a compact sub-alphabet (comptab's domain), folds every
// RegionsList-range position into a seqrange.List instead, and packs each
// fixed-size block of sub-alphabet symbols into a (compositionIdx, permIdx)
// pair via comptab. compositionIdx has a uniform width and is addressed
// directly; permIdx's width varies per composition, so finding a block's
// var-stream offset means walking forward from the nearest super-bucket
// boundary - the reason super-buckets exist at all. A Cache (cache.go)
// memoizes that walk per super-bucket so repeated queries in the same
// region of the sequence amortize to O(1).
package eis

import (
	"fmt"
	"io"

	"github.com/bebop/bwtidx/bitpack"
	"github.com/bebop/bwtidx/comptab"
	"github.com/bebop/bwtidx/mralphabet"
	"github.com/bebop/bwtidx/seqrange"
)

// Error is returned for construction, load, and query failures.
type Error struct {
	message string
}

func (e *Error) Error() string {
	return e.message
}

// DefaultBlocksPerSuperBucket is the standard default: a super-bucket
// spans as many blocks as there are symbols per block.
func DefaultBlocksPerSuperBucket(blockSize int) int {
	return blockSize
}

// EIS is a block-compressed encoded index sequence over one BWT byte
// stream.
type EIS struct {
	alphabet *mralphabet.Alphabet // full domain alphabet
	sub      *mralphabet.Alphabet // block-encoded sub-alphabet (secondary mapping)
	fallback mralphabet.Symbol    // sub-alphabet code specials collapse to
	comp     *comptab.Table
	ranges   *seqrange.List

	length               uint64
	blockSize            int
	blocksPerSuperBucket int
	compIdxBits          uint

	cw      []uint64 // blockCount entries of compIdxBits bits each, concatenated
	vr      []uint64 // var payload, concatenated across the whole sequence
	varBits uint64   // number of meaningful bits in vr

	numSuperBuckets int
	prevBucket      [][]uint64 // [superBucket][subAlphabet symbol] cumulative count before the bucket
	varBitOffset    []uint64   // [superBucket] bit offset into vr where its var payload starts

	digest [32]byte // BLAKE3-256 over the cw/var/range payload; zero if never Saved or Loaded
}

// Length returns L, the number of symbols in the indexed sequence.
func (e *EIS) Length() uint64 { return e.length }

// Alphabet returns the full domain alphabet this index was built over.
func (e *EIS) Alphabet() *mralphabet.Alphabet { return e.alphabet }

// BlockSize returns the fixed block size B.
func (e *EIS) BlockSize() int { return e.blockSize }

// BlocksPerSuperBucket returns the number of blocks grouped per super-bucket.
func (e *EIS) BlocksPerSuperBucket() int { return e.blocksPerSuperBucket }

func fallbackByteOf(alpha *mralphabet.Alphabet) (byte, error) {
	for r := 0; r < alpha.NumRanges(); r++ {
		if alpha.RangeMode(r) == mralphabet.BlockCompositionInclude {
			start, size := alpha.RangeBounds(r)
			if size == 0 {
				continue
			}
			b, ok := alpha.RevMapSymbol(mralphabet.Symbol(start))
			if !ok {
				return 0, &Error{"eis: alphabet range inconsistency locating fallback symbol"}
			}
			return b, nil
		}
	}
	return 0, &Error{"eis: alphabet has no BlockCompositionInclude range"}
}

// Build constructs an EIS in one pass over r, which must yield exactly
// length raw domain bytes. blockSize and blocksPerSuperBucket configure the
// block-composition encoding; construction runs block by block, folding
// REGIONS_LIST positions into the sequence-range list and padding any
// trailing short block with the fallback symbol.
func Build(r io.Reader, length uint64, alpha *mralphabet.Alphabet, blockSize, blocksPerSuperBucket int) (*EIS, error) {
	if blockSize <= 0 {
		return nil, &Error{"eis: blockSize must be positive"}
	}
	if blocksPerSuperBucket <= 0 {
		return nil, &Error{"eis: blocksPerSuperBucket must be positive"}
	}

	fallbackByte, err := fallbackByteOf(alpha)
	if err != nil {
		return nil, err
	}
	sub, err := alpha.SecondaryMapping(mralphabet.BlockCompositionInclude, fallbackByte)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: deriving sub-alphabet: %v", err)}
	}
	if sub.Size() == 0 {
		return nil, &Error{"eis: sub-alphabet size is zero"}
	}
	fallback, _ := sub.MapSymbol(fallbackByte)

	comp, err := comptab.New(blockSize, sub.Size())
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: building composition tables: %v", err)}
	}

	numBlocks := int((length + uint64(blockSize) - 1) / uint64(blockSize))
	if numBlocks == 0 {
		numBlocks = 1 // a degenerate, all-padding single block keeps the format well-formed for L == 0
	}
	numSuperBuckets := (numBlocks + blocksPerSuperBucket - 1) / blocksPerSuperBucket
	// Every super-bucket must hold exactly blocksPerSuperBucket blocks so a
	// Cache walk can always read blocksPerSuperBucket entries unconditionally;
	// round the trailing bucket out with extra all-padding blocks (their
	// positions are >= length and are never addressed by Get/Rank).
	numBlocks = numSuperBuckets * blocksPerSuperBucket

	e := &EIS{
		alphabet:             alpha,
		sub:                  sub,
		fallback:             fallback,
		comp:                 comp,
		ranges:               seqrange.New(),
		length:               length,
		blockSize:            blockSize,
		blocksPerSuperBucket: blocksPerSuperBucket,
		compIdxBits:          comp.CompositionIdxBits(),
		numSuperBuckets:      numSuperBuckets,
	}

	cwW := bitpack.NewWriter()
	varW := bitpack.NewWriter()
	e.prevBucket = make([][]uint64, numSuperBuckets)
	e.varBitOffset = make([]uint64, numSuperBuckets)

	runningCounts := make([]uint64, sub.Size())
	rawBuf := make([]mralphabet.Symbol, blockSize)
	subBlock := make([]byte, blockSize)

	var pos uint64
	for blk := 0; blk < numBlocks; blk++ {
		if blk%blocksPerSuperBucket == 0 {
			sbIdx := blk / blocksPerSuperBucket
			e.prevBucket[sbIdx] = append([]uint64(nil), runningCounts...)
			e.varBitOffset[sbIdx] = varW.Len()
		}

		want := blockSize
		if pos >= length {
			want = 0
		} else if remaining := length - pos; remaining < uint64(blockSize) {
			want = int(remaining)
		}

		n := 0
		if want > 0 {
			read, rerr := alpha.ReadAndTransform(r, want, rawBuf[:want])
			n = read
			if rerr != nil && rerr != io.EOF {
				return nil, &Error{fmt.Sprintf("eis: reading block at position %d: %v", pos, rerr)}
			}
		}

		for i := 0; i < blockSize; i++ {
			bytePos := pos + uint64(i)
			if i < n {
				fullSym := rawBuf[i]
				ri := rangeIndexOf(alpha, fullSym)
				if ri >= 0 && alpha.RangeMode(ri) == mralphabet.RegionsList {
					e.ranges.AddPosition(bytePos, fullSym)
					subBlock[i] = fallback
				} else {
					domainByte, ok := alpha.RevMapSymbol(fullSym)
					if !ok {
						return nil, &Error{fmt.Sprintf("eis: internal code %d at position %d has no reverse mapping", fullSym, bytePos)}
					}
					code, ok := sub.MapSymbol(domainByte)
					if !ok {
						return nil, &Error{fmt.Sprintf("eis: symbol %q at position %d not in sub-alphabet", domainByte, bytePos)}
					}
					subBlock[i] = code
				}
			} else {
				// Zero-padding past the true sequence length: the pad
				// position is recorded in the range list and encoded as
				// the fallback code. Get and Rank reject positions at or
				// past the length, so pads are never read back.
				e.ranges.AddPosition(bytePos, fallbackByte)
				subBlock[i] = fallback
			}
			runningCounts[subBlock[i]]++
		}

		compIdx, permIdx, err := comp.Encode(subBlock)
		if err != nil {
			return nil, &Error{fmt.Sprintf("eis: encoding block at position %d: %v", pos, err)}
		}
		cwW.WriteUint(uint64(compIdx), e.compIdxBits)
		varW.WriteUint(permIdx, comp.PermIdxBits(compIdx))

		pos += uint64(blockSize)
	}

	e.cw = cwW.Words()
	e.vr = varW.Words()
	e.varBits = varW.Len()

	return e, nil
}

func rangeIndexOf(alpha *mralphabet.Alphabet, sym mralphabet.Symbol) int {
	for r := 0; r < alpha.NumRanges(); r++ {
		start, size := alpha.RangeBounds(r)
		if int(sym) >= start && int(sym) < start+size {
			return r
		}
	}
	return -1
}

// blockLocation is one block's decoded address within the var stream.
type blockLocation struct {
	compIdx   int
	varOffset uint64
}

// locateBlock finds block blk's composition index and the bit offset of
// its permIdx field in the var stream, walking forward from the nearest
// super-bucket boundary through a Cache so repeated lookups in the same
// super-bucket do not repeat the walk.
func (e *EIS) locateBlock(blk int, hint *Hint) blockLocation {
	bucket := blk / e.blocksPerSuperBucket
	rel := blk % e.blocksPerSuperBucket
	sb := hint.cache.fetch(e, bucket)
	return blockLocation{compIdx: sb.compIdx[rel], varOffset: sb.varOffset[rel]}
}

// decodeBlock returns the blockSize sub-alphabet symbols at block blk.
func (e *EIS) decodeBlock(blk int, hint *Hint) ([]byte, error) {
	loc := e.locateBlock(blk, hint)
	permIdx := uint64(0)
	if w := e.comp.PermIdxBits(loc.compIdx); w > 0 {
		permIdx = bitpack.GetUint(e.vr, loc.varOffset, w)
	}
	return e.comp.Decode(loc.compIdx, permIdx)
}

// getSubCode returns the sub-alphabet code at pos, without resolving
// REGIONS_LIST overrides.
func (e *EIS) getSubCode(pos uint64, hint *Hint) (byte, error) {
	if pos >= e.length {
		return 0, &Error{fmt.Sprintf("eis: position %d out of range [0,%d)", pos, e.length)}
	}
	blk := int(pos / uint64(e.blockSize))
	block, err := e.decodeBlock(blk, hint)
	if err != nil {
		return 0, err
	}
	return block[pos%uint64(e.blockSize)], nil
}

// Get returns the original domain byte at pos. When queryRangeEnc is true,
// a position covered by a sequence-range list entry is resolved to that
// entry's recorded symbol instead of the block-encoded fallback.
func (e *EIS) Get(pos uint64, queryRangeEnc bool, hint *Hint) (byte, error) {
	code, err := e.getSubCode(pos, hint)
	if err != nil {
		return 0, err
	}
	domainByte, ok := e.sub.RevMapSymbol(code)
	if !ok {
		return 0, &Error{fmt.Sprintf("eis: sub-alphabet code %d has no reverse mapping", code)}
	}

	if queryRangeEnc {
		if idx, ok := e.ranges.FindPositionNext(pos, &hint.srl); ok {
			if r := e.ranges.At(idx); r.Contains(pos) {
				if b, ok := e.alphabet.RevMapSymbol(r.Sym); ok {
					domainByte = b
				}
			}
		}
	}
	return domainByte, nil
}

// Rank returns the number of occurrences of domain byte sym in positions
// [0, pos] of the indexed sequence.
func (e *EIS) Rank(sym byte, pos uint64, hint *Hint) (uint64, error) {
	if pos >= e.length {
		return 0, &Error{fmt.Sprintf("eis: position %d out of range [0,%d)", pos, e.length)}
	}

	code, inAlphabet := e.alphabet.MapSymbol(sym)
	if !inAlphabet {
		return 0, &Error{fmt.Sprintf("eis: symbol %q not in alphabet", sym)}
	}
	ri := rangeIndexOf(e.alphabet, code)

	if ri < 0 || e.alphabet.RangeMode(ri) != mralphabet.RegionsList {
		subCode, ok := e.sub.MapSymbol(sym)
		if !ok {
			return 0, &Error{fmt.Sprintf("eis: symbol %q not in block-encoded sub-alphabet", sym)}
		}
		total, err := e.rankSubCode(subCode, pos, hint)
		if err != nil {
			return 0, err
		}
		if subCode == e.fallback {
			specials := e.ranges.AllSymbolsCountInSeqRegion(0, pos+1, &hint.srl)
			if specials > total {
				specials = total
			}
			total -= specials
		}
		return total, nil
	}

	return e.ranges.SymbolCountInSeqRegion(0, pos+1, code, &hint.srl), nil
}

// rankSubCode counts occurrences of a sub-alphabet code up to and
// including pos: complete blocks via comp.SymbolCountFromComposition, the
// final partial block by unpacking and scanning.
func (e *EIS) rankSubCode(subCode byte, pos uint64, hint *Hint) (uint64, error) {
	targetBlk := int(pos / uint64(e.blockSize))
	bucket := targetBlk / e.blocksPerSuperBucket
	rel := targetBlk % e.blocksPerSuperBucket

	sb := hint.cache.fetch(e, bucket)
	total := sb.prevCount(int(subCode))
	for i := 0; i < rel; i++ {
		n, err := e.comp.SymbolCountFromComposition(sb.compIdx[i], subCode)
		if err != nil {
			return 0, err
		}
		total += uint64(n)
	}

	block, err := e.decodeBlock(targetBlk, hint)
	if err != nil {
		return 0, err
	}
	within := int(pos%uint64(e.blockSize)) + 1
	for i := 0; i < within; i++ {
		if block[i] == subCode {
			total++
		}
	}
	return total, nil
}
