// Package comptab builds and queries the composition/permutation tables
// used to turn a fixed-size block of sub-alphabet symbols into a
// (compositionIdx, permIdx) pair and back.
//
// A block of blockSize symbols drawn from a k-symbol sub-alphabet has a
// symbol-count vector ("composition") cnt[0..k-1] with Σcnt[i] = blockSize.
// Every block sharing a composition is one of that composition's
// permutations. comptab enumerates every composition once, in ascending
// bit-string order (so the set doubles as a sorted table: binary search via
// bitpack.Compare finds a block's composition in O(log numCompositions)),
// and enumerates each composition's permutations in lexicographic order, so
// a block's permIdx is likewise found by binary search.
package comptab

import (
	"fmt"

	"github.com/bebop/bwtidx/bitpack"
)

// Error is returned for table construction and lookup failures.
type Error struct {
	message string
}

func (e *Error) Error() string {
	return e.message
}

// Table holds the catenated, bit-packed composition and permutation tables
// for one (blockSize, subAlphabetSize) pair.
type Table struct {
	blockSize       int
	subAlphabetSize int
	bitsPerCount    uint
	bitsPerSymbol   uint
	compIdxBits     uint
	maxPermIdxBits  uint
	compStride      uint64 // bits per catComps entry = bitsPerCount * subAlphabetSize

	catComps []uint64 // numCompositions entries of compStride bits, ascending

	// permOffsets[c] is the bit offset into catPerms where composition c's
	// permutations begin; permCounts[c] and permIdxBits[c] are its
	// permutation count and the field width needed to index it.
	permOffsets []uint64
	permCounts  []uint64
	permIdxBits []uint

	catPerms []uint64
}

// BlockSize returns the fixed number of symbols per block.
func (t *Table) BlockSize() int { return t.blockSize }

// SubAlphabetSize returns k, the number of distinct block-encoded symbols.
func (t *Table) SubAlphabetSize() int { return t.subAlphabetSize }

// BitsPerCount returns the field width of one symbol's count within a
// composition entry, ceil(log2(blockSize+1)).
func (t *Table) BitsPerCount() uint { return t.bitsPerCount }

// CompositionIdxBits returns the field width needed to index catComps.
func (t *Table) CompositionIdxBits() uint { return t.compIdxBits }

// MaxPermIdxBits returns the widest permIdx field width over every
// composition.
func (t *Table) MaxPermIdxBits() uint { return t.maxPermIdxBits }

// NumCompositions returns the number of distinct compositions of blockSize
// over subAlphabetSize parts, C(blockSize+subAlphabetSize-1, subAlphabetSize-1).
func (t *Table) NumCompositions() int { return len(t.permCounts) }

// PermIdxBits returns the field width needed to index composition c's own
// permutation list; 0 when it has exactly one permutation (no field is
// stored - a composition with only one possible arrangement needs no
// permutation index at all).
func (t *Table) PermIdxBits(compIdx int) uint { return t.permIdxBits[compIdx] }

// NumPermutations returns the number of distinct arrangements of composition
// compIdx's multiset, blockSize! / Πcnt[i]!.
func (t *Table) NumPermutations(compIdx int) uint64 { return t.permCounts[compIdx] }

// requiredBits returns ceil(log2(n)) for n >= 1, and 0 for n <= 1 (no field
// is needed to index a single value).
func requiredBits(n uint64) uint {
	if n <= 1 {
		return 0
	}
	w := uint(0)
	for v := n - 1; v > 0; v >>= 1 {
		w++
	}
	return w
}

// New builds the composition and permutation tables for every block of
// blockSize symbols drawn from a subAlphabetSize-symbol alphabet.
//
// NumPermutations is computed with plain uint64 factorials, which are
// exact only for blockSize <= 20; larger blocks overflow uint64. The
// tables enumerate every permutation of every composition, so their size
// grows with the permutation counts.
func New(blockSize, subAlphabetSize int) (*Table, error) {
	if blockSize <= 0 {
		return nil, &Error{"comptab: blockSize must be positive"}
	}
	if subAlphabetSize <= 0 {
		return nil, &Error{"comptab: subAlphabetSize must be positive"}
	}

	fact := factorials(blockSize)

	t := &Table{
		blockSize:       blockSize,
		subAlphabetSize: subAlphabetSize,
		bitsPerCount:    requiredBits(uint64(blockSize) + 1),
		bitsPerSymbol:   requiredBits(uint64(subAlphabetSize)),
	}
	t.compStride = uint64(t.bitsPerCount) * uint64(subAlphabetSize)

	comps := enumerateCompositions(blockSize, subAlphabetSize)
	t.compIdxBits = requiredBits(uint64(len(comps)))

	compW := bitpack.NewWriter()
	permW := bitpack.NewWriter()
	t.permOffsets = make([]uint64, len(comps))
	t.permCounts = make([]uint64, len(comps))
	t.permIdxBits = make([]uint, len(comps))

	symWidth := t.bitsPerSymbol
	for ci, cnt := range comps {
		for _, c := range cnt {
			compW.WriteUint(uint64(c), t.bitsPerCount)
		}

		n := permutationCount(cnt, fact)
		t.permCounts[ci] = n
		t.permIdxBits[ci] = requiredBits(n)
		t.permOffsets[ci] = permW.Len()

		if t.permIdxBits[ci] > t.maxPermIdxBits {
			t.maxPermIdxBits = t.permIdxBits[ci]
		}

		for _, perm := range enumeratePermutations(cnt) {
			for _, sym := range perm {
				permW.WriteUint(uint64(sym), symWidth)
			}
		}
	}

	t.catComps = compW.Words()
	t.catPerms = permW.Words()
	return t, nil
}

func factorials(n int) []uint64 {
	f := make([]uint64, n+1)
	f[0] = 1
	for i := 1; i <= n; i++ {
		f[i] = f[i-1] * uint64(i)
	}
	return f
}

// permutationCount returns blockSize! / Πcnt[i]!, the number of distinct
// arrangements of the multiset cnt describes.
func permutationCount(cnt []int, fact []uint64) uint64 {
	total := 0
	for _, c := range cnt {
		total += c
	}
	num := fact[total]
	for _, c := range cnt {
		num /= fact[c]
	}
	return num
}

// enumerateCompositions lists every weak composition of blockSize into
// subAlphabetSize non-negative parts, in ascending lexicographic order on
// the tuple (cnt[0], ..., cnt[k-1]) - the same order bitpack.Compare induces
// over the bit-packed entries, since cnt[0] occupies the most significant
// bits. The first entry is [0,...,0,blockSize], the last [blockSize,0,...,0].
func enumerateCompositions(blockSize, k int) [][]int {
	var out [][]int
	cur := make([]int, k)
	var rec func(pos, remaining int)
	rec = func(pos, remaining int) {
		if pos == k-1 {
			cur[pos] = remaining
			out = append(out, append([]int(nil), cur...))
			return
		}
		for v := 0; v <= remaining; v++ {
			cur[pos] = v
			rec(pos+1, remaining-v)
		}
	}
	rec(0, blockSize)
	return out
}

// enumeratePermutations lists every distinct arrangement of the multiset
// described by cnt (cnt[s] copies of symbol s) in lexicographic order,
// starting from the sorted-ascending arrangement and repeatedly applying
// the classical next-permutation step.
func enumeratePermutations(cnt []int) [][]byte {
	total := 0
	for _, c := range cnt {
		total += c
	}
	cur := make([]byte, 0, total)
	for s, c := range cnt {
		for i := 0; i < c; i++ {
			cur = append(cur, byte(s))
		}
	}

	out := [][]byte{append([]byte(nil), cur...)}
	for nextPermutation(cur) {
		out = append(out, append([]byte(nil), cur...))
	}
	return out
}

// nextPermutation rearranges a in place into the lexicographically next
// permutation, reporting whether one existed (false when a was already the
// last, strictly-descending permutation).
func nextPermutation(a []byte) bool {
	n := len(a)
	i := n - 2
	for i >= 0 && a[i] >= a[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := n - 1
	for a[j] <= a[i] {
		j--
	}
	a[i], a[j] = a[j], a[i]
	for l, r := i+1, n-1; l < r; l, r = l+1, r-1 {
		a[l], a[r] = a[r], a[l]
	}
	return true
}

// countsOf returns the symbol-count vector of block, a slice of subAlphabet
// symbols (values in [0, subAlphabetSize)) of length exactly blockSize.
func (t *Table) countsOf(block []byte) ([]int, error) {
	if len(block) != t.blockSize {
		return nil, &Error{fmt.Sprintf("comptab: block has %d symbols, want %d", len(block), t.blockSize)}
	}
	cnt := make([]int, t.subAlphabetSize)
	for _, s := range block {
		if int(s) >= t.subAlphabetSize {
			return nil, &Error{fmt.Sprintf("comptab: symbol %d out of range [0,%d)", s, t.subAlphabetSize)}
		}
		cnt[s]++
	}
	return cnt, nil
}

// packComposition bit-packs cnt the same way New lays out one catComps
// entry, for use as a binary-search key starting at bit offset 0.
func (t *Table) packComposition(cnt []int) []uint64 {
	w := bitpack.NewWriter()
	for _, c := range cnt {
		w.WriteUint(uint64(c), t.bitsPerCount)
	}
	return w.Words()
}

// binarySearchEntry finds the index of an entryWidth-bit entry equal to the
// entryWidth-bit string at (key, 0) among n back-to-back entries in data,
// returning -1 if no such entry exists (a precondition violation: every
// composition and, within it, every permutation, is present by
// construction).
func binarySearchEntry(data []uint64, n int, entryWidth uint64, key []uint64) int {
	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		cmp := bitpack.Compare(data, uint64(mid)*entryWidth, entryWidth, key, 0, entryWidth)
		switch {
		case cmp < 0:
			lo = mid + 1
		case cmp > 0:
			hi = mid
		default:
			return mid
		}
	}
	return -1
}

// Encode maps a block of blockSize sub-alphabet symbols to its
// (compositionIdx, permIdx) pair.
func (t *Table) Encode(block []byte) (compIdx int, permIdx uint64, err error) {
	cnt, err := t.countsOf(block)
	if err != nil {
		return 0, 0, err
	}

	key := t.packComposition(cnt)
	compIdx = binarySearchEntry(t.catComps, len(t.permCounts), t.compStride, key)
	if compIdx < 0 {
		return 0, 0, &Error{"comptab: composition not found (internal inconsistency)"}
	}

	if t.permCounts[compIdx] <= 1 {
		return compIdx, 0, nil
	}

	blockW := bitpack.NewWriter()
	for _, sym := range block {
		blockW.WriteUint(uint64(sym), t.bitsPerSymbol)
	}
	blockKey := blockW.Words()

	permStride := uint64(t.bitsPerSymbol) * uint64(t.blockSize)
	lo, hi := 0, int(t.permCounts[compIdx])
	for lo < hi {
		mid := lo + (hi-lo)/2
		off := t.permOffsets[compIdx] + uint64(mid)*permStride
		cmp := bitpack.Compare(t.catPerms, off, permStride, blockKey, 0, permStride)
		switch {
		case cmp < 0:
			lo = mid + 1
		case cmp > 0:
			hi = mid
		default:
			return compIdx, uint64(mid), nil
		}
	}
	return 0, 0, &Error{"comptab: permutation not found (internal inconsistency)"}
}

// Decode reconstructs a block of blockSize sub-alphabet symbols from a
// (compositionIdx, permIdx) pair.
func (t *Table) Decode(compIdx int, permIdx uint64) ([]byte, error) {
	if compIdx < 0 || compIdx >= len(t.permCounts) {
		return nil, &Error{fmt.Sprintf("comptab: compositionIdx %d out of range", compIdx)}
	}
	if permIdx >= t.permCounts[compIdx] {
		return nil, &Error{fmt.Sprintf("comptab: permIdx %d out of range [0,%d)", permIdx, t.permCounts[compIdx])}
	}

	permStride := uint64(t.bitsPerSymbol) * uint64(t.blockSize)
	off := t.permOffsets[compIdx] + permIdx*permStride
	block := make([]byte, t.blockSize)
	for i := 0; i < t.blockSize; i++ {
		block[i] = byte(bitpack.GetUint(t.catPerms, off+uint64(i)*uint64(t.bitsPerSymbol), t.bitsPerSymbol))
	}
	return block, nil
}

// SymbolCountFromComposition returns how many copies of sym (sym <
// subAlphabetSize) composition compIdx's blocks contain.
func (t *Table) SymbolCountFromComposition(compIdx int, sym byte) (int, error) {
	if compIdx < 0 || compIdx >= len(t.permCounts) {
		return 0, &Error{fmt.Sprintf("comptab: compositionIdx %d out of range", compIdx)}
	}
	if int(sym) >= t.subAlphabetSize {
		return 0, &Error{fmt.Sprintf("comptab: symbol %d out of range [0,%d)", sym, t.subAlphabetSize)}
	}
	off := uint64(compIdx)*t.compStride + uint64(sym)*uint64(t.bitsPerCount)
	return int(bitpack.GetUint(t.catComps, off, t.bitsPerCount)), nil
}
