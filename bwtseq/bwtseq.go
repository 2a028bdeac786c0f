// Package bwtseq implements the BWT-sequence layer: it composes an
// eis.EIS with a C-table of cumulative symbol counts to
// realize the standard FM-index backward-search primitives - occ, LF,
// incremental match extension, whole-query match counting, and (given a
// sampled locate table) exact-match position recovery.
package bwtseq

import (
	"io"

	"github.com/bebop/bwtidx/eis"
	"github.com/bebop/bwtidx/mralphabet"
)

// BWTSeq is an EIS paired with the C-table needed for LF-mapping.
type BWTSeq struct {
	idx      *eis.EIS
	alphabet *mralphabet.Alphabet
	count    []uint64 // count[s] = number of symbols < s across the whole sequence; count[|A|] == L
}

// New builds a BWTSeq from a raw BWT byte stream, the construction path
// to use when no on-disk index exists yet.
func New(r io.Reader, length uint64, alphabet *mralphabet.Alphabet, blockSize, blocksPerSuperBucket int) (*BWTSeq, error) {
	idx, err := eis.Build(r, length, alphabet, blockSize, blocksPerSuperBucket)
	if err != nil {
		return nil, configErr(err.Error())
	}
	return newFromIndex(idx, alphabet)
}

// Load reconstructs a BWTSeq from a previously Saved index, the
// fast path preferred over rebuilding from the raw BWT stream.
func Load(r io.Reader, alphabet *mralphabet.Alphabet, length uint64) (*BWTSeq, error) {
	idx, err := eis.Load(r, alphabet, length)
	if err != nil {
		return nil, corruptErr(err.Error())
	}
	return newFromIndex(idx, alphabet)
}

// Save writes the underlying index; the C-table is never persisted, since
// it is cheap to re-derive from the index alone on Load.
func (b *BWTSeq) Save(w io.Writer) error {
	if err := b.idx.Save(w); err != nil {
		return ioErr(err.Error())
	}
	return nil
}

func newFromIndex(idx *eis.EIS, alphabet *mralphabet.Alphabet) (*BWTSeq, error) {
	if alphabet.Size() == 0 {
		return nil, corruptErr("bwtseq: alphabet size is zero")
	}
	count, err := buildCountTable(idx, alphabet)
	if err != nil {
		return nil, err
	}
	return &BWTSeq{idx: idx, alphabet: alphabet, count: count}, nil
}

// buildCountTable fills count[0..|A|] by induction: count[0] = 0,
// count[s+1] = count[s] + rank(s, L-1). The loop's postcondition,
// count[|A|] == L, follows from the universal invariant that ranks
// across the whole alphabet at the last position sum to L.
func buildCountTable(idx *eis.EIS, alphabet *mralphabet.Alphabet) ([]uint64, error) {
	n := alphabet.Size()
	count := make([]uint64, n+1)
	if idx.Length() == 0 {
		return count, nil
	}

	hint := eis.NewHint()
	for s := 0; s < n; s++ {
		sym, ok := alphabet.RevMapSymbol(mralphabet.Symbol(s))
		if !ok {
			return nil, corruptErr("bwtseq: alphabet code has no reverse mapping while building the count table")
		}
		r, err := idx.Rank(sym, idx.Length()-1, hint)
		if err != nil {
			return nil, ioErr(err.Error())
		}
		count[s+1] = count[s] + r
	}
	return count, nil
}

// Alphabet returns the full domain alphabet shared with the underlying index.
func (b *BWTSeq) Alphabet() *mralphabet.Alphabet { return b.alphabet }

// Length returns L, the number of symbols in the indexed sequence.
func (b *BWTSeq) Length() uint64 { return b.idx.Length() }

// Occ returns the number of occurrences of sym in positions [0, pos]. A
// symbol outside the alphabet is not an error: it returns 0, matching the
// NOT_FOUND-is-not-an-error rule IncrMatch follows.
func (b *BWTSeq) Occ(sym byte, pos uint64, hint *eis.Hint) (uint64, error) {
	if _, ok := b.alphabet.MapSymbol(sym); !ok {
		return 0, nil
	}
	r, err := b.idx.Rank(sym, pos, hint)
	if err != nil {
		return 0, notFoundErr(err.Error())
	}
	return r, nil
}

// Select returns the position of the rank-th occurrence of sym. A symbol
// outside the alphabet is not an error: it returns 0, matching the
// NOT_FOUND-is-not-an-error rule IncrMatch follows.
func (b *BWTSeq) Select(sym byte, rank uint64, hint *eis.Hint) (uint64, error) {
	if _, ok := b.alphabet.MapSymbol(sym); !ok {
		return 0, nil
	}
	pos, err := b.idx.Select(sym, rank, hint)
	if err != nil {
		return 0, notFoundErr(err.Error())
	}
	return pos, nil
}

// Get returns the symbol at pos, folding in any RegionsList overlay.
func (b *BWTSeq) Get(pos uint64, hint *eis.Hint) (byte, error) {
	return b.symAt(pos, hint)
}

func (b *BWTSeq) symAt(pos uint64, hint *eis.Hint) (byte, error) {
	sym, err := b.idx.Get(pos, true, hint)
	if err != nil {
		return 0, ioErr(err.Error())
	}
	return sym, nil
}

// LF is the standard FM-index LF-mapping: the row whose suffix is one
// character longer, extended by the character at pos.
func (b *BWTSeq) LF(pos uint64, hint *eis.Hint) (uint64, error) {
	sym, err := b.symAt(pos, hint)
	if err != nil {
		return 0, err
	}
	code, ok := b.alphabet.MapSymbol(sym)
	if !ok {
		return 0, notFoundErr("bwtseq: symbol at pos not in alphabet")
	}
	r, err := b.occBefore(sym, pos, hint)
	if err != nil {
		return 0, err
	}
	return b.count[code] + r, nil
}

// MatchBounds is a half-open count interval [Lower, Upper) over BWT rows;
// Upper > Lower for a non-empty match, and Upper-Lower is the match count.
type MatchBounds struct {
	Lower, Upper uint64
}

// Empty reports whether the interval has collapsed to no match.
func (m MatchBounds) Empty() bool { return m.Upper <= m.Lower }

// Count returns the number of matching rows, 0 if Empty.
func (m MatchBounds) Count() uint64 {
	if m.Empty() {
		return 0
	}
	return m.Upper - m.Lower
}

// occBefore returns rank(sym, boundary-1), the count of sym strictly
// before a count-space boundary, with the boundary-at-zero base case
// (no positions precede row 0) handled without calling Rank at pos -1.
func (b *BWTSeq) occBefore(sym byte, boundary uint64, hint *eis.Hint) (uint64, error) {
	if boundary == 0 {
		return 0, nil
	}
	r, err := b.idx.Rank(sym, boundary-1, hint)
	if err != nil {
		return 0, ioErr(err.Error())
	}
	return r, nil
}

// IncrMatch extends a backward-search match interval by one character to
// its left: given the current bounds and the next symbol walking right
// to left through a query, it returns the bounds after requiring that
// symbol to precede every matched suffix. A symbol outside the alphabet
// collapses the interval to empty rather than returning an error - a
// match that narrows to nothing is not itself a failure.
func (b *BWTSeq) IncrMatch(bounds MatchBounds, nextSym byte, hint *eis.Hint) (MatchBounds, error) {
	code, ok := b.alphabet.MapSymbol(nextSym)
	if !ok {
		return MatchBounds{}, nil
	}
	lower, err := b.occBefore(nextSym, bounds.Lower, hint)
	if err != nil {
		return MatchBounds{}, err
	}
	upper, err := b.occBefore(nextSym, bounds.Upper, hint)
	if err != nil {
		return MatchBounds{}, err
	}
	return MatchBounds{Lower: b.count[code] + lower, Upper: b.count[code] + upper}, nil
}

// MatchCount runs a full right-to-left backward search for query and
// returns how many positions in the original sequence it starts at.
func (b *BWTSeq) MatchCount(query []byte, hint *eis.Hint) (uint64, error) {
	bounds, err := b.search(query, hint)
	if err != nil {
		return 0, err
	}
	return bounds.Count(), nil
}

func (b *BWTSeq) search(query []byte, hint *eis.Hint) (MatchBounds, error) {
	if len(query) == 0 {
		return MatchBounds{}, configErr("bwtseq: query must not be empty")
	}
	bounds := MatchBounds{Lower: 0, Upper: b.Length()}
	for i := len(query) - 1; i >= 0; i-- {
		var err error
		bounds, err = b.IncrMatch(bounds, query[i], hint)
		if err != nil {
			return MatchBounds{}, err
		}
		if bounds.Empty() {
			return MatchBounds{}, nil
		}
	}
	return bounds, nil
}

// ExactMatchIterator runs a full backward search for query and resolves
// every matching BWT row to its original-text position by repeatedly
// applying LF until a position sampled in locate is reached, then adding
// the walked distance.
func (b *BWTSeq) ExactMatchIterator(query []byte, locate *eis.LocateTable) ([]uint64, error) {
	if locate == nil {
		return nil, configErr("bwtseq: exact match iteration requires a locate table")
	}
	hint := eis.NewHint()
	bounds, err := b.search(query, hint)
	if err != nil {
		return nil, err
	}
	if bounds.Empty() {
		return nil, nil
	}

	positions := make([]uint64, 0, bounds.Count())
	for row := bounds.Lower; row < bounds.Upper; row++ {
		pos, err := b.locatePosition(row, locate, hint)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (b *BWTSeq) locatePosition(bwtPos uint64, locate *eis.LocateTable, hint *eis.Hint) (uint64, error) {
	cur := bwtPos
	for walked := uint64(0); walked <= b.Length(); walked++ {
		if origPos, ok := locate.Lookup(cur); ok {
			return (origPos + walked) % b.Length(), nil
		}
		next, err := b.LF(cur, hint)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return 0, corruptErr("bwtseq: locate walk exceeded the sequence length without finding a sampled position")
}
