// Package seqrange implements the sequence-range list (SRL): a sparse,
// run-length store of "special" symbol positions that fall outside a
// block-compressed index's block-encoded sub-alphabet.
//
// A List is a sorted-by-startPos array of runs. Construction appends runs
// in non-decreasing position order (the hot path, amortized O(1) per
// position via coalescing with the trailing run); AddPosition falls back to
// a binary-search insert for the rare out-of-order position. Once built, a
// List answers overlap and symbol-count queries in O(log n) cold, O(1)
// warm via a caller-owned Hint.
package seqrange

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// checksumSize is the width, in bytes, of the BLAKE2b-128 checksum
// SaveToStream prefixes the record bytes with.
const checksumSize = 16

func checksumOf(recordBytes []byte) []byte {
	h, _ := blake2b.New(checksumSize, nil)
	h.Write(recordBytes)
	return h.Sum(nil)
}

// MaxRangeLen is the largest run length a single Range can hold; longer
// runs are split across consecutive records.
const MaxRangeLen = 1<<16 - 1

// Error is returned for SRL construction, lookup, and (de)serialization
// failures.
type Error struct {
	message string
}

func (e *Error) Error() string {
	return e.message
}

// Range is one run of identical-symbol positions [StartPos, StartPos+Len).
type Range struct {
	StartPos uint64
	Len      uint16
	Sym      byte
}

// End returns the position just past the run.
func (r Range) End() uint64 {
	return r.StartPos + uint64(r.Len)
}

// Contains reports whether pos falls inside the run.
func (r Range) Contains(pos uint64) bool {
	return pos >= r.StartPos && pos < r.End()
}

// List is a sorted sequence of non-overlapping Ranges.
type List struct {
	ranges []Range
}

// New returns an empty List.
func New() *List {
	return &List{}
}

// Len returns the number of runs (not the number of positions they cover).
func (l *List) Len() int {
	return len(l.ranges)
}

// At returns the run at index i.
func (l *List) At(i int) Range {
	return l.ranges[i]
}

// AppendNewRange appends a run of length positions starting at pos, all
// carrying sym, splitting it into MaxRangeLen-sized records as needed. The
// caller is responsible for pos being at or after the end of the list's
// last run; this is the bulk-construction fast path and does no ordering
// check.
func (l *List) AppendNewRange(pos uint64, length uint64, sym byte) {
	for length > 0 {
		chunk := length
		if chunk > MaxRangeLen {
			chunk = MaxRangeLen
		}
		l.ranges = append(l.ranges, Range{StartPos: pos, Len: uint16(chunk), Sym: sym})
		pos += chunk
		length -= chunk
	}
}

// AddPosition records a single position as carrying sym. When it directly
// continues the trailing run (same symbol, contiguous, under the length
// cap) it coalesces into that run in O(1); a position at or after the
// trailing run's start but not contiguous with it starts a fresh run;
// anything before the trailing run's start (an out-of-order position) falls
// back to insertNewRange.
func (l *List) AddPosition(pos uint64, sym byte) {
	if n := len(l.ranges); n > 0 {
		last := &l.ranges[n-1]
		if pos < last.StartPos {
			l.insertNewRange(pos, sym)
			return
		}
		if pos == last.End() && last.Sym == sym && last.Len < MaxRangeLen {
			last.Len++
			return
		}
	}
	l.ranges = append(l.ranges, Range{StartPos: pos, Len: 1, Sym: sym})
}

// insertNewRange inserts a single-position run at its sorted location,
// the fallback path for a position that arrived out of order.
func (l *List) insertNewRange(pos uint64, sym byte) {
	i := sort.Search(len(l.ranges), func(i int) bool {
		return l.ranges[i].StartPos >= pos
	})
	l.ranges = append(l.ranges, Range{})
	copy(l.ranges[i+1:], l.ranges[i:])
	l.ranges[i] = Range{StartPos: pos, Len: 1, Sym: sym}
}

// Hint remembers the last index a lookup resolved to, so a caller scanning
// a sequence of non-decreasing positions against the same List amortizes
// to O(1) per lookup instead of O(log n).
type Hint struct {
	idx int
}

// FindPositionNext returns the index of the first run with StartPos >= pos
// or that overlaps pos, and updates hint to that index. It reports false
// if pos is past every run (the caller should treat that as "no more
// specials ahead").
func (l *List) FindPositionNext(pos uint64, hint *Hint) (int, bool) {
	n := len(l.ranges)
	if n == 0 {
		return 0, false
	}

	// Hint fast path: the caller's previous answer, or one of the next two
	// entries, very often already satisfies a monotonically advancing scan.
	for _, i := range [...]int{hint.idx, hint.idx + 1, hint.idx + 2} {
		if i >= 0 && i < n && (l.ranges[i].Contains(pos) || l.ranges[i].StartPos >= pos) {
			if i == 0 || l.ranges[i-1].End() <= pos {
				hint.idx = i
				return i, true
			}
		}
	}

	i := sort.Search(n, func(i int) bool {
		return l.ranges[i].End() > pos
	})
	if i >= n {
		hint.idx = n - 1
		return 0, false
	}
	hint.idx = i
	return i, true
}

// SymbolCountInSeqRegion returns how many positions in [start, end) carry
// sym, across every overlapping run.
func (l *List) SymbolCountInSeqRegion(start, end uint64, sym byte, hint *Hint) uint64 {
	return l.countInSeqRegion(start, end, true, sym, hint)
}

// AllSymbolsCountInSeqRegion returns how many positions in [start, end) are
// covered by any run, regardless of symbol.
func (l *List) AllSymbolsCountInSeqRegion(start, end uint64, hint *Hint) uint64 {
	return l.countInSeqRegion(start, end, false, 0, hint)
}

func (l *List) countInSeqRegion(start, end uint64, filterSym bool, sym byte, hint *Hint) uint64 {
	if start >= end {
		return 0
	}
	i, ok := l.FindPositionNext(start, hint)
	if !ok {
		return 0
	}

	var total uint64
	for ; i < len(l.ranges); i++ {
		r := l.ranges[i]
		if r.StartPos >= end {
			break
		}
		if filterSym && r.Sym != sym {
			continue
		}
		lo, hi := r.StartPos, r.End()
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		if hi > lo {
			total += hi - lo
		}
	}
	return total
}

// SaveToStream writes the run count, a BLAKE2b-128 checksum of the record
// bytes, then every run's fields, in this module's single fixed byte order
// (little-endian - there is no portable "native endian" in Go without
// unsafe, so this stands in for it; reading a stream written on a
// different machine is not a supported use case). The checksum is an
// independent, cheap corruption check distinct from any whole-file digest
// a caller layers on top.
func (l *List) SaveToStream(w io.Writer) error {
	var recBuf bytes.Buffer
	for _, r := range l.ranges {
		binary.Write(&recBuf, binary.LittleEndian, r.StartPos)
		binary.Write(&recBuf, binary.LittleEndian, r.Len)
		binary.Write(&recBuf, binary.LittleEndian, r.Sym)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(l.ranges))); err != nil {
		return &Error{fmt.Sprintf("seqrange: writing range count: %v", err)}
	}
	if _, err := w.Write(checksumOf(recBuf.Bytes())); err != nil {
		return &Error{fmt.Sprintf("seqrange: writing checksum: %v", err)}
	}
	if _, err := w.Write(recBuf.Bytes()); err != nil {
		return &Error{fmt.Sprintf("seqrange: writing ranges: %v", err)}
	}
	return nil
}

// ReadFromStream is the inverse of SaveToStream. It rejects a stream whose
// checksum does not match its record bytes before trusting any record.
func ReadFromStream(r io.Reader) (*List, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, &Error{fmt.Sprintf("seqrange: reading range count: %v", err)}
	}

	wantSum := make([]byte, checksumSize)
	if _, err := io.ReadFull(r, wantSum); err != nil {
		return nil, &Error{fmt.Sprintf("seqrange: reading checksum: %v", err)}
	}

	const recordSize = 8 + 2 + 1 // StartPos(u64) + Len(u16) + Sym(byte)
	recBuf := make([]byte, int(n)*recordSize)
	if _, err := io.ReadFull(r, recBuf); err != nil {
		return nil, &Error{fmt.Sprintf("seqrange: reading ranges: %v", err)}
	}
	if got := checksumOf(recBuf); !bytes.Equal(got, wantSum) {
		return nil, &Error{"seqrange: checksum mismatch, range list is corrupt"}
	}

	l := &List{ranges: make([]Range, n)}
	br := bytes.NewReader(recBuf)
	for i := range l.ranges {
		var rec Range
		if err := binary.Read(br, binary.LittleEndian, &rec.StartPos); err != nil {
			return nil, &Error{fmt.Sprintf("seqrange: decoding range %d: %v", i, err)}
		}
		if err := binary.Read(br, binary.LittleEndian, &rec.Len); err != nil {
			return nil, &Error{fmt.Sprintf("seqrange: decoding range %d: %v", i, err)}
		}
		if err := binary.Read(br, binary.LittleEndian, &rec.Sym); err != nil {
			return nil, &Error{fmt.Sprintf("seqrange: decoding range %d: %v", i, err)}
		}
		l.ranges[i] = rec
	}
	return l, nil
}
