package bwtseq

import (
	"fmt"
	"io"

	"github.com/bebop/bwtidx/eis"
)

// IntegrityError reports the first position where a rebuilt index
// disagrees with the original BWT byte stream, the INTEGRITY_MISMATCH
// case a verifyIntegrity walk can surface.
type IntegrityError struct {
	Pos uint64

	// SymbolMismatch is true when Get(Pos) disagreed; false means the
	// rank check disagreed instead (ExpectedRank/ObservedRank apply).
	SymbolMismatch bool

	ExpectedSymbol, ObservedSymbol byte
	ExpectedRank, ObservedRank     uint64
}

func (e *IntegrityError) Error() string {
	if e.SymbolMismatch {
		return fmt.Sprintf("bwtseq: position %d: expected symbol %q, got %q", e.Pos, e.ExpectedSymbol, e.ObservedSymbol)
	}
	return fmt.Sprintf("bwtseq: position %d: expected rank %d, got %d", e.Pos, e.ExpectedRank, e.ObservedRank)
}

// VerifyIntegrity enumerates raw (the original BWT byte stream, in
// order) and checks every position's Get and Rank against it. When the
// underlying index carries a recorded digest (eis.EIS.Digest), that
// whole-payload BLAKE3 check runs first as a fast pre-check before the
// expensive per-position walk. tick, if non-nil, is called every
// tickEvery positions so a caller can report progress; pass tickEvery
// 0 to disable.
func VerifyIntegrity(b *BWTSeq, raw io.Reader, tickEvery uint64, tick func(pos uint64)) error {
	if digest := b.idx.Digest(); digest != ([32]byte{}) {
		if !b.idx.VerifyDigest() {
			return corruptErr("bwtseq: digest mismatch, index payload is corrupt")
		}
	}

	hint := eis.NewHint()
	runningCounts := make(map[byte]uint64)
	var buf [1]byte

	for pos := uint64(0); pos < b.Length(); pos++ {
		if _, err := io.ReadFull(raw, buf[:]); err != nil {
			return ioErr(fmt.Sprintf("bwtseq: reading original BWT byte at position %d: %v", pos, err))
		}
		expectedSym := buf[0]
		runningCounts[expectedSym]++
		expectedRank := runningCounts[expectedSym]

		gotSym, err := b.idx.Get(pos, true, hint)
		if err != nil {
			return ioErr(err.Error())
		}
		if gotSym != expectedSym {
			return &IntegrityError{Pos: pos, SymbolMismatch: true, ExpectedSymbol: expectedSym, ObservedSymbol: gotSym}
		}

		gotRank, err := b.idx.Rank(expectedSym, pos, hint)
		if err != nil {
			return ioErr(err.Error())
		}
		if gotRank != expectedRank {
			return &IntegrityError{Pos: pos, ExpectedRank: expectedRank, ObservedRank: gotRank}
		}

		if tick != nil && tickEvery > 0 && pos%tickEvery == 0 {
			tick(pos)
		}
	}
	return nil
}
