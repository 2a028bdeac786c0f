package seqrange_test

import (
	"bytes"
	"testing"

	"github.com/bebop/bwtidx/seqrange"
)

func TestAppendNewRangeSplitsOnMaxLen(t *testing.T) {
	l := seqrange.New()
	l.AppendNewRange(0, seqrange.MaxRangeLen+10, 'N')

	if got := l.Len(); got != 2 {
		t.Fatalf("expected 2 split records, got %d", got)
	}
	if got := l.At(0).Len; got != seqrange.MaxRangeLen {
		t.Errorf("expected first record at max length, got %d", got)
	}
	if got := l.At(1); got.StartPos != seqrange.MaxRangeLen || got.Len != 10 {
		t.Errorf("expected second record {start=%d,len=10}, got %+v", seqrange.MaxRangeLen, got)
	}
}

func TestAddPositionCoalesces(t *testing.T) {
	l := seqrange.New()
	for pos := uint64(5); pos < 10; pos++ {
		l.AddPosition(pos, 'N')
	}
	if got := l.Len(); got != 1 {
		t.Fatalf("expected contiguous same-symbol positions to coalesce into 1 record, got %d", got)
	}
	if got := l.At(0); got.StartPos != 5 || got.Len != 5 {
		t.Errorf("expected {start=5,len=5}, got %+v", got)
	}
}

func TestAddPositionStartsNewRunOnSymbolChange(t *testing.T) {
	l := seqrange.New()
	l.AddPosition(0, 'N')
	l.AddPosition(1, 'X')
	if got := l.Len(); got != 2 {
		t.Fatalf("expected a symbol change to start a new run, got %d records", got)
	}
}

func TestAddPositionStartsNewRunOnGap(t *testing.T) {
	l := seqrange.New()
	l.AddPosition(0, 'N')
	l.AddPosition(5, 'N')
	if got := l.Len(); got != 2 {
		t.Fatalf("expected a gap to start a new run, got %d records", got)
	}
}

func TestAddPositionOutOfOrderInserts(t *testing.T) {
	l := seqrange.New()
	l.AddPosition(10, 'N')
	l.AddPosition(2, 'X')
	l.AddPosition(20, 'N')

	if got := l.Len(); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
	if got := l.At(0); got.StartPos != 2 {
		t.Errorf("expected out-of-order position to be inserted in sorted order, got first record %+v", got)
	}
	if got := l.At(1).StartPos; got != 10 {
		t.Errorf("expected second record at 10, got %d", got)
	}
	if got := l.At(2).StartPos; got != 20 {
		t.Errorf("expected third record at 20, got %d", got)
	}
}

func TestFindPositionNextOverlapAndAfter(t *testing.T) {
	l := seqrange.New()
	l.AppendNewRange(10, 5, 'N') // covers [10,15)
	l.AppendNewRange(20, 5, 'X') // covers [20,25)

	var hint seqrange.Hint
	idx, ok := l.FindPositionNext(12, &hint)
	if !ok || idx != 0 {
		t.Fatalf("expected overlap with record 0, got idx=%d ok=%v", idx, ok)
	}
	idx, ok = l.FindPositionNext(17, &hint)
	if !ok || idx != 1 {
		t.Fatalf("expected next record (1) for a position in the gap, got idx=%d ok=%v", idx, ok)
	}
	_, ok = l.FindPositionNext(30, &hint)
	if ok {
		t.Fatal("expected no match past every range")
	}
}

func TestSymbolCountInSeqRegion(t *testing.T) {
	l := seqrange.New()
	l.AppendNewRange(0, 10, 'N')  // [0,10)
	l.AppendNewRange(10, 10, 'X') // [10,20)

	var hint seqrange.Hint
	if got := l.SymbolCountInSeqRegion(5, 15, 'N', &hint); got != 5 {
		t.Errorf("expected 5 N's in [5,15), got %d", got)
	}
	if got := l.SymbolCountInSeqRegion(5, 15, 'X', &hint); got != 5 {
		t.Errorf("expected 5 X's in [5,15), got %d", got)
	}
	if got := l.AllSymbolsCountInSeqRegion(5, 15, &hint); got != 10 {
		t.Errorf("expected 10 covered positions in [5,15), got %d", got)
	}
}

func TestAllSymbolsCountInSeqRegionSkipsGaps(t *testing.T) {
	l := seqrange.New()
	l.AppendNewRange(0, 5, 'N')  // [0,5)
	l.AppendNewRange(10, 5, 'N') // [10,15)

	var hint seqrange.Hint
	if got := l.AllSymbolsCountInSeqRegion(0, 15, &hint); got != 10 {
		t.Errorf("expected 10 covered positions across both runs, got %d", got)
	}
	if got := l.AllSymbolsCountInSeqRegion(5, 10, &hint); got != 0 {
		t.Errorf("expected 0 covered positions inside the gap, got %d", got)
	}
}

func TestSaveAndReadFromStreamRoundTrip(t *testing.T) {
	l := seqrange.New()
	l.AppendNewRange(0, 5, 'N')
	l.AppendNewRange(100, 3, 'X')

	var buf bytes.Buffer
	if err := l.SaveToStream(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	back, err := seqrange.ReadFromStream(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Len() != l.Len() {
		t.Fatalf("expected %d records, got %d", l.Len(), back.Len())
	}
	for i := 0; i < l.Len(); i++ {
		if back.At(i) != l.At(i) {
			t.Errorf("record %d: got %+v, want %+v", i, back.At(i), l.At(i))
		}
	}
}
