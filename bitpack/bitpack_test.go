package bitpack

import "testing"

func TestGetUintStoreUintRoundTrip(t *testing.T) {
	words := make([]uint64, 2)
	StoreUint(words, 5, 9, 0x1AB)
	got := GetUint(words, 5, 9)
	if got != 0x1AB {
		t.Fatalf("expected 0x1AB, got 0x%x", got)
	}
}

type uniformCase struct {
	offset   uint64
	width    uint
	n        int
	values   []uint64
}

func TestUniformArrayRoundTrip(t *testing.T) {
	testTable := []uniformCase{
		{0, 3, 4, []uint64{1, 2, 3, 4}},
		{7, 13, 5, []uint64{0, 8191, 1, 4096, 77}},
		{61, 4, 6, []uint64{0, 15, 9, 1, 0, 8}},
	}

	for _, v := range testTable {
		dst := make([]uint64, BitElemsAllocSize(v.offset+uint64(v.width)*uint64(v.n)))
		StoreUniformUintArray(dst, v.offset, v.width, v.n, v.values)
		got := GetUniformUintArray(dst, v.offset, v.width, v.n)
		for i := range v.values {
			if got[i] != v.values[i] {
				t.Fatalf("offset=%d width=%d index=%d expected=%d got=%d", v.offset, v.width, i, v.values[i], got[i])
			}
		}
	}
}

func TestCompareOrdersByLeadingBit(t *testing.T) {
	a := make([]uint64, 1)
	b := make([]uint64, 1)
	StoreUint(a, 0, 8, 0b00000100)
	StoreUint(b, 0, 8, 0b00000101)

	if c := Compare(a, 0, 8, b, 0, 8); c >= 0 {
		t.Fatalf("expected a < b, got compare=%d", c)
	}
	if c := Compare(a, 0, 8, a, 0, 8); c != 0 {
		t.Fatalf("expected equal strings to compare 0, got %d", c)
	}
	if c := Compare(b, 0, 8, a, 0, 8); c <= 0 {
		t.Fatalf("expected b > a, got compare=%d", c)
	}
}

func TestCompareShorterPrefixOrdersFirst(t *testing.T) {
	a := make([]uint64, 1)
	b := make([]uint64, 1)
	StoreUint(a, 0, 4, 0b0110)
	StoreUint(b, 0, 8, 0b01100001)

	if c := Compare(a, 0, 4, b, 0, 8); c >= 0 {
		t.Fatalf("expected the shorter shared prefix to order first, got %d", c)
	}
}

func TestWriterTakeWholeWords(t *testing.T) {
	w := NewWriter()
	for i := 0; i < 70; i++ {
		w.WriteUint(uint64(i%2), 1)
	}

	whole := w.TakeWholeWords()
	if len(whole) != 1 {
		t.Fatalf("expected exactly one whole word flushed, got %d", len(whole))
	}
	if w.Len() != 6 {
		t.Fatalf("expected 6 carried-over bits, got %d", w.Len())
	}

	// the carried-over tail should still read back correctly once more
	// bits are appended to it.
	w.WriteUint(0b101010, 6)
	if w.Len() != 12 {
		t.Fatalf("expected 12 bits after appending to carry-over, got %d", w.Len())
	}
	got := GetUint(w.Words(), 6, 6)
	if got != 0b101010 {
		t.Fatalf("expected carried tail to round-trip, got 0b%b", got)
	}
}

func TestBitElemsAllocSize(t *testing.T) {
	testTable := []struct {
		nBits    uint64
		expected int
	}{
		{0, 0},
		{1, 1},
		{64, 1},
		{65, 2},
		{128, 2},
		{129, 3},
	}
	for _, v := range testTable {
		if got := BitElemsAllocSize(v.nBits); got != v.expected {
			t.Fatalf("nBits=%d expected=%d got=%d", v.nBits, v.expected, got)
		}
	}
}
