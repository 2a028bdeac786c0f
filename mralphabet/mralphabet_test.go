package mralphabet_test

import (
	"bytes"
	"testing"

	"github.com/bebop/bwtidx/mralphabet"
)

func buildDNAWithSeparator(t *testing.T) *mralphabet.Alphabet {
	t.Helper()
	a, err := mralphabet.DNAWithSeparator()
	if err != nil {
		t.Fatalf("unexpected error building alphabet: %v", err)
	}
	return a
}

func TestMapRevMapAreInverse(t *testing.T) {
	a := buildDNAWithSeparator(t)
	for _, b := range []byte("ACGT$") {
		code, ok := a.MapSymbol(b)
		if !ok {
			t.Fatalf("expected %q to map", b)
		}
		rev, ok := a.RevMapSymbol(code)
		if !ok || rev != b {
			t.Fatalf("expected round trip for %q, got %q ok=%v", b, rev, ok)
		}
	}
}

func TestSymbolHasValidMapping(t *testing.T) {
	a := buildDNAWithSeparator(t)
	if !a.SymbolHasValidMapping('A') {
		t.Fatal("expected A to be mapped")
	}
	if a.SymbolHasValidMapping('X') {
		t.Fatal("expected X to be unmapped")
	}
}

func TestRangesAreContiguous(t *testing.T) {
	a := buildDNAWithSeparator(t)
	total := 0
	for r := 0; r < a.NumRanges(); r++ {
		start, size := a.RangeBounds(r)
		if start != total {
			t.Fatalf("range %d starts at %d, expected %d", r, start, total)
		}
		total += size
	}
	if total != a.Size() {
		t.Fatalf("expected ranges to sum to alphabet size %d, got %d", a.Size(), total)
	}
}

func TestAddSymbolToRangeShiftsSuccessors(t *testing.T) {
	a, err := mralphabet.New([]mralphabet.RangeSpec{
		{Mode: mralphabet.BlockCompositionInclude, Symbols: []byte("ACGT")},
		{Mode: mralphabet.RegionsList, Symbols: []byte{'$'}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dollarBefore, _ := a.MapSymbol('$')

	if err := a.AddSymbolToRange('N', 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nCode, ok := a.MapSymbol('N')
	if !ok || nCode != 4 {
		t.Fatalf("expected N to take code 4, got %d ok=%v", nCode, ok)
	}
	dollarAfter, _ := a.MapSymbol('$')
	if dollarAfter != dollarBefore+1 {
		t.Fatalf("expected $ to shift from %d to %d, got %d", dollarBefore, dollarBefore+1, dollarAfter)
	}
	if got, _ := a.RevMapSymbol(dollarAfter); got != '$' {
		t.Fatalf("expected reverse map to follow the shift, got %q", got)
	}
}

func TestSecondaryMappingCollapsesExcludedRanges(t *testing.T) {
	a := buildDNAWithSeparator(t)

	sec, err := a.SecondaryMapping(mralphabet.BlockCompositionInclude, 'A')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sec.Size() != 4 {
		t.Fatalf("expected secondary alphabet size 4, got %d", sec.Size())
	}

	aCode, _ := sec.MapSymbol('A')
	dollarCode, ok := sec.MapSymbol('$')
	if !ok {
		t.Fatal("expected $ to still map, collapsed to fallback")
	}
	if dollarCode != aCode {
		t.Fatalf("expected $ to collapse to fallback code %d, got %d", aCode, dollarCode)
	}
}

func TestSymbolIsInSelectedRange(t *testing.T) {
	a := buildDNAWithSeparator(t)

	if got := a.SymbolIsInSelectedRange('A', mralphabet.BlockCompositionInclude); got <= 0 {
		t.Fatalf("expected A in block-composition range, got %d", got)
	}
	if got := a.SymbolIsInSelectedRange('$', mralphabet.BlockCompositionInclude); got != 0 {
		t.Fatalf("expected $ not in block-composition range, got %d", got)
	}
	if got := a.SymbolIsInSelectedRange('X', mralphabet.BlockCompositionInclude); got != -1 {
		t.Fatalf("expected unmapped symbol to report -1, got %d", got)
	}
}

func TestTransformSymbolsRoundTrip(t *testing.T) {
	a := buildDNAWithSeparator(t)
	domain := []byte("ACGT$ACGT")

	codes, err := a.TransformSymbols(domain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := a.RevTransformSymbols(codes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(back, domain) {
		t.Fatalf("expected round trip %q, got %q", domain, back)
	}
}

func TestReadAndTransform(t *testing.T) {
	a := buildDNAWithSeparator(t)
	r := bytes.NewReader([]byte("ACGT$"))
	dst := make([]mralphabet.Symbol, 5)

	n, err := a.ReadAndTransform(r, 5, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes read, got %d", n)
	}
	back, err := a.RevTransformSymbols(dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(back) != "ACGT$" {
		t.Fatalf("expected ACGT$, got %s", back)
	}
}
