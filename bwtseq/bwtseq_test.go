package bwtseq_test

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"

	"github.com/bebop/bwtidx/bwtseq"
	"github.com/bebop/bwtidx/eis"
	"github.com/bebop/bwtidx/mralphabet"
)

// naiveBWTAndSA builds the Burrows-Wheeler transform and suffix array of
// text+"$" by brute-force rotation and sort, standing in for the
// pre-built suffix-array project this package treats as an opaque input.
// '$' sorts after every other symbol, matching alphabetFor's code order
// (the sentinel's RegionsList range follows the letters).
func naiveBWTAndSA(text string) ([]byte, []uint64) {
	s := text + "$"
	n := len(s)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rotations := make([]string, n)
	for i := 0; i < n; i++ {
		rotations[i] = s[i:] + s[:i]
	}
	key := func(r string) string { return strings.ReplaceAll(r, "$", "\xff") }
	sort.Slice(idx, func(a, b int) bool { return key(rotations[idx[a]]) < key(rotations[idx[b]]) })

	bwt := make([]byte, n)
	sa := make([]uint64, n)
	for row, i := range idx {
		bwt[row] = rotations[i][n-1]
		sa[row] = uint64(i)
	}
	return bwt, sa
}

func alphabetFor(t *testing.T, bwtBytes []byte) *mralphabet.Alphabet {
	t.Helper()
	seen := make(map[byte]bool)
	var syms []byte
	for _, b := range bwtBytes {
		if b == '$' || seen[b] {
			continue
		}
		seen[b] = true
		syms = append(syms, b)
	}
	slices.Sort(syms)
	a, err := mralphabet.New([]mralphabet.RangeSpec{
		{Mode: mralphabet.BlockCompositionInclude, Symbols: syms},
		{Mode: mralphabet.RegionsList, Symbols: []byte{'$'}},
	})
	if err != nil {
		t.Fatalf("building alphabet: %v", err)
	}
	return a
}

func buildSeq(t *testing.T, text string) (*bwtseq.BWTSeq, []byte, []uint64) {
	t.Helper()
	bwtBytes, sa := naiveBWTAndSA(text)
	a := alphabetFor(t, bwtBytes)
	seq, err := bwtseq.New(bytes.NewReader(bwtBytes), uint64(len(bwtBytes)), a, 4, 2)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	return seq, bwtBytes, sa
}

func bruteForceCount(text, pattern string) int {
	full := text + "$"
	count := 0
	for i := 0; i+len(pattern) <= len(full); i++ {
		if full[i:i+len(pattern)] == pattern {
			count++
		}
	}
	return count
}

func TestMatchCountAgainstBruteForce(t *testing.T) {
	text := "thequickbrownfoxjumpsoverthelazydogoverandover"
	seq, _, _ := buildSeq(t, text)
	hint := eis.NewHint()

	for _, pattern := range []string{"over", "o", "the", "zzz", "dog", "quickbrown"} {
		want := bruteForceCount(text, pattern)
		got, err := seq.MatchCount([]byte(pattern), hint)
		if err != nil {
			t.Fatalf("MatchCount(%q): unexpected error: %v", pattern, err)
		}
		if got != uint64(want) {
			t.Errorf("MatchCount(%q) = %d, want %d", pattern, got, want)
		}
	}
}

func TestMatchCountRejectsEmptyQuery(t *testing.T) {
	seq, _, _ := buildSeq(t, "banana")
	if _, err := seq.MatchCount(nil, eis.NewHint()); err == nil {
		t.Fatal("expected an error for an empty query")
	}
}

func TestCountTablePostcondition(t *testing.T) {
	seq, _, _ := buildSeq(t, "banana")
	var total uint64
	hint := eis.NewHint()
	a := seq.Alphabet()
	for c := 0; c < a.Size(); c++ {
		sym, _ := a.RevMapSymbol(mralphabet.Symbol(c))
		r, err := seq.Occ(sym, seq.Length()-1, hint)
		if err != nil {
			t.Fatalf("Occ(%q): unexpected error: %v", sym, err)
		}
		total += r
	}
	if total != seq.Length() {
		t.Errorf("sum of ranks at the last position = %d, want %d", total, seq.Length())
	}
}

func TestOccAndSelectOnOutOfAlphabetSymbolAreNotAnError(t *testing.T) {
	seq, _, _ := buildSeq(t, "banana")
	hint := eis.NewHint()

	occ, err := seq.Occ('z', seq.Length()-1, hint)
	if err != nil {
		t.Fatalf("Occ('z'): expected a zero value, not an error: %v", err)
	}
	if occ != 0 {
		t.Errorf("Occ('z') = %d, want 0", occ)
	}

	pos, err := seq.Select('z', 1, hint)
	if err != nil {
		t.Fatalf("Select('z'): expected a zero value, not an error: %v", err)
	}
	if pos != 0 {
		t.Errorf("Select('z') = %d, want 0", pos)
	}
}

func TestLFWalkEnumeratesTextInReverse(t *testing.T) {
	text := "banana"
	seq, _, sa := buildSeq(t, text)
	hint := eis.NewHint()

	// The row whose suffix-array entry is 0 holds the whole text, so its
	// BWT symbol is the sentinel; following LF from there visits the
	// text's symbols in reverse.
	full := text + "$"
	var sentinelRow uint64
	for row, pos := range sa {
		if pos == 0 {
			sentinelRow = uint64(row)
			break
		}
	}

	pos := sentinelRow
	for i := 0; i < len(full); i++ {
		sym, err := seq.Get(pos, hint)
		if err != nil {
			t.Fatalf("Get(%d): unexpected error: %v", pos, err)
		}
		if want := full[len(full)-1-i]; sym != want {
			t.Errorf("step %d: symbol at row %d = %q, want %q", i, pos, sym, want)
		}
		next, err := seq.LF(pos, hint)
		if err != nil {
			t.Fatalf("LF(%d): unexpected error: %v", pos, err)
		}
		if next >= seq.Length() {
			t.Fatalf("LF(%d) = %d, want a value in [0, %d)", pos, next, seq.Length())
		}
		pos = next
	}
	// After |full| LF steps from the sentinel row we must return to it,
	// since LF is a permutation whose cycle through every row of a
	// rotation-complete BWT has length exactly len(full).
	if pos != sentinelRow {
		t.Errorf("LF cycle did not return to the sentinel row: got %d, want %d", pos, sentinelRow)
	}
}

func TestExactMatchIteratorMatchesBruteForce(t *testing.T) {
	text := "abrakadabraabrakadabra"
	bwtBytes, sa := naiveBWTAndSA(text)
	a := alphabetFor(t, bwtBytes)

	locate, err := eis.BuildLocateTable(sa, uint64(len(bwtBytes)), 4, 2)
	if err != nil {
		t.Fatalf("BuildLocateTable: unexpected error: %v", err)
	}

	seq, err := bwtseq.New(bytes.NewReader(bwtBytes), uint64(len(bwtBytes)), a, 4, 2)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}

	pattern := "abra"
	got, err := seq.ExactMatchIterator([]byte(pattern), locate)
	if err != nil {
		t.Fatalf("ExactMatchIterator: unexpected error: %v", err)
	}

	var want []int
	for i := 0; i+len(pattern) <= len(text); i++ {
		if text[i:i+len(pattern)] == pattern {
			want = append(want, i)
		}
	}

	gotInts := make([]int, len(got))
	for i, p := range got {
		gotInts[i] = int(p)
	}
	slices.Sort(gotInts)
	slices.Sort(want)

	if diff := cmp.Diff(want, gotInts); diff != "" {
		t.Errorf("ExactMatchIterator(%q) mismatch (-want +got):\n%s", pattern, diff)
	}
}

func TestExactMatchIteratorRequiresLocateTable(t *testing.T) {
	seq, _, _ := buildSeq(t, "banana")
	if _, err := seq.ExactMatchIterator([]byte("an"), nil); err == nil {
		t.Fatal("expected an error when no locate table is supplied")
	}
}

func TestVerifyIntegritySucceedsOnAnUntouchedIndex(t *testing.T) {
	text := "mississippiriver"
	seq, bwtBytes, _ := buildSeq(t, text)

	if err := bwtseq.VerifyIntegrity(seq, bytes.NewReader(bwtBytes), 0, nil); err != nil {
		t.Fatalf("VerifyIntegrity: unexpected error: %v", err)
	}
}

func TestVerifyIntegrityDetectsASymbolMismatch(t *testing.T) {
	text := "mississippiriver"
	seq, bwtBytes, _ := buildSeq(t, text)

	corrupt := append([]byte(nil), bwtBytes...)
	// Swap two distinct bytes so the reconstructed stream diverges from
	// what the index actually encodes, without changing its length.
	for i := 0; i < len(corrupt); i++ {
		for j := i + 1; j < len(corrupt); j++ {
			if corrupt[i] != corrupt[j] {
				corrupt[i], corrupt[j] = corrupt[j], corrupt[i]
				err := bwtseq.VerifyIntegrity(seq, bytes.NewReader(corrupt), 0, nil)
				if err == nil {
					t.Fatal("expected VerifyIntegrity to report a mismatch")
				}
				return
			}
		}
	}
	t.Skip("no two distinct bytes found to swap")
}

func TestSaveLoadPreservesMatchCount(t *testing.T) {
	text := strings.Repeat("abcabcabc", 4)
	bwtBytes, _ := naiveBWTAndSA(text)
	a := alphabetFor(t, bwtBytes)

	seq, err := bwtseq.New(bytes.NewReader(bwtBytes), uint64(len(bwtBytes)), a, 4, 2)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := seq.Save(&buf); err != nil {
		t.Fatalf("Save: unexpected error: %v", err)
	}

	loaded, err := bwtseq.Load(&buf, a, uint64(len(bwtBytes)))
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	hint := eis.NewHint()
	for _, pattern := range []string{"abc", "bca", "a", "abcabc"} {
		want, err := seq.MatchCount([]byte(pattern), hint)
		if err != nil {
			t.Fatalf("MatchCount(%q): unexpected error: %v", pattern, err)
		}
		got, err := loaded.MatchCount([]byte(pattern), hint)
		if err != nil {
			t.Fatalf("loaded.MatchCount(%q): unexpected error: %v", pattern, err)
		}
		if got != want {
			t.Errorf("loaded.MatchCount(%q) = %d, want %d", pattern, got, want)
		}
	}
}
