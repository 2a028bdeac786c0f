package mralphabet_test

import (
	"testing"

	"github.com/bebop/bwtidx/mralphabet"
)

func TestPresetsCoverTheirDomainSymbols(t *testing.T) {
	cases := []struct {
		name    string
		build   func() (*mralphabet.Alphabet, error)
		symbols string
	}{
		{"DNA", mralphabet.DNAWithSeparator, "ACGT$"},
		{"RNA", mralphabet.RNAWithSeparator, "ACGU$"},
		{"Protein", mralphabet.ProteinWithSeparator, "ACDEFGHIKLMNPQRSTVWY$"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := c.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Size() != len(c.symbols) {
				t.Fatalf("Size() = %d, want %d", a.Size(), len(c.symbols))
			}
			for _, b := range []byte(c.symbols) {
				if !a.SymbolHasValidMapping(b) {
					t.Errorf("expected %q to have a valid mapping", b)
				}
			}
		})
	}
}
