package mralphabet

// Separator is the domain byte reserved to mark sequence boundaries
// (the BWT's sentinel character).
const Separator byte = '$'

// dnaBases, rnaBases, and proteinBases are the base symbol sets for this
// module's built-in genomic presets - ordinary nucleotide/amino-acid
// alphabets, with no sentinel handling of their own.
var (
	dnaBases     = []byte("ACGT")
	rnaBases     = []byte("ACGU")
	proteinBases = []byte("ACDEFGHIKLMNPQRSTVWY")
)

// DNAWithSeparator returns the two-range alphabet used throughout this
// module's examples and tests: the four DNA bases in a
// BlockCompositionInclude range, plus Separator in its own RegionsList
// range.
func DNAWithSeparator() (*Alphabet, error) {
	return presetWithSeparator(dnaBases)
}

// RNAWithSeparator is DNAWithSeparator's RNA counterpart.
func RNAWithSeparator() (*Alphabet, error) {
	return presetWithSeparator(rnaBases)
}

// ProteinWithSeparator is DNAWithSeparator's amino-acid counterpart.
func ProteinWithSeparator() (*Alphabet, error) {
	return presetWithSeparator(proteinBases)
}

func presetWithSeparator(bases []byte) (*Alphabet, error) {
	symbols := make([]byte, len(bases))
	copy(symbols, bases)
	return New([]RangeSpec{
		{Mode: BlockCompositionInclude, Symbols: symbols},
		{Mode: RegionsList, Symbols: []byte{Separator}},
	})
}
