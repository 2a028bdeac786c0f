package main

/******************************************************************************

This file contains the code that runs when each bwtidx subcommand is
invoked. Argument flags are defined in main.go; this file keeps main.go
focused on the command tree itself.

******************************************************************************/

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/urfave/cli/v2"

	"github.com/bebop/bwtidx/bwtseq"
	"github.com/bebop/bwtidx/eis"
	"github.com/bebop/bwtidx/mralphabet"
)

func alphabetFromFlag(name string) (*mralphabet.Alphabet, error) {
	switch strings.ToLower(name) {
	case "dna":
		return mralphabet.DNAWithSeparator()
	case "rna":
		return mralphabet.RNAWithSeparator()
	case "protein":
		return mralphabet.ProteinWithSeparator()
	default:
		return nil, fmt.Errorf("unknown alphabet %q (want dna, rna, or protein)", name)
	}
}

func openIndex(c *cli.Context) (*bwtseq.BWTSeq, error) {
	alpha, err := alphabetFromFlag(c.String("alphabet"))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(c.String("index"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bwtseq.Load(f, alpha, c.Uint64("length"))
}

func buildCommand(c *cli.Context) error {
	alpha, err := alphabetFromFlag(c.String("alphabet"))
	if err != nil {
		return err
	}

	in, err := os.Open(c.String("in"))
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	seq, err := bwtseq.New(in, uint64(info.Size()), alpha, c.Int("block-size"), c.Int("blocks-per-superbucket"))
	if err != nil {
		return err
	}

	out, err := os.Create(c.String("out"))
	if err != nil {
		return err
	}
	defer out.Close()
	if err := seq.Save(out); err != nil {
		return err
	}

	saPath := c.String("sa")
	locateOutPath := c.String("locate-out")
	if saPath == "" && locateOutPath == "" {
		return nil
	}
	if saPath == "" || locateOutPath == "" {
		return fmt.Errorf("-sa and -locate-out must be given together")
	}

	sa, err := readSuffixArray(saPath)
	if err != nil {
		return err
	}
	locate, err := eis.BuildLocateTable(sa, uint64(info.Size()), c.Int("block-size"), c.Int("sample-interval"))
	if err != nil {
		return err
	}
	locateOut, err := os.Create(locateOutPath)
	if err != nil {
		return err
	}
	defer locateOut.Close()
	return locate.Save(locateOut)
}

// readSuffixArray reads a flat stream of little-endian uint64 values, the
// suffix array this module always treats as an opaque, externally-built
// input (never something it computes itself).
func readSuffixArray(path string) ([]uint64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%s: length %d is not a multiple of 8", path, len(raw))
	}
	sa := make([]uint64, len(raw)/8)
	for i := range sa {
		sa[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}
	return sa, nil
}

func getCommand(c *cli.Context) error {
	seq, err := openIndex(c)
	if err != nil {
		return err
	}
	sym, err := seq.Get(c.Uint64("pos"), eis.NewHint())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%c\n", sym)
	return nil
}

func rankCommand(c *cli.Context) error {
	seq, err := openIndex(c)
	if err != nil {
		return err
	}
	sym := []byte(c.String("sym"))
	if len(sym) != 1 {
		return fmt.Errorf("-sym must be exactly one byte, got %q", c.String("sym"))
	}
	r, err := seq.Occ(sym[0], c.Uint64("pos"), eis.NewHint())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, r)
	return nil
}

func matchCountCommand(c *cli.Context) error {
	seq, err := openIndex(c)
	if err != nil {
		return err
	}
	n, err := seq.MatchCount([]byte(c.String("query")), eis.NewHint())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, n)
	return nil
}

func locateCommand(c *cli.Context) error {
	seq, err := openIndex(c)
	if err != nil {
		return err
	}
	locateFile, err := os.Open(c.String("locate"))
	if err != nil {
		return err
	}
	defer locateFile.Close()
	locate, err := eis.LoadLocateTable(locateFile)
	if err != nil {
		return err
	}
	positions, err := seq.ExactMatchIterator([]byte(c.String("query")), locate)
	if err != nil {
		return err
	}
	for _, p := range positions {
		fmt.Fprintln(c.App.Writer, p)
	}
	return nil
}

func verifyCommand(c *cli.Context) error {
	seq, err := openIndex(c)
	if err != nil {
		return err
	}
	raw, err := os.Open(c.String("raw"))
	if err != nil {
		return err
	}
	defer raw.Close()

	err = bwtseq.VerifyIntegrity(seq, raw, 0, nil)
	if err == nil {
		fmt.Fprintln(c.App.Writer, "ok")
		return nil
	}

	mismatch, ok := err.(*bwtseq.IntegrityError)
	if !ok {
		return err
	}
	return reportMismatch(seq, raw, mismatch, c.String("raw"), c.String("index"))
}

// reportMismatch renders a small unified diff around the first divergent
// position, rather than a bare index, when verify finds a symbol
// mismatch. Rank mismatches have no byte-window rendering and are
// reported as plain text instead.
func reportMismatch(seq *bwtseq.BWTSeq, raw *os.File, mismatch *bwtseq.IntegrityError, rawPath, indexPath string) error {
	if !mismatch.SymbolMismatch {
		return mismatch
	}

	const window = 8
	start := uint64(0)
	if mismatch.Pos > window {
		start = mismatch.Pos - window
	}
	end := mismatch.Pos + window + 1
	if end > seq.Length() {
		end = seq.Length()
	}

	rawWindow := make([]byte, end-start)
	if _, err := raw.ReadAt(rawWindow, int64(start)); err != nil {
		return fmt.Errorf("%s (and re-reading the raw window failed: %v)", mismatch.Error(), err)
	}

	hint := eis.NewHint()
	indexLines := make([]string, end-start)
	rawLines := make([]string, end-start)
	for pos := start; pos < end; pos++ {
		sym, err := seq.Get(pos, hint)
		if err != nil {
			return fmt.Errorf("%s (and re-reading the index window failed: %v)", mismatch.Error(), err)
		}
		i := pos - start
		indexLines[i] = fmt.Sprintf("%d: %q\n", pos, sym)
		rawLines[i] = fmt.Sprintf("%d: %q\n", pos, rawWindow[i])
	}

	diff := difflib.UnifiedDiff{
		A:        rawLines,
		B:        indexLines,
		FromFile: rawPath,
		ToFile:   indexPath,
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return fmt.Errorf("%s\n%s", mismatch.Error(), text)
}
