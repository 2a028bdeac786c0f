package eis

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bebop/bwtidx/bitpack"
)

// LocateTable is the optional sampled-locate structure: for every
// sampleInterval-th suffix-array row, it records both the BWT position
// (the row index) and the original-text position, so a caller
// repeatedly applying LF can stop as soon as it lands on a sampled BWT
// position instead of walking all the way back to the sentinel.
//
// Resolving the open question of how dense a sample original_source's
// bwtseq.c and eis-bwtseq-context-param.h leave unconstrained, sample
// entries are laid out per block: each block carries its own header
// bitmap (one bit per block position marking whether it is sampled)
// followed by packed (bwtPos, origPos) pairs whose bwtPos field is sized
// from that block's own length, never from the total sequence length L.
type LocateTable struct {
	blockSize      int
	sampleInterval int
	length         uint64
	numBlocks      int
	origPosWidth   uint

	headerBits       []uint64 // blockSize bits per block, concatenated
	entryBits        []uint64 // packed (bwtPos, origPos) pairs, concatenated per block
	blockEntryOffset []uint64 // [block] bit offset into entryBits where its entries start
}

// requiredBits returns ceil(log2(n)) for n >= 1, and 0 for n <= 1.
func requiredBits(n uint64) uint {
	if n <= 1 {
		return 0
	}
	w := uint(0)
	for v := n - 1; v > 0; v >>= 1 {
		w++
	}
	return w
}

func (lt *LocateTable) blockLen(blk int) uint64 {
	start := uint64(blk) * uint64(lt.blockSize)
	if start >= lt.length {
		return 0
	}
	if remaining := lt.length - start; remaining < uint64(lt.blockSize) {
		return remaining
	}
	return uint64(lt.blockSize)
}

func (lt *LocateTable) bwtPosWidth(blk int) uint {
	bl := lt.blockLen(blk)
	if bl == 0 {
		return 0
	}
	return requiredBits(bl)
}

// BuildLocateTable samples sa (the suffix array: sa[bwtPos] is the
// original-text position the row at bwtPos corresponds to) every
// sampleInterval rows and packs the per-block structure described above.
func BuildLocateTable(sa []uint64, length uint64, blockSize, sampleInterval int) (*LocateTable, error) {
	if blockSize <= 0 {
		return nil, &Error{"eis: blockSize must be positive"}
	}
	if sampleInterval <= 0 {
		return nil, &Error{"eis: sampleInterval must be positive"}
	}
	if uint64(len(sa)) != length {
		return nil, &Error{"eis: suffix array length does not match sequence length"}
	}

	numBlocks := int((length + uint64(blockSize) - 1) / uint64(blockSize))
	if numBlocks == 0 {
		numBlocks = 1
	}

	lt := &LocateTable{
		blockSize:        blockSize,
		sampleInterval:   sampleInterval,
		length:           length,
		numBlocks:        numBlocks,
		origPosWidth:     requiredBits(length),
		blockEntryOffset: make([]uint64, numBlocks),
	}

	headerW := bitpack.NewWriter()
	entryW := bitpack.NewWriter()

	for blk := 0; blk < numBlocks; blk++ {
		bl := lt.blockLen(blk)
		bwtWidth := lt.bwtPosWidth(blk)
		lt.blockEntryOffset[blk] = entryW.Len()

		for i := uint64(0); i < uint64(blockSize); i++ {
			bwtPos := uint64(blk)*uint64(blockSize) + i
			sampled := i < bl && bwtPos%uint64(sampleInterval) == 0
			if sampled {
				headerW.WriteUint(1, 1)
				entryW.WriteUint(i, bwtWidth)
				entryW.WriteUint(sa[bwtPos], lt.origPosWidth)
			} else {
				headerW.WriteUint(0, 1)
			}
		}
	}

	lt.headerBits = headerW.Words()
	lt.entryBits = entryW.Words()
	return lt, nil
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// Lookup reports the original-text position recorded for bwtPos, if that
// position was sampled.
func (lt *LocateTable) Lookup(bwtPos uint64) (origPos uint64, ok bool) {
	if bwtPos >= lt.length {
		return 0, false
	}
	blk := int(bwtPos / uint64(lt.blockSize))
	rel := bwtPos % uint64(lt.blockSize)
	base := uint64(blk) * uint64(lt.blockSize)

	if bitpack.GetUint(lt.headerBits, base+rel, 1) == 0 {
		return 0, false
	}

	idx := uint64(0)
	for i := uint64(0); i < rel; i++ {
		idx += bitpack.GetUint(lt.headerBits, base+i, 1)
	}

	bwtWidth := lt.bwtPosWidth(blk)
	entryWidth := uint64(bwtWidth) + uint64(lt.origPosWidth)
	off := lt.blockEntryOffset[blk] + idx*entryWidth
	origPos = bitpack.GetUint(lt.entryBits, off+uint64(bwtWidth), lt.origPosWidth)
	return origPos, true
}

// SampleInterval returns the interval this table sampled the suffix array at.
func (lt *LocateTable) SampleInterval() int { return lt.sampleInterval }

// Save writes the locate table in a simple self-contained stream: block
// parameters, then the header bitmap words, then the entry bitmap words.
func (lt *LocateTable) Save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(lt.blockSize)); err != nil {
		return &Error{fmt.Sprintf("eis: writing locate blockSize: %v", err)}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(lt.sampleInterval)); err != nil {
		return &Error{fmt.Sprintf("eis: writing locate sampleInterval: %v", err)}
	}
	if err := binary.Write(w, binary.LittleEndian, lt.length); err != nil {
		return &Error{fmt.Sprintf("eis: writing locate length: %v", err)}
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(lt.headerBits))); err != nil {
		return &Error{fmt.Sprintf("eis: writing locate header word count: %v", err)}
	}
	for _, word := range lt.headerBits {
		if err := binary.Write(w, binary.LittleEndian, word); err != nil {
			return &Error{fmt.Sprintf("eis: writing locate header words: %v", err)}
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(lt.entryBits))); err != nil {
		return &Error{fmt.Sprintf("eis: writing locate entry word count: %v", err)}
	}
	for _, word := range lt.entryBits {
		if err := binary.Write(w, binary.LittleEndian, word); err != nil {
			return &Error{fmt.Sprintf("eis: writing locate entry words: %v", err)}
		}
	}
	return nil
}

// LoadLocateTable is the inverse of Save.
func LoadLocateTable(r io.Reader) (*LocateTable, error) {
	var blockSize, sampleInterval uint32
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &blockSize); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading locate blockSize: %v", err)}
	}
	if err := binary.Read(r, binary.LittleEndian, &sampleInterval); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading locate sampleInterval: %v", err)}
	}
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading locate length: %v", err)}
	}

	numBlocks := int((length + uint64(blockSize) - 1) / uint64(blockSize))
	if numBlocks == 0 {
		numBlocks = 1
	}
	lt := &LocateTable{
		blockSize:        int(blockSize),
		sampleInterval:   int(sampleInterval),
		length:           length,
		numBlocks:        numBlocks,
		origPosWidth:     requiredBits(length),
		blockEntryOffset: make([]uint64, numBlocks),
	}

	var headerWordCount uint64
	if err := binary.Read(r, binary.LittleEndian, &headerWordCount); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading locate header word count: %v", err)}
	}
	lt.headerBits = make([]uint64, headerWordCount)
	for i := range lt.headerBits {
		if err := binary.Read(r, binary.LittleEndian, &lt.headerBits[i]); err != nil {
			return nil, &Error{fmt.Sprintf("eis: reading locate header words: %v", err)}
		}
	}

	var entryWordCount uint64
	if err := binary.Read(r, binary.LittleEndian, &entryWordCount); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading locate entry word count: %v", err)}
	}
	lt.entryBits = make([]uint64, entryWordCount)
	for i := range lt.entryBits {
		if err := binary.Read(r, binary.LittleEndian, &lt.entryBits[i]); err != nil {
			return nil, &Error{fmt.Sprintf("eis: reading locate entry words: %v", err)}
		}
	}

	offset := uint64(0)
	for blk := 0; blk < numBlocks; blk++ {
		lt.blockEntryOffset[blk] = offset
		bl := lt.blockLen(blk)
		bwtWidth := lt.bwtPosWidth(blk)
		entryWidth := uint64(bwtWidth) + uint64(lt.origPosWidth)
		base := uint64(blk) * uint64(blockSize)
		var sampledCount uint64
		limit := uint64(blockSize)
		if bl < limit {
			limit = bl
		}
		for i := uint64(0); i < limit; i++ {
			sampledCount += bitpack.GetUint(lt.headerBits, base+i, 1)
		}
		offset += sampledCount * entryWidth
	}

	return lt, nil
}
