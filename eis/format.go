package eis

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"lukechampine.com/blake3"

	"github.com/bebop/bwtidx/bitpack"
	"github.com/bebop/bwtidx/comptab"
	"github.com/bebop/bwtidx/mralphabet"
	"github.com/bebop/bwtidx/seqrange"
)

var magic = [4]byte{'B', 'D', 'X', 0}

const (
	tagBKSZ = "BKSZ"
	tagBBLK = "BBLK"
	tagVOFF = "VOFF"
	tagROFF = "ROFF"
	tagNMRN = "NMRN"
	tagDIGS = "DIGS"

	digestSize = 32 // BLAKE3-256
)

func writeTag(w io.Writer, tag string) error {
	_, err := io.WriteString(w, tag)
	return err
}

func readTag(r io.Reader) (string, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	return string(buf[:]), nil
}

// Save writes the index's on-disk form: a tagged header naming
// blockSize, blocksPerSuperBucket, the alphabet's mode vector, and a
// BLAKE3-256 digest of everything that follows, then the cw payload (one
// super-bucket record at a time: its cw bits, Seqpos snapshot, and
// BitOffset), the var payload, and finally the sequence-range list.
func (e *EIS) Save(w io.Writer) error {
	var hdr []byte
	var vOffOffset, rOffOffset, digestOffset int
	const preludeLen = 4 + 4 // magic + hdrLen
	{
		buf := newByteWriter()
		writeTag(buf, tagBKSZ)
		buf.u32(uint32(e.blockSize))
		writeTag(buf, tagBBLK)
		buf.u32(uint32(e.blocksPerSuperBucket))
		writeTag(buf, tagVOFF)
		vOffOffset = preludeLen + buf.n
		buf.u64(0) // patched below once the cw payload's length is known
		writeTag(buf, tagROFF)
		rOffOffset = preludeLen + buf.n
		buf.u64(0) // patched below
		writeTag(buf, tagNMRN)
		buf.u32(uint32(e.alphabet.NumRanges()))
		for r := 0; r < e.alphabet.NumRanges(); r++ {
			buf.u32(uint32(e.alphabet.RangeMode(r)))
		}
		writeTag(buf, tagDIGS)
		digestOffset = preludeLen + buf.n
		buf.Write(make([]byte, digestSize)) // patched below
		tags := buf.bytes()

		full := newByteWriter()
		full.Write(magic[:])
		full.u32(uint32(len(tags)))
		full.Write(tags)
		hdr = full.bytes()
	}

	body := e.encodeCwVarPayload(uint64(len(hdr)))
	patchU64At(hdr, vOffOffset, body.varOffset)

	var rangesBuf bytes.Buffer
	if err := e.ranges.SaveToStream(&rangesBuf); err != nil {
		return &Error{fmt.Sprintf("eis: writing range list: %v", err)}
	}

	rangeEncPos := uint64(len(hdr)) + uint64(len(body.bytes))
	patchU64At(hdr, rOffOffset, rangeEncPos)

	digest := blake3.Sum256(append(append([]byte(nil), body.bytes...), rangesBuf.Bytes()...))
	copy(hdr[digestOffset:digestOffset+digestSize], digest[:])
	e.digest = digest

	if _, err := w.Write(hdr); err != nil {
		return &Error{fmt.Sprintf("eis: writing header: %v", err)}
	}
	if _, err := w.Write(body.bytes); err != nil {
		return &Error{fmt.Sprintf("eis: writing cw/var payload: %v", err)}
	}
	if _, err := w.Write(rangesBuf.Bytes()); err != nil {
		return &Error{fmt.Sprintf("eis: writing range list: %v", err)}
	}
	return nil
}

// cwVarPayload is the serialized cw+var section plus the byte offset
// (relative to the whole stream) where its var sub-section begins.
type cwVarPayload struct {
	bytes     []byte
	varOffset uint64
}

// encodeCwVarPayload builds the cw payload (one record per super-bucket)
// followed by the var bit stream. hdrLen is the already-finalized header
// length, needed to compute the var section's absolute stream offset.
func (e *EIS) encodeCwVarPayload(hdrLen uint64) cwVarPayload {
	buf := newByteWriter()
	numBlocks := e.numSuperBuckets * e.blocksPerSuperBucket
	for bucket := 0; bucket < e.numSuperBuckets; bucket++ {
		cwBucket := bitpack.NewWriter()
		base := bucket * e.blocksPerSuperBucket
		for i := 0; i < e.blocksPerSuperBucket; i++ {
			blk := base + i
			var ci uint64
			if blk < numBlocks {
				ci = bitpack.GetUint(e.cw, uint64(blk)*e.compIdxBits, e.compIdxBits)
			}
			cwBucket.WriteUint(ci, e.compIdxBits)
		}
		words := cwBucket.Words()
		buf.u64(cwBucket.Len())
		for _, w := range words {
			buf.u64(w)
		}
		for _, c := range e.prevBucket[bucket] {
			buf.u64(c)
		}
		buf.u64(e.varBitOffset[bucket])
	}

	varOffset := hdrLen + uint64(buf.n)
	buf.u64(e.varBits)
	for _, w := range e.vr {
		buf.u64(w)
	}

	return cwVarPayload{bytes: buf.bytes(), varOffset: varOffset}
}

// Digest returns the BLAKE3-256 digest recorded the last time this EIS was
// Saved or Loaded; it is the zero value for an EIS fresh out of Build.
func (e *EIS) Digest() [32]byte {
	return e.digest
}

// VerifyDigest recomputes the digest of the current cw/var/range payload
// and reports whether it matches the digest this EIS was loaded with -
// a fast corruption pre-check a caller can run before the more expensive
// per-position VerifyIntegrity walk.
func (e *EIS) VerifyDigest() bool {
	body := e.encodeCwVarPayload(0)
	var rangesBuf bytes.Buffer
	if err := e.ranges.SaveToStream(&rangesBuf); err != nil {
		return false
	}
	got := blake3.Sum256(append(append([]byte(nil), body.bytes...), rangesBuf.Bytes()...))
	return got == e.digest
}

func patchU64At(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// Load reconstructs an EIS previously written by Save. alpha and length
// must match the values Build was called with; blockSize and
// blocksPerSuperBucket are taken from the header as stored, and only the
// header's mode vector is checked against alpha.
func Load(r io.Reader, alpha *mralphabet.Alphabet, length uint64) (*EIS, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil || gotMagic != magic {
		return nil, &Error{"eis: corrupt header (bad magic)"}
	}
	if _, err := readU32(r); err != nil { // hdrLen: informational, not re-checked byte for byte
		return nil, &Error{fmt.Sprintf("eis: reading header length: %v", err)}
	}

	tag, err := readTag(r)
	if err != nil || tag != tagBKSZ {
		return nil, &Error{"eis: corrupt header (missing BKSZ)"}
	}
	blockSize, err := readU32(r)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading blockSize: %v", err)}
	}

	if tag, err = readTag(r); err != nil || tag != tagBBLK {
		return nil, &Error{"eis: corrupt header (missing BBLK)"}
	}
	blocksPerSuperBucket, err := readU32(r)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading blocksPerSuperBucket: %v", err)}
	}

	if tag, err = readTag(r); err != nil || tag != tagVOFF {
		return nil, &Error{"eis: corrupt header (missing VOFF)"}
	}
	if _, err := readU64(r); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading varIdxDataPos: %v", err)}
	}

	if tag, err = readTag(r); err != nil || tag != tagROFF {
		return nil, &Error{"eis: corrupt header (missing ROFF)"}
	}
	if _, err := readU64(r); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading rangeEncPos: %v", err)}
	}

	if tag, err = readTag(r); err != nil || tag != tagNMRN {
		return nil, &Error{"eis: corrupt header (missing NMRN)"}
	}
	numModes, err := readU32(r)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading numModes: %v", err)}
	}
	if int(numModes) != alpha.NumRanges() {
		return nil, &Error{"eis: alphabet range count does not match stored index"}
	}
	for r2 := 0; r2 < int(numModes); r2++ {
		m, err := readU32(r)
		if err != nil {
			return nil, &Error{fmt.Sprintf("eis: reading mode %d: %v", r2, err)}
		}
		if mralphabet.Mode(m) != alpha.RangeMode(r2) {
			return nil, &Error{fmt.Sprintf("eis: alphabet range %d mode does not match stored index", r2)}
		}
	}

	if tag, err = readTag(r); err != nil || tag != tagDIGS {
		return nil, &Error{"eis: corrupt header (missing DIGS)"}
	}
	var digest [32]byte
	if _, err := io.ReadFull(r, digest[:]); err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading digest: %v", err)}
	}

	fallbackByte, err := fallbackByteOf(alpha)
	if err != nil {
		return nil, err
	}
	sub, err := alpha.SecondaryMapping(mralphabet.BlockCompositionInclude, fallbackByte)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: deriving sub-alphabet: %v", err)}
	}
	fallback, _ := sub.MapSymbol(fallbackByte)
	comp, err := comptab.New(int(blockSize), sub.Size())
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: rebuilding composition tables: %v", err)}
	}

	numBlocksTrue := int((length + uint64(blockSize) - 1) / uint64(blockSize))
	if numBlocksTrue == 0 {
		numBlocksTrue = 1
	}
	numSuperBuckets := (numBlocksTrue + int(blocksPerSuperBucket) - 1) / int(blocksPerSuperBucket)

	e := &EIS{
		alphabet:             alpha,
		sub:                  sub,
		fallback:             fallback,
		comp:                 comp,
		length:               length,
		blockSize:            int(blockSize),
		blocksPerSuperBucket: int(blocksPerSuperBucket),
		compIdxBits:          comp.CompositionIdxBits(),
		numSuperBuckets:      numSuperBuckets,
		prevBucket:           make([][]uint64, numSuperBuckets),
		varBitOffset:         make([]uint64, numSuperBuckets),
		digest:               digest,
	}

	cwW := bitpack.NewWriter()
	for bucket := 0; bucket < numSuperBuckets; bucket++ {
		nbits, err := readU64(r)
		if err != nil {
			return nil, &Error{fmt.Sprintf("eis: reading cw bit count for bucket %d: %v", bucket, err)}
		}
		words := make([]uint64, bitpack.BitElemsAllocSize(nbits))
		for i := range words {
			if words[i], err = readU64(r); err != nil {
				return nil, &Error{fmt.Sprintf("eis: reading cw words for bucket %d: %v", bucket, err)}
			}
		}
		for i := 0; i < int(blocksPerSuperBucket); i++ {
			ci := bitpack.GetUint(words, uint64(i)*e.compIdxBits, e.compIdxBits)
			cwW.WriteUint(ci, e.compIdxBits)
		}

		e.prevBucket[bucket] = make([]uint64, sub.Size())
		for s := range e.prevBucket[bucket] {
			if e.prevBucket[bucket][s], err = readU64(r); err != nil {
				return nil, &Error{fmt.Sprintf("eis: reading prevBucket for bucket %d: %v", bucket, err)}
			}
		}
		if e.varBitOffset[bucket], err = readU64(r); err != nil {
			return nil, &Error{fmt.Sprintf("eis: reading varBitOffset for bucket %d: %v", bucket, err)}
		}
	}
	e.cw = cwW.Words()

	varBits, err := readU64(r)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading var bit count: %v", err)}
	}
	e.varBits = varBits
	e.vr = make([]uint64, bitpack.BitElemsAllocSize(varBits))
	for i := range e.vr {
		if e.vr[i], err = readU64(r); err != nil {
			return nil, &Error{fmt.Sprintf("eis: reading var words: %v", err)}
		}
	}

	ranges, err := seqrange.ReadFromStream(r)
	if err != nil {
		return nil, &Error{fmt.Sprintf("eis: reading range list: %v", err)}
	}
	e.ranges = ranges

	return e, nil
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// byteWriter is a tiny in-memory little-endian builder used by Save so the
// header's VOFF/ROFF fields can be patched after the fact, once the
// payload sizes that follow it are known.
type byteWriter struct {
	buf []byte
	n   int
}

func newByteWriter() *byteWriter { return &byteWriter{} }

func (b *byteWriter) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	b.n += len(p)
	return len(p), nil
}

func (b *byteWriter) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

func (b *byteWriter) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.Write(tmp[:])
}

func (b *byteWriter) bytes() []byte { return b.buf }
