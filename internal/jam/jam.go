// Package jam implements the engine's canonical noun encoding: the
// deterministic, self-delimiting binary structure hashed by
// digest.HashNoun to produce PKHs, first-names, and transaction ids.
//
// This is not literal Nock noun jamming (there is no Nock interpreter
// or bitstream-jam codec anywhere in the example corpus to ground one
// on). It is a from-scratch canonical binary encoder built in the same
// spirit: every noun is either an atom (opaque bytes) or a cell (an
// ordered pair of nouns), and the byte encoding is a pure function of
// structure and content only. Two callers building the same noun always
// produce the same bytes, on any platform.
package jam

import (
	"encoding/binary"

	"github.com/nockwallet/walletengine/internal/digest"
)

// Noun is either an Atom or a Cell.
type Noun interface {
	encodeInto(buf *[]byte)
}

// Atom is a leaf noun: an opaque byte string.
type Atom []byte

func (a Atom) encodeInto(buf *[]byte) {
	*buf = append(*buf, tagAtom)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(a)))
	*buf = append(*buf, lenBuf[:n]...)
	*buf = append(*buf, a...)
}

// Cell is an ordered pair of nouns.
type Cell struct {
	Head Noun
	Tail Noun
}

func (c Cell) encodeInto(buf *[]byte) {
	*buf = append(*buf, tagCell)
	c.Head.encodeInto(buf)
	c.Tail.encodeInto(buf)
}

const (
	tagAtom byte = 0x00
	tagCell byte = 0x01
)

// Encode serializes a noun into its canonical jam bytes.
func Encode(n Noun) []byte {
	buf := make([]byte, 0, 64)
	n.encodeInto(&buf)
	return buf
}

// Bool encodes a boolean as a single-byte atom (1 = true, 0 = false),
// matching the [true, lock_root] prefix required by first-name
// derivation (spec §4.4).
func Bool(b bool) Atom {
	if b {
		return Atom{1}
	}
	return Atom{0}
}

// Uint32 encodes a u32 as a fixed 4-byte big-endian atom.
func Uint32(v uint32) Atom {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return Atom(b)
}

// Uint64 encodes a u64 as a fixed 8-byte big-endian atom.
func Uint64(v uint64) Atom {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return Atom(b)
}

// Bytes wraps a raw byte string as an atom.
func Bytes(b []byte) Atom {
	return Atom(b)
}

// Digest wraps a 40-byte digest as an atom.
func Digest(d digest.Digest) Atom {
	return Atom(d.Bytes())
}

// nilAtom terminates a List's cons chain, like Nock's `~`.
var nilAtom = Atom(nil)

// List builds a right-nested cons list [items[0] items[1] ... nilAtom],
// the structural idiom used whenever the spec names an ordered sequence
// (lock-conjunctions, transaction inputs/outputs).
func List(items ...Noun) Noun {
	var tail Noun = nilAtom
	for i := len(items) - 1; i >= 0; i-- {
		tail = Cell{Head: items[i], Tail: tail}
	}
	return tail
}
