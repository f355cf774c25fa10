// Package note models the Nockchain note (UTXO) and its lock / spend
// condition primitives, first-name derivation, spend-condition discovery,
// and transaction build/sign/validate pipeline (spec §3, §4.4). It has no
// persistence or I/O: every function here is pure, matching the codec and
// crypto primitives it builds on (internal/digest, internal/jam,
// internal/keyhier, internal/signer).
package note

import (
	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/jam"
)

// LockKind distinguishes the three lock-primitive variants.
type LockKind int

const (
	LockKindPKH LockKind = iota
	LockKindTIM
	LockKindBRN
)

// Range is an optional {min, max} bound over block heights. A nil bound
// is unconstrained on that side.
type Range struct {
	Min *uint32
	Max *uint32
}

// Lock is a tagged-union lock primitive (spec §3). Only the fields for
// the active Kind are meaningful.
type Lock struct {
	Kind LockKind

	// PKH fields.
	M      int
	Hashes []digest.Digest

	// TIM fields. IsCoinbaseHelper distinguishes the canonical coinbase()
	// constructor from a hand-built TIM carrying the same numeric range:
	// the two are distinct candidates in spend-condition discovery (spec
	// §4.4 candidates 2 and 3), so they must encode to distinct nouns even
	// when Rel/Abs happen to match. See DESIGN.md.
	Rel              Range
	Abs              Range
	IsCoinbaseHelper bool
}

// PKHLock builds a PKH(m, hashes) lock. Single(h) is PKHLock(1, h).
func PKHLock(m int, hashes ...digest.Digest) Lock {
	return Lock{Kind: LockKindPKH, M: m, Hashes: hashes}
}

// Single is PKH(1, [h]), the standard one-signature lock.
func Single(h digest.Digest) Lock {
	return PKHLock(1, h)
}

// TIMLock builds a TIM(rel, abs) timelock from explicit ranges.
func TIMLock(rel, abs Range) Lock {
	return Lock{Kind: LockKindTIM, Rel: rel, Abs: abs}
}

// coinbaseMinRelative is the canonical 100-block relative-minimum
// maturity window mining rewards carry.
const coinbaseMinRelative = uint32(100)

// Coinbase is the canonical 100-block relative-min timelock used for
// mining rewards (spec §3, glossary "Coinbase").
func Coinbase() Lock {
	min := coinbaseMinRelative
	return Lock{Kind: LockKindTIM, Rel: Range{Min: &min}, IsCoinbaseHelper: true}
}

// Burn is a permanently unspendable lock.
func Burn() Lock {
	return Lock{Kind: LockKindBRN}
}

func optRangeBound(v *uint32) jam.Noun {
	if v == nil {
		return jam.Bool(false)
	}
	return jam.Cell{Head: jam.Bool(true), Tail: jam.Uint32(*v)}
}

func encodeRange(r Range) jam.Noun {
	return jam.Cell{Head: optRangeBound(r.Min), Tail: optRangeBound(r.Max)}
}

// encodeNoun renders l into the canonical noun fed to hash_noun when
// computing a spend condition's lock_root.
func (l Lock) encodeNoun() jam.Noun {
	switch l.Kind {
	case LockKindPKH:
		hashItems := make([]jam.Noun, len(l.Hashes))
		for i, h := range l.Hashes {
			hashItems[i] = jam.Digest(h)
		}
		return jam.Cell{
			Head: jam.Atom("PKH"),
			Tail: jam.Cell{Head: jam.Uint32(uint32(l.M)), Tail: jam.List(hashItems...)},
		}
	case LockKindTIM:
		if l.IsCoinbaseHelper {
			return jam.Cell{Head: jam.Atom("COINBASE"), Tail: jam.Atom(nil)}
		}
		return jam.Cell{
			Head: jam.Atom("TIM"),
			Tail: jam.Cell{Head: encodeRange(l.Rel), Tail: encodeRange(l.Abs)},
		}
	case LockKindBRN:
		return jam.Atom("BRN")
	default:
		return jam.Atom(nil)
	}
}

// Satisfies reports whether height is within l's timelock feasibility
// window, given the note's origin_page. Only meaningful for TIM locks;
// PKH and BRN always report true (signature/burn feasibility is checked
// elsewhere).
func (l Lock) Satisfies(originPage, height uint32) bool {
	if l.Kind != LockKindTIM {
		return true
	}

	if l.Rel.Min != nil && height < originPage+*l.Rel.Min {
		return false
	}
	if l.Rel.Max != nil && height > originPage+*l.Rel.Max {
		return false
	}
	if l.Abs.Min != nil && height < *l.Abs.Min {
		return false
	}
	if l.Abs.Max != nil && height > *l.Abs.Max {
		return false
	}
	return true
}
