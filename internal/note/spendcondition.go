package note

import (
	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/jam"
)

// SpendCondition is a conjunction of lock primitives: all must be
// satisfied to spend the note it guards (spec §3).
type SpendCondition struct {
	Locks []Lock
}

// NewSpendCondition builds a conjunction from the given locks, in order.
func NewSpendCondition(locks ...Lock) SpendCondition {
	return SpendCondition{Locks: locks}
}

// SimpleSpendCondition is PKH(1,[pkh]): the standard single-signature
// spend condition for a plain note.
func SimpleSpendCondition(pkh digest.Digest) SpendCondition {
	return NewSpendCondition(Single(pkh))
}

// CoinbaseSpendCondition is PKH(1,[pkh]) ∧ TIM(coinbase()): the spend
// condition mining-reward notes carry.
func CoinbaseSpendCondition(pkh digest.Digest) SpendCondition {
	return NewSpendCondition(Single(pkh), Coinbase())
}

func (sc SpendCondition) encodeNoun() jam.Noun {
	items := make([]jam.Noun, len(sc.Locks))
	for i, l := range sc.Locks {
		items[i] = l.encodeNoun()
	}
	return jam.List(items...)
}

// Hash computes lock_root = hash(spend_condition): the canonical
// noun-encoding of the lock conjunction, hashed. This is the value
// FirstName commits to.
func (sc SpendCondition) Hash() digest.Digest {
	return digest.HashNoun(jam.Encode(sc.encodeNoun()))
}

// PKHs returns the set of public-key hashes across every PKH lock in sc,
// used by Validate to check an attached signature's key is authorized.
func (sc SpendCondition) PKHs() []digest.Digest {
	var out []digest.Digest
	for _, l := range sc.Locks {
		if l.Kind == LockKindPKH {
			out = append(out, l.Hashes...)
		}
	}
	return out
}

// RequiredSignatures is the sum of each PKH lock's m threshold: the
// number of valid signatures this spend condition demands.
func (sc SpendCondition) RequiredSignatures() int {
	total := 0
	for _, l := range sc.Locks {
		if l.Kind == LockKindPKH {
			total += l.M
		}
	}
	return total
}

// HasBurn reports whether sc contains an unconditional burn lock, making
// it permanently unspendable.
func (sc SpendCondition) HasBurn() bool {
	for _, l := range sc.Locks {
		if l.Kind == LockKindBRN {
			return true
		}
	}
	return false
}

// FeasibleAt reports whether every timelock in sc is satisfied at height,
// given the note's origin_page.
func (sc SpendCondition) FeasibleAt(originPage, height uint32) bool {
	for _, l := range sc.Locks {
		if !l.Satisfies(originPage, height) {
			return false
		}
	}
	return true
}
