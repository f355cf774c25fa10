package note

import (
	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/jam"
)

// FirstName computes the commitment written into note.name.first:
// hash_noun(noun_encode([true, lock_root])). The boolean prefix is
// required by the v1 algorithm and must not be dropped (spec §4.4).
func FirstName(lockRoot digest.Digest) digest.Digest {
	n := jam.List(jam.Bool(true), jam.Digest(lockRoot))
	return digest.HashNoun(jam.Encode(n))
}

// SimpleFirstName is simple_first_name(pkh): the first-name a plain,
// single-signature note carries. Used by the sync loop to query balances.
func SimpleFirstName(pkh digest.Digest) digest.Digest {
	return FirstName(SimpleSpendCondition(pkh).Hash())
}

// CoinbaseFirstName is coinbase_first_name(pkh): the first-name a mining
// reward note carries.
func CoinbaseFirstName(pkh digest.Digest) digest.Digest {
	return FirstName(CoinbaseSpendCondition(pkh).Hash())
}
