package note

import (
	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// absoluteMaturityDelta is the block-height offset candidate 4 adds to a
// note's origin_page (spec §4.4 candidate 4).
const absoluteMaturityDelta = uint32(100)

// DiscoverSpendCondition finds the spend condition realising n's
// name.first under the owner's pkh. A note's first-name commits to the
// lock it was created under but not to the specific structure that
// realises it, so the engine tries a closed set of four candidates in
// order and returns the first match (spec §4.4). This list is
// deliberately closed: extending it is a breaking change for callers
// relying on its exact order, and there is no silent fallback — a note
// satisfying none of the four fails with SpendConditionMismatch.
func DiscoverSpendCondition(n Note, pkh digest.Digest) (SpendCondition, error) {
	relMin := absoluteMaturityDelta
	absMin := n.OriginPage + absoluteMaturityDelta

	candidates := [...]SpendCondition{
		NewSpendCondition(Single(pkh)),
		NewSpendCondition(Single(pkh), Coinbase()),
		NewSpendCondition(Single(pkh), TIMLock(Range{Min: &relMin}, Range{})),
		NewSpendCondition(Single(pkh), TIMLock(Range{}, Range{Min: &absMin})),
	}

	for _, sc := range candidates {
		if FirstName(sc.Hash()) == n.Name.First {
			return sc, nil
		}
	}

	return SpendCondition{}, werrors.WithDetails(werrors.ErrSpendConditionMismatch, map[string]string{
		"note_first_name": digest.Encode(n.Name.First),
	})
}
