package utxostore

import (
	"strconv"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// EstimateTransactionFee performs input selection and tx-size
// calculation without signing, broadcasting, or locking any note (spec
// §4.5: "used by the UI").
func (s *Store) EstimateTransactionFee(accountPKH, recipientPKH digest.Digest, amount uint64, feePerWord uint64) (uint64, error) {
	available := s.AvailableNotes()

	inputs, err := selectInputsForEstimate(available, accountPKH, amount, feePerWord)
	if err != nil {
		return 0, err
	}

	unsigned, err := note.Build(inputs, recipientPKH, int64(amount), nil, accountPKH, false, feePerWord)
	if err != nil {
		return 0, err
	}
	return unsigned.Fee, nil
}

// EstimateMaxSend iterates fee calculation to a fixed point starting
// from all-available inputs (spec §4.5: "monotone under size growth"),
// returning the largest amount sendable with refund_pkh == recipient
// (no change output, as a real send_max would produce).
func (s *Store) EstimateMaxSend(accountPKH, recipientPKH digest.Digest, feePerWord uint64) (amount uint64, fee uint64, err error) {
	available := s.AvailableNotes()
	if len(available) == 0 {
		return 0, 0, werrors.WithDetails(werrors.ErrInsufficientFunds, map[string]string{"have": "0", "need": "1"})
	}

	inputs := make([]note.Input, 0, len(available))
	var sumInputs uint64
	for _, n := range available {
		sc, discErr := note.DiscoverSpendCondition(n.Note, accountPKH)
		if discErr != nil {
			continue
		}
		inputs = append(inputs, note.Input{Note: n.Note, SpendCondition: sc})
		sumInputs += n.Note.Assets
	}
	if len(inputs) == 0 {
		return 0, 0, werrors.ErrSpendConditionMismatch
	}

	// Fixed point: the fee depends on the tx size, which depends on the
	// amount only through its encoded width, so two iterations suffice in
	// practice; the loop guards against the rare extra word boundary.
	// The first probe sends 1 nick: probing with the whole balance leaves
	// no room for any positive fee and Build rejects it.
	candidateAmount := uint64(1)
	for i := 0; i < 4; i++ {
		if candidateAmount == 0 {
			return 0, 0, werrors.WithDetails(werrors.ErrInsufficientFunds, map[string]string{"have": "0", "need": "1"})
		}
		unsigned, buildErr := note.Build(inputs, recipientPKH, int64(candidateAmount), nil, recipientPKH, false, feePerWord)
		if buildErr != nil {
			return 0, 0, buildErr
		}
		nextAmount := sumInputs - unsigned.Fee
		if nextAmount == candidateAmount {
			return nextAmount, unsigned.Fee, nil
		}
		candidateAmount = nextAmount
	}

	return 0, 0, werrors.New(werrors.CodeInvalidParams, "utxostore: max-send fee estimate did not converge")
}

func selectInputsForEstimate(available []StoredNote, accountPKH digest.Digest, amount uint64, feePerWord uint64) ([]note.Input, error) {
	var inputs []note.Input
	var sum uint64
	var estimate uint64

	for _, n := range available {
		sc, err := note.DiscoverSpendCondition(n.Note, accountPKH)
		if err != nil {
			continue
		}
		inputs = append(inputs, note.Input{Note: n.Note, SpendCondition: sc})
		sum += n.Note.Assets
		estimate = estimateFee(nil, feePerWord, len(inputs))
		if sum >= amount+estimate {
			break
		}
	}

	if sum < amount+estimate {
		return nil, werrors.WithDetails(werrors.ErrInsufficientFunds, map[string]string{
			"have": strconv.FormatUint(sum, 10),
			"need": strconv.FormatUint(amount+estimate, 10),
		})
	}

	return inputs, nil
}
