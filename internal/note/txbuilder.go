package note

import (
	"strconv"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/jam"
	"github.com/nockwallet/walletengine/internal/keyhier"
	"github.com/nockwallet/walletengine/internal/signer"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// Input pairs a note with the spend condition that realises its lock
// (spec §4.4): the builder's contract requires
// FirstName(spend_condition.Hash()) == note.Name.First for every input.
type Input struct {
	Note           Note
	SpendCondition SpendCondition
}

// Seed is a transaction output specification (glossary "Seed"): a gift
// amount and the lock_root guarding it.
type Seed struct {
	Gift     uint64
	LockRoot digest.Digest
}

// UnsignedTx is a built-but-unsigned transaction body, ready for Sign.
type UnsignedTx struct {
	Inputs          []Input
	Outputs         []Seed
	Fee             uint64
	IncludeLockData bool
	TxID            digest.Digest
}

// SignedInput attaches a signature and signing public key to an input.
type SignedInput struct {
	Input
	PublicKey [keyhier.PublicKeySize]byte
	Signature signer.Signature
}

// RawTx is a fully signed transaction, ready to broadcast.
type RawTx struct {
	Inputs          []SignedInput
	Outputs         []Seed
	Fee             uint64
	IncludeLockData bool
	TxID            digest.Digest
}

// bytesPerWord is the word size (bytes) calc_fee charges against: the
// serialised body's size in words, rounded up, times fee_per_word (spec
// §4.4). Nock atoms are conventionally 64-bit words; no example in the
// corpus pins a different width for this engine's domain.
const bytesPerWord = 8

// CalcFee computes calc_fee(serialised_size, fee_per_word): the
// serialised size rounded up to a whole number of words, times the
// per-word rate.
func CalcFee(serializedSize int, feePerWord uint64) uint64 {
	words := uint64(serializedSize+bytesPerWord-1) / bytesPerWord
	return words * feePerWord
}

func (tx *UnsignedTx) encodeNoun(includeLockData bool) jam.Noun {
	inputItems := make([]jam.Noun, len(tx.Inputs))
	for i, in := range tx.Inputs {
		var lockNoun jam.Noun
		if includeLockData {
			lockNoun = in.SpendCondition.encodeNoun()
		} else {
			lockNoun = jam.Digest(in.SpendCondition.Hash())
		}
		inputItems[i] = jam.Cell{
			Head: jam.Digest(in.Note.Name.First),
			Tail: jam.Cell{Head: jam.Digest(in.Note.Name.Last), Tail: lockNoun},
		}
	}

	outputItems := make([]jam.Noun, len(tx.Outputs))
	for i, o := range tx.Outputs {
		outputItems[i] = jam.Cell{Head: jam.Uint64(o.Gift), Tail: jam.Digest(o.LockRoot)}
	}

	return jam.Cell{
		Head: jam.List(inputItems...),
		Tail: jam.Cell{Head: jam.List(outputItems...), Tail: jam.Uint64(tx.Fee)},
	}
}

// Build assembles an unsigned transaction body from a set of (note,
// spend-condition) inputs, a recipient, and an amount (spec §4.4
// algorithm). feeOverride, if non-nil, fixes the fee instead of computing
// it from the built body's serialised size. refundPKH receives any
// change; includeLockData controls whether full lock bytes are embedded
// per input (larger tx, higher fee) versus only lock roots.
func Build(inputs []Input, recipientPKH digest.Digest, amount int64, feeOverride *int64, refundPKH digest.Digest, includeLockData bool, feePerWord uint64) (*UnsignedTx, error) {
	if amount <= 0 {
		return nil, werrors.ErrInvalidAmount
	}
	if feeOverride != nil && *feeOverride < 0 {
		return nil, werrors.ErrInvalidFee
	}

	for _, in := range inputs {
		if FirstName(in.SpendCondition.Hash()) != in.Note.Name.First {
			return nil, werrors.WithDetails(werrors.ErrSpendConditionMismatch, map[string]string{
				"note_first_name": digest.Encode(in.Note.Name.First),
			})
		}
	}

	var sumInputs uint64
	for _, in := range inputs {
		sumInputs += in.Note.Assets
	}

	recipientSeed := Seed{Gift: uint64(amount), LockRoot: SimpleSpendCondition(recipientPKH).Hash()}

	var effectiveFee uint64
	if feeOverride != nil {
		effectiveFee = uint64(*feeOverride)
	} else {
		draft := &UnsignedTx{Inputs: inputs, Outputs: []Seed{recipientSeed}, Fee: 0}
		size := len(jam.Encode(draft.encodeNoun(includeLockData)))
		effectiveFee = CalcFee(size, feePerWord)
	}

	need := uint64(amount) + effectiveFee
	if sumInputs < need {
		return nil, werrors.WithDetails(werrors.ErrInsufficientFunds, map[string]string{
			"have": strconv.FormatUint(sumInputs, 10),
			"need": strconv.FormatUint(need, 10),
		})
	}

	outputs := []Seed{recipientSeed}
	if change := sumInputs - need; change > 0 {
		outputs = append(outputs, Seed{Gift: change, LockRoot: SimpleSpendCondition(refundPKH).Hash()})
	}

	tx := &UnsignedTx{
		Inputs:          inputs,
		Outputs:         outputs,
		Fee:             effectiveFee,
		IncludeLockData: includeLockData,
	}
	tx.TxID = digest.HashNoun(jam.Encode(tx.encodeNoun(includeLockData)))

	return tx, nil
}

// Sign finalises tx into a RawTx, producing one signature per input over
// tx_id under the corresponding private key, in input order.
func Sign(tx *UnsignedTx, privateKeys [][32]byte) (*RawTx, error) {
	if len(privateKeys) != len(tx.Inputs) {
		return nil, werrors.New(werrors.CodeInvalidParams, "one private key required per input")
	}

	signed := make([]SignedInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		pub, err := keyhier.PublicKeyFromPrivate(privateKeys[i])
		if err != nil {
			return nil, werrors.ErrSigningFailed
		}

		sig, err := signer.Sign(privateKeys[i], tx.TxID[:])
		if err != nil {
			return nil, werrors.ErrSigningFailed
		}

		signed[i] = SignedInput{Input: in, PublicKey: pub, Signature: sig}
	}

	return &RawTx{
		Inputs:          signed,
		Outputs:         tx.Outputs,
		Fee:             tx.Fee,
		IncludeLockData: tx.IncludeLockData,
		TxID:            tx.TxID,
	}, nil
}

// Validate re-checks sum-conservation, first-name commitments, signature
// validity, and (if height is non-nil) timelock feasibility against
// height. A nil height skips the timelock check (spec §4.4).
func Validate(tx *RawTx, height *uint32) error {
	var sumInputs, sumOutputs uint64
	for _, in := range tx.Inputs {
		sumInputs += in.Note.Assets
	}
	for _, o := range tx.Outputs {
		sumOutputs += o.Gift
	}
	if sumInputs != sumOutputs+tx.Fee {
		return werrors.New(werrors.CodeSpendConditionMismatch, "transaction does not conserve value")
	}

	for _, in := range tx.Inputs {
		if FirstName(in.SpendCondition.Hash()) != in.Note.Name.First {
			return werrors.WithDetails(werrors.ErrSpendConditionMismatch, map[string]string{
				"note_first_name": digest.Encode(in.Note.Name.First),
			})
		}

		if in.SpendCondition.HasBurn() {
			return werrors.ErrSpendConditionMismatch
		}

		if !signer.Verify(in.PublicKey, tx.TxID[:], in.Signature) {
			return werrors.ErrSigningFailed
		}

		signerPKH := keyhier.PKHFromPublicKey(in.PublicKey)
		authorized := false
		for _, h := range in.SpendCondition.PKHs() {
			if h == signerPKH {
				authorized = true
				break
			}
		}
		if !authorized {
			return werrors.ErrSpendConditionMismatch
		}

		if height != nil && !in.SpendCondition.FeasibleAt(in.Note.OriginPage, *height) {
			return werrors.New(werrors.CodeSpendConditionMismatch, "timelock not yet feasible at given height")
		}
	}

	return nil
}
