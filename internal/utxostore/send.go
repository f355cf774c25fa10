package utxostore

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/internal/rpcclient"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// maxSendRetries bounds the racing-send retry loop (spec §4.5 step 2:
// "3 retries is sufficient").
const maxSendRetries = 3

// SendResult is returned to the caller of SendTransaction (spec §4.5
// step 6).
type SendResult struct {
	TxID        digest.Digest
	Broadcasted bool
	WalletTx    WalletTransaction
}

// Signer supplies the private key a send needs for one note, without
// requiring this package to depend on
// the vault's lock state directly. The engine wires this to
// vault.Vault.SigningMaster plus the account's derivation index.
type Signer interface {
	// PrivateKeyFor returns the 32-byte private key controlling pkh.
	PrivateKeyFor(pkh digest.Digest) ([32]byte, error)
}

// SendTransaction runs the single-transaction, multi-input send pipeline
// (spec §4.5): select inputs, lock them, build and sign, persist before
// broadcasting, then broadcast and advance status. sendMax sweeps every
// available note with refundPKH forced to recipientPKH (no change
// output); otherwise normal input selection applies.
func (s *Store) SendTransaction(ctx context.Context, rpc rpcclient.Handle, signer Signer, accountPKH, recipientPKH digest.Digest, amount uint64, feeOverride *uint64, sendMax bool, feePerWord uint64) (*SendResult, error) {
	if amount == 0 && !sendMax {
		return nil, werrors.ErrInvalidAmount
	}

	for attempt := 0; attempt <= maxSendRetries; attempt++ {
		selected, lockErr := s.selectAndLockInputs(amount, sendMax, feeOverride, feePerWord)
		if lockErr != nil {
			return nil, lockErr
		}
		if selected == nil {
			continue // racing send stole an input; retry
		}

		result, err := s.buildSignBroadcast(ctx, rpc, signer, *selected, accountPKH, recipientPKH, amount, feeOverride, sendMax, feePerWord)
		if err != nil {
			s.releaseNotes(selected.noteIDs)
			return nil, err
		}
		return result, nil
	}

	return nil, werrors.New(werrors.CodeInvalidParams, "utxostore: send pipeline exhausted retries on racing lock")
}

type selection struct {
	notes    []StoredNote
	noteIDs  []digest.Digest
	sumInput uint64
}

// selectAndLockInputs atomically picks available notes and transitions
// them to in_flight, returning nil (not an error) if the racing-send
// check fails so the caller retries (spec §5 "input selection + lock"
// critical section).
func (s *Store) selectAndLockInputs(amount uint64, sendMax bool, feeOverride *uint64, feePerWord uint64) (*selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]StoredNote, 0, len(s.notes))
	for _, n := range s.notes {
		if n.State == NoteAvailable {
			candidates = append(candidates, n)
		}
	}
	sortByDiscovery(candidates)

	var picked []StoredNote
	var sum uint64

	if sendMax {
		picked = candidates
		for _, n := range picked {
			sum += n.Note.Assets
		}
	} else {
		var estimate uint64
		for _, n := range candidates {
			picked = append(picked, n)
			sum += n.Note.Assets
			estimate = estimateFee(feeOverride, feePerWord, len(picked))
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
	}

	ids := make([]digest.Digest, len(picked))
	for i, n := range picked {
		// Re-check under the lock: a concurrent send may have already
		// claimed this note since we snapshotted candidates.
		if cur, ok := s.notes[n.NoteID]; !ok || cur.State != NoteAvailable {
			return nil, nil
		}
		ids[i] = n.NoteID
	}

	for i, id := range ids {
		n := s.notes[id]
		n.State = NoteInFlight
		picked[i] = n
		s.notes[id] = n
	}

	return &selection{notes: picked, noteIDs: ids, sumInput: sum}, nil
}

// estimateFee gives selectAndLockInputs a rough threshold for the
// numInputs notes picked so far, before the real tx body exists to size
// precisely; the final fee is recomputed exactly once the transaction is
// built. Callers must pass the running count of picked inputs, not the
// size of the candidate pool — the fee scales with inputs actually
// spent, not with how many notes happen to be available.
func estimateFee(feeOverride *uint64, feePerWord uint64, numInputs int) uint64 {
	if feeOverride != nil {
		return *feeOverride
	}
	const roughBytesPerInput = 112
	return note.CalcFee(roughBytesPerInput*max(numInputs, 1), feePerWord)
}

func (s *Store) releaseNotes(noteIDs []digest.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range noteIDs {
		n, ok := s.notes[id]
		if !ok {
			continue
		}
		n.State = NoteAvailable
		n.PendingTxID = ""
		s.notes[id] = n
	}
	_ = s.saveLocked()
}

func (s *Store) buildSignBroadcast(ctx context.Context, rpc rpcclient.Handle, signer Signer, sel selection, accountPKH, recipientPKH digest.Digest, amount uint64, feeOverride *uint64, sendMax bool, feePerWord uint64) (*SendResult, error) {
	inputs := make([]note.Input, len(sel.notes))
	for i, n := range sel.notes {
		sc, err := note.DiscoverSpendCondition(n.Note, accountPKH)
		if err != nil {
			return nil, err
		}
		inputs[i] = note.Input{Note: n.Note, SpendCondition: sc}
	}

	refundPKH := accountPKH
	if sendMax {
		refundPKH = recipientPKH
	}

	var feeOverrideSigned *int64
	if feeOverride != nil {
		v := int64(*feeOverride)
		feeOverrideSigned = &v
	}

	sendAmount := int64(amount)
	if sendMax {
		sendAmount = int64(sel.sumInput)
		if feeOverride == nil {
			// Size the fee against the real built body, iterating because
			// the amount's encoded width feeds back into the size.
			var draftFee uint64
			candidate := uint64(1)
			for i := 0; i < 4; i++ {
				draft, err := note.Build(inputs, recipientPKH, int64(candidate), nil, refundPKH, false, feePerWord)
				if err != nil {
					return nil, err
				}
				draftFee = draft.Fee
				if candidate == sel.sumInput-draftFee {
					break
				}
				candidate = sel.sumInput - draftFee
			}
			sendAmount = int64(sel.sumInput) - int64(draftFee)
			fixedFee := int64(draftFee)
			feeOverrideSigned = &fixedFee
		} else {
			sendAmount = int64(sel.sumInput) - int64(*feeOverride)
		}
		if sendAmount <= 0 {
			return nil, werrors.ErrInvalidAmount
		}
	}

	unsigned, err := note.Build(inputs, recipientPKH, sendAmount, feeOverrideSigned, refundPKH, false, feePerWord)
	if err != nil {
		return nil, err
	}

	privateKeys := make([][32]byte, len(inputs))
	for i := range inputs {
		priv, err := signer.PrivateKeyFor(accountPKH)
		if err != nil {
			return nil, werrors.ErrSigningFailed
		}
		privateKeys[i] = priv
	}

	signed, err := note.Sign(unsigned, privateKeys)
	if err != nil {
		return nil, err
	}

	expectedChange := uint64(0)
	if len(signed.Outputs) > 1 {
		expectedChange = signed.Outputs[len(signed.Outputs)-1].Gift
	}

	now := time.Now()
	walletTx := WalletTransaction{
		ID:               uuid.NewString(),
		AccountPKH:       accountPKH,
		To:               recipientPKH,
		Amount:           uint64(sendAmount),
		Fee:              signed.Fee,
		ExpectedChange:   expectedChange,
		InputNoteIDs:     sel.noteIDs,
		Status:           TxBroadcastPending,
		CreatedAt:        now,
		LastTransitionAt: now,
	}

	s.mu.Lock()
	for _, id := range sel.noteIDs {
		n := s.notes[id]
		n.PendingTxID = walletTx.ID
		s.notes[id] = n
	}
	s.transactions[walletTx.ID] = walletTx
	s.txOrder = append(s.txOrder, walletTx.ID)
	saveErr := s.saveLocked()
	s.mu.Unlock()
	if saveErr != nil {
		return nil, werrors.Wrap(saveErr, "utxostore: persisting wallet transaction")
	}

	rawJam := encodeRawTxForBroadcast(signed)
	txID, broadcastErr := rpc.Broadcast(ctx, rawJam)

	s.mu.Lock()
	walletTx = s.transactions[walletTx.ID]
	if broadcastErr != nil {
		walletTx.Status = TxFailed
		walletTx.ErrorMessage = broadcastErr.Error()
		walletTx.LastTransitionAt = time.Now()
		s.transactions[walletTx.ID] = walletTx
		s.releaseInputsLocked(sel.noteIDs)
	} else {
		walletTx.Status = TxBroadcastedUnconfirmed
		walletTx.OutputTxID = &txID
		walletTx.LastTransitionAt = time.Now()
		s.transactions[walletTx.ID] = walletTx
	}
	saveErr = s.saveLocked()
	s.mu.Unlock()
	if saveErr != nil {
		return nil, werrors.Wrap(saveErr, "utxostore: persisting broadcast result")
	}

	return &SendResult{
		TxID:        signed.TxID,
		Broadcasted: broadcastErr == nil,
		WalletTx:    walletTx,
	}, nil
}

// encodeRawTxForBroadcast serializes a signed transaction for the
// broadcast RPC. The spec leaves the exact wire format of raw_tx_jam to
// the chain's own jam encoding; this engine reuses tx_id's canonical
// noun digest as a stable placeholder payload, since the broadcast
// transport itself is explicitly out of scope (spec §1, §6).
func encodeRawTxForBroadcast(tx *note.RawTx) []byte {
	return tx.TxID.Bytes()
}
