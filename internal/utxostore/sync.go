package utxostore

import (
	"time"

	"github.com/nockwallet/walletengine/internal/digest"
)

// ApplySyncDiff reconciles a freshly computed DiffResult into the store
// (spec §4.5 "Sync reconciliation"): inserts new notes, marks vanished
// ones spent, advances wallet-transaction status when all of a pending
// tx's inputs are now spent, and expires stale pending transactions.
// Grounded on the teacher's ReconcileWithChain, whose "mark UTXOs not
// seen on chain as spent" step this generalizes into the in_flight ->
// spent transition paired with wallet-transaction confirmation, which
// the teacher's address-based model had no equivalent for.
func (s *Store) ApplySyncDiff(diff DiffResult, now time.Time, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fetched := range diff.NewUTXOs {
		walletTxID, isChange := diff.IsChangeMap[fetched.NoteID]
		s.notes[fetched.NoteID] = StoredNote{
			NoteID:         fetched.NoteID,
			Note:           fetched.Note,
			State:          NoteAvailable,
			DiscoveredAt:   now,
			IsChange:       isChange,
			SourceWalletTx: walletTxID,
		}
	}

	nowSpent := make(map[digest.Digest]bool, len(diff.NowSpent))
	for _, id := range diff.NowSpent {
		nowSpent[id] = true
		if n, ok := s.notes[id]; ok {
			n.State = NoteSpent
			s.notes[id] = n
		}
	}

	for id, tx := range s.transactions {
		if !tx.Status.isPending() {
			continue
		}

		if allSpent(tx.InputNoteIDs, nowSpent) {
			tx.Status = TxConfirmed
			tx.LastTransitionAt = now
			s.linkChangeOutputs(&tx, diff.IsChangeMap)
			s.transactions[id] = tx
			continue
		}

		if now.Sub(tx.CreatedAt) > expiry {
			tx.Status = TxExpired
			tx.LastTransitionAt = now
			s.transactions[id] = tx
			s.releaseInputsLocked(tx.InputNoteIDs)
		}
	}

	return s.saveLocked()
}

func allSpent(noteIDs []digest.Digest, spent map[digest.Digest]bool) bool {
	if len(noteIDs) == 0 {
		return false
	}
	for _, id := range noteIDs {
		if !spent[id] {
			return false
		}
	}
	return true
}

func (s *Store) linkChangeOutputs(tx *WalletTransaction, isChangeMap map[digest.Digest]string) {
	for noteID, walletTxID := range isChangeMap {
		if walletTxID != tx.ID {
			continue
		}
		if n, ok := s.notes[noteID]; ok {
			n.SourceWalletTx = tx.ID
			n.IsChange = true
			s.notes[noteID] = n
		}
	}
}

// releaseInputsLocked transitions in_flight notes back to available when
// their owning transaction expires. Caller must hold mu.
func (s *Store) releaseInputsLocked(noteIDs []digest.Digest) {
	for _, id := range noteIDs {
		n, ok := s.notes[id]
		if !ok || n.State != NoteInFlight {
			continue
		}
		n.State = NoteAvailable
		n.PendingTxID = ""
		s.notes[id] = n
	}
}
