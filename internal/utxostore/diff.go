package utxostore

import "github.com/nockwallet/walletengine/internal/digest"

// DiffResult is the output of Diff (spec §4.5): the new UTXOs to insert,
// the note IDs still present that were already tracked, the note IDs no
// longer on chain, and which of the new UTXOs are change outputs of a
// wallet-initiated send.
type DiffResult struct {
	NewUTXOs     []FetchedUTXO
	StillUnspent []digest.Digest
	NowSpent     []digest.Digest
	IsChangeMap  map[digest.Digest]string // note_id -> wallet_tx_id
}

// Diff compares the local note set against a freshly fetched chain
// snapshot, classifying each side per spec §4.5's four-step algorithm.
// Grounded on the teacher's ReconcileWithChain — "mark UTXOs not seen on
// chain as spent" / "new UTXO" classification — generalized from a flat
// spent/unspent UTXO model to the note model's in_flight state and the
// expected-change matching the teacher's address-metadata reconciliation
// never needed.
func Diff(localNotes []StoredNote, fetchedUTXOs []FetchedUTXO, outgoingTxs []WalletTransaction) DiffResult {
	localMap := make(map[digest.Digest]StoredNote, len(localNotes))
	for _, n := range localNotes {
		localMap[n.NoteID] = n
	}

	fetchedMap := make(map[digest.Digest]FetchedUTXO, len(fetchedUTXOs))
	for _, f := range fetchedUTXOs {
		fetchedMap[f.NoteID] = f
	}

	// expectedChangeByAmount: duplicate amounts resolved first-in-wins by
	// tx-creation order (spec §4.5 step 2, and §9's documented ambiguity
	// note on this heuristic).
	expectedChangeByAmount := make(map[uint64]string)
	for _, tx := range outgoingTxs {
		if tx.ExpectedChange == 0 {
			continue
		}
		if _, exists := expectedChangeByAmount[tx.ExpectedChange]; !exists {
			expectedChangeByAmount[tx.ExpectedChange] = tx.ID
		}
	}

	result := DiffResult{IsChangeMap: make(map[digest.Digest]string)}

	for noteID, fetched := range fetchedMap {
		local, tracked := localMap[noteID]
		switch {
		case !tracked:
			result.NewUTXOs = append(result.NewUTXOs, fetched)
			if walletTxID, ok := expectedChangeByAmount[fetched.Note.Assets]; ok {
				result.IsChangeMap[noteID] = walletTxID
				delete(expectedChangeByAmount, fetched.Note.Assets) // single-use match
			}
		case local.State != NoteSpent:
			result.StillUnspent = append(result.StillUnspent, noteID)
		}
	}

	for noteID, local := range localMap {
		if local.State == NoteSpent {
			continue
		}
		if _, onChain := fetchedMap[noteID]; !onChain {
			result.NowSpent = append(result.NowSpent, noteID)
		}
	}

	return result
}
