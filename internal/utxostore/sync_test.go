package utxostore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/internal/utxostore"
)

func TestApplySyncDiff_InsertsNewNotes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := utxostore.Open(dir, testPKH(1))
	require.NoError(t, err)

	diff := utxostore.DiffResult{
		NewUTXOs:    []utxostore.FetchedUTXO{{NoteID: noteID(1), Note: note.Note{Assets: 500}}},
		IsChangeMap: map[digest.Digest]string{},
	}
	require.NoError(t, s.ApplySyncDiff(diff, time.Now(), 30*time.Minute))

	assert.Equal(t, uint64(500), s.Balance())
}

func TestApplySyncDiff_ConfirmsTxWhenAllInputsSpent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := utxostore.Open(dir, testPKH(1))
	require.NoError(t, err)

	require.NoError(t, s.PutNote(utxostore.StoredNote{NoteID: noteID(1), State: utxostore.NoteInFlight, Note: note.Note{Assets: 100}, DiscoveredAt: time.Now(), PendingTxID: "tx-1"}))
	require.NoError(t, s.PutTransaction(utxostore.WalletTransaction{
		ID:           "tx-1",
		InputNoteIDs: []digest.Digest{noteID(1)},
		Status:       utxostore.TxBroadcastedUnconfirmed,
		CreatedAt:    time.Now(),
	}))

	diff := utxostore.DiffResult{NowSpent: []digest.Digest{noteID(1)}, IsChangeMap: map[digest.Digest]string{}}
	require.NoError(t, s.ApplySyncDiff(diff, time.Now(), 30*time.Minute))

	tx, err := s.GetTransaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, utxostore.TxConfirmed, tx.Status)
}

func TestApplySyncDiff_ExpiresStalePendingAndReleasesInputs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := utxostore.Open(dir, testPKH(1))
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, s.PutNote(utxostore.StoredNote{NoteID: noteID(1), State: utxostore.NoteInFlight, Note: note.Note{Assets: 100}, DiscoveredAt: old, PendingTxID: "tx-1"}))
	require.NoError(t, s.PutTransaction(utxostore.WalletTransaction{
		ID:           "tx-1",
		InputNoteIDs: []digest.Digest{noteID(1)},
		Status:       utxostore.TxBroadcastPending,
		CreatedAt:    old,
	}))

	diff := utxostore.DiffResult{IsChangeMap: map[digest.Digest]string{}}
	require.NoError(t, s.ApplySyncDiff(diff, time.Now(), 30*time.Minute))

	tx, err := s.GetTransaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, utxostore.TxExpired, tx.Status)

	available := s.AvailableNotes()
	require.Len(t, available, 1)
	assert.Equal(t, noteID(1), available[0].NoteID)
}

func TestApplySyncDiff_FreshPendingTxNotExpired(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := utxostore.Open(dir, testPKH(1))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.PutNote(utxostore.StoredNote{NoteID: noteID(1), State: utxostore.NoteInFlight, Note: note.Note{Assets: 100}, DiscoveredAt: now, PendingTxID: "tx-1"}))
	require.NoError(t, s.PutTransaction(utxostore.WalletTransaction{
		ID:           "tx-1",
		InputNoteIDs: []digest.Digest{noteID(1)},
		Status:       utxostore.TxBroadcastPending,
		CreatedAt:    now,
	}))

	diff := utxostore.DiffResult{IsChangeMap: map[digest.Digest]string{}}
	require.NoError(t, s.ApplySyncDiff(diff, now.Add(time.Minute), 30*time.Minute))

	tx, err := s.GetTransaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, utxostore.TxBroadcastPending, tx.Status)
}
