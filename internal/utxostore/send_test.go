package utxostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/keyhier"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/internal/rpcclient"
	"github.com/nockwallet/walletengine/internal/utxostore"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fakeSigner struct {
	key *keyhier.ExtendedKey
}

func (f fakeSigner) PrivateKeyFor(_ digest.Digest) ([32]byte, error) {
	return *f.key.PrivateKey, nil
}

func newKey(t *testing.T, index uint32) *keyhier.ExtendedKey {
	t.Helper()
	master, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	child, err := master.DeriveChild(index)
	require.NoError(t, err)
	return child
}

func seedAvailableNote(t *testing.T, s *utxostore.Store, ownerPKH digest.Digest, assets uint64) digest.Digest {
	t.Helper()
	sc := note.SimpleSpendCondition(ownerPKH)
	n := note.Note{Name: note.Name{First: note.FirstName(sc.Hash()), Last: ownerPKH}, Assets: assets}
	id := n.ID()
	require.NoError(t, s.PutNote(utxostore.StoredNote{
		NoteID:       id,
		Note:         n,
		State:        utxostore.NoteAvailable,
		DiscoveredAt: time.Now(),
	}))
	return id
}

func TestSendTransaction_HappyPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	owner := newKey(t, 0)
	recipient := newKey(t, 1)

	s, err := utxostore.Open(dir, owner.PKH())
	require.NoError(t, err)
	seedAvailableNote(t, s, owner.PKH(), 10_000_000)

	rpc := rpcclient.NewFake()
	result, err := s.SendTransaction(context.Background(), rpc, fakeSigner{key: owner}, owner.PKH(), recipient.PKH(), 10_000, nil, false, 32_768)
	require.NoError(t, err)
	assert.True(t, result.Broadcasted)
	assert.Equal(t, utxostore.TxBroadcastedUnconfirmed, result.WalletTx.Status)
	assert.Len(t, rpc.Broadcasts, 1)

	available := s.AvailableNotes()
	assert.Empty(t, available)
}

func TestSendTransaction_InsufficientFunds(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	owner := newKey(t, 0)
	recipient := newKey(t, 1)

	s, err := utxostore.Open(dir, owner.PKH())
	require.NoError(t, err)
	seedAvailableNote(t, s, owner.PKH(), 1_000)

	rpc := rpcclient.NewFake()
	_, err = s.SendTransaction(context.Background(), rpc, fakeSigner{key: owner}, owner.PKH(), recipient.PKH(), 100_000, nil, false, 32_768)
	require.Error(t, err)
	assert.ErrorIs(t, err, werrors.ErrInsufficientFunds)
}

func TestSendTransaction_BroadcastFailureReleasesInputs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	owner := newKey(t, 0)
	recipient := newKey(t, 1)

	s, err := utxostore.Open(dir, owner.PKH())
	require.NoError(t, err)
	seedAvailableNote(t, s, owner.PKH(), 10_000_000)

	rpc := rpcclient.NewFake()
	rpc.BroadcastFunc = func(_ []byte) (digest.Digest, error) {
		return digest.Digest{}, assertErr
	}

	result, err := s.SendTransaction(context.Background(), rpc, fakeSigner{key: owner}, owner.PKH(), recipient.PKH(), 10_000, nil, false, 32_768)
	require.NoError(t, err)
	assert.False(t, result.Broadcasted)
	assert.Equal(t, utxostore.TxFailed, result.WalletTx.Status)

	available := s.AvailableNotes()
	require.Len(t, available, 1)
}

func TestSendTransaction_SendMaxSweepsAllNotes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	owner := newKey(t, 0)
	recipient := newKey(t, 1)

	s, err := utxostore.Open(dir, owner.PKH())
	require.NoError(t, err)
	seedAvailableNote(t, s, owner.PKH(), 10_000_000)

	rpc := rpcclient.NewFake()
	result, err := s.SendTransaction(context.Background(), rpc, fakeSigner{key: owner}, owner.PKH(), recipient.PKH(), 0, nil, true, 32_768)
	require.NoError(t, err)
	assert.True(t, result.Broadcasted)
	assert.Less(t, result.WalletTx.Amount, uint64(10_000_000))
}

func TestSendTransaction_RejectsZeroAmountWithoutSendMax(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	owner := newKey(t, 0)
	recipient := newKey(t, 1)

	s, err := utxostore.Open(dir, owner.PKH())
	require.NoError(t, err)

	_, err = s.SendTransaction(context.Background(), rpcclient.NewFake(), fakeSigner{key: owner}, owner.PKH(), recipient.PKH(), 0, nil, false, 32_768)
	require.Error(t, err)
	assert.ErrorIs(t, err, werrors.ErrInvalidAmount)
}

// TestSendTransaction_ManyDustNotesDoNotInflateFeeEstimate seeds a wallet
// where one note easily covers the send but the candidate pool also holds
// many unrelated dust notes. The pre-selection fee estimate must scale
// with the inputs actually picked (here, one), not with how many notes
// happen to be sitting in the store — otherwise a large pool inflates the
// selection threshold past what the wallet truly has available.
func TestSendTransaction_ManyDustNotesDoNotInflateFeeEstimate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	owner := newKey(t, 0)
	recipient := newKey(t, 1)

	s, err := utxostore.Open(dir, owner.PKH())
	require.NoError(t, err)

	seedAvailableNote(t, s, owner.PKH(), 1_000_000)
	for i := 0; i < 1000; i++ {
		seedAvailableNote(t, s, owner.PKH(), 1)
	}

	rpc := rpcclient.NewFake()
	result, err := s.SendTransaction(context.Background(), rpc, fakeSigner{key: owner}, owner.PKH(), recipient.PKH(), 500_000, nil, false, 50)
	require.NoError(t, err)
	assert.True(t, result.Broadcasted)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var assertErr = simpleErr("broadcast rejected")
