package rpcclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/internal/rpcclient"
)

var _ rpcclient.Handle = (*rpcclient.Client)(nil)
var _ rpcclient.Handle = (*rpcclient.Fake)(nil)

func testDigest(b byte) digest.Digest {
	var d digest.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

func TestFake_QueryUTXOsByFirstName(t *testing.T) {
	t.Parallel()
	fake := rpcclient.NewFake()
	fn := testDigest(1)
	fake.NotesByFirstName[fn] = []note.Note{{Assets: 100}}

	notes, err := fake.QueryUTXOsByFirstName(context.Background(), fn)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, uint64(100), notes[0].Assets)
}

func TestFake_Broadcast_RecordsAndReturnsTxID(t *testing.T) {
	t.Parallel()
	fake := rpcclient.NewFake()
	raw := []byte("raw tx jam bytes")

	txID, err := fake.Broadcast(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, digest.HashNoun(raw), txID)
	assert.Equal(t, [][]byte{raw}, fake.Broadcasts)
}

func TestFake_Broadcast_CustomFunc(t *testing.T) {
	t.Parallel()
	fake := rpcclient.NewFake()
	wantErr := assert.AnError
	fake.BroadcastFunc = func([]byte) (digest.Digest, error) { return digest.Digest{}, wantErr }

	_, err := fake.Broadcast(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, wantErr)
}

func TestFake_HealthCheck(t *testing.T) {
	t.Parallel()
	fake := rpcclient.NewFake()
	assert.NoError(t, fake.HealthCheck(context.Background()))

	fake.HealthErr = assert.AnError
	assert.ErrorIs(t, fake.HealthCheck(context.Background()), assert.AnError)
}
