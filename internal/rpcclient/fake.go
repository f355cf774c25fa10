package rpcclient

import (
	"context"
	"sync"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
)

// Fake is an in-memory Handle for tests: the sync loop and send pipeline
// depend only on the Handle interface, so their tests substitute this
// instead of a live JSON-RPC connection.
type Fake struct {
	mu sync.Mutex

	NotesByFirstName map[digest.Digest][]note.Note
	NotesByPKH       map[digest.Digest][]note.Note
	BroadcastFunc    func(rawTxJam []byte) (digest.Digest, error)
	HealthErr        error

	Broadcasts [][]byte
}

// NewFake returns an empty Fake ready for a test to populate.
func NewFake() *Fake {
	return &Fake{
		NotesByFirstName: make(map[digest.Digest][]note.Note),
		NotesByPKH:       make(map[digest.Digest][]note.Note),
	}
}

func (f *Fake) QueryUTXOsByFirstName(_ context.Context, firstName digest.Digest) ([]note.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.NotesByFirstName[firstName], nil
}

func (f *Fake) QueryUTXOsByPKH(_ context.Context, pkh digest.Digest) ([]note.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.NotesByPKH[pkh], nil
}

func (f *Fake) Broadcast(_ context.Context, rawTxJam []byte) (digest.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Broadcasts = append(f.Broadcasts, rawTxJam)
	if f.BroadcastFunc != nil {
		return f.BroadcastFunc(rawTxJam)
	}
	return digest.HashNoun(rawTxJam), nil
}

func (f *Fake) HealthCheck(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.HealthErr
}
