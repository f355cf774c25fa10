package utxostore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/fileutil"
)

// ErrNoteNotFound indicates a note_id not present in the store.
var ErrNoteNotFound = errors.New("utxostore: note not found")

// ErrTxNotFound indicates a wallet_tx_id not present in the store.
var ErrTxNotFound = errors.New("utxostore: wallet transaction not found")

const (
	storeFileName  = "store.json"
	storeFilePerm  = 0o600
	storeDirPerm   = 0o700
	currentVersion = 1
)

// storeFile is the on-disk shape for one account's UTXO store (spec §6:
// `utxoStore/<pkh>/notes` and `utxoStore/<pkh>/transactions`), generalized
// from the teacher's single UTXOFile{Version, UpdatedAt, UTXOs, Addresses}.
type storeFile struct {
	Version      int                  `json:"version"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Notes        []StoredNote         `json:"notes"`
	Transactions []WalletTransaction  `json:"transactions"`
}

// Store manages persistence for a single account's notes and wallet
// transactions, the way the teacher's Store manages one wallet's UTXOs —
// one JSON file per account, guarded by a single RWMutex, atomic writes.
type Store struct {
	dir string
	pkh digest.Digest
	mu  sync.RWMutex

	notes        map[digest.Digest]StoredNote
	transactions map[string]WalletTransaction
	txOrder      []string // preserves insertion order for expected-change first-in-wins
}

// Open loads (or initializes) the store for account pkh rooted at dir.
func Open(dir string, pkh digest.Digest) (*Store, error) {
	s := &Store{
		dir:          filepath.Join(dir, "utxoStore", digest.Encode(pkh)),
		pkh:          pkh,
		notes:        make(map[digest.Digest]StoredNote),
		transactions: make(map[string]WalletTransaction),
	}

	var sf storeFile
	err := fileutil.ReadJSON(s.filePath(), &sf)
	switch {
	case err == nil:
		for _, n := range sf.Notes {
			s.notes[n.NoteID] = n
		}
		for _, tx := range sf.Transactions {
			s.transactions[tx.ID] = tx
			s.txOrder = append(s.txOrder, tx.ID)
		}
	case os.IsNotExist(err):
		// Fresh account, nothing to load.
	default:
		// Corrupt store: quarantine and start empty, triggering a full
		// re-sync (spec §7: "store corruption detected at load ... leaves
		// the store empty and triggers a full re-sync").
		_ = fileutil.QuarantineCorrupt(s.filePath())
	}

	return s, nil
}

func (s *Store) filePath() string {
	return filepath.Join(s.dir, storeFileName)
}

// saveLocked persists the current in-memory state. Caller must hold mu.
func (s *Store) saveLocked() error {
	if err := os.MkdirAll(s.dir, storeDirPerm); err != nil {
		return fmt.Errorf("utxostore: creating directory: %w", err)
	}

	sf := storeFile{
		Version:      currentVersion,
		UpdatedAt:    time.Now(),
		Notes:        make([]StoredNote, 0, len(s.notes)),
		Transactions: make([]WalletTransaction, 0, len(s.txOrder)),
	}
	for _, n := range s.notes {
		sf.Notes = append(sf.Notes, n)
	}
	for _, id := range s.txOrder {
		sf.Transactions = append(sf.Transactions, s.transactions[id])
	}

	return fileutil.WriteJSONAtomic(s.filePath(), sf, storeFilePerm)
}

// Notes returns a snapshot of all tracked notes.
func (s *Store) Notes() []StoredNote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredNote, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	return out
}

// AvailableNotes returns notes in state Available, in a stable order
// (insertion order by discovered_at) for greedy input selection (spec
// §4.5 send pipeline step 1).
func (s *Store) AvailableNotes() []StoredNote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredNote, 0, len(s.notes))
	for _, n := range s.notes {
		if n.State == NoteAvailable {
			out = append(out, n)
		}
	}
	sortByDiscovery(out)
	return out
}

func sortByDiscovery(notes []StoredNote) {
	for i := 1; i < len(notes); i++ {
		for j := i; j > 0 && notes[j].DiscoveredAt.Before(notes[j-1].DiscoveredAt); j-- {
			notes[j], notes[j-1] = notes[j-1], notes[j]
		}
	}
}

// Balance sums the assets of all Available notes (spec §6:
// get_balance_from_store, "honours in-flight" by excluding it).
func (s *Store) Balance() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, n := range s.notes {
		if n.State == NoteAvailable {
			total += n.Note.Assets
		}
	}
	return total
}

// Transactions returns a snapshot of all wallet transactions in creation
// order.
func (s *Store) Transactions() []WalletTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WalletTransaction, 0, len(s.txOrder))
	for _, id := range s.txOrder {
		out = append(out, s.transactions[id])
	}
	return out
}

// PutNote inserts or replaces a note and persists.
func (s *Store) PutNote(n StoredNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.NoteID] = n
	return s.saveLocked()
}

// PutTransaction inserts or replaces a wallet transaction and persists.
func (s *Store) PutTransaction(tx WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.ID]; !exists {
		s.txOrder = append(s.txOrder, tx.ID)
	}
	s.transactions[tx.ID] = tx
	return s.saveLocked()
}

// GetTransaction returns a wallet transaction by ID.
func (s *Store) GetTransaction(id string) (WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return WalletTransaction{}, ErrTxNotFound
	}
	return tx, nil
}
