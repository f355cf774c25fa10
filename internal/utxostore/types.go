// Package utxostore persists the local view of an account's notes and
// wallet-initiated transactions, and reconciles that view against the
// chain (spec §4.5). It is generalized from the teacher's Store — a
// mutex-guarded in-memory map backed by one JSON file per wallet — to the
// Nockchain UTXO/note model and its wallet-transaction lifecycle instead
// of the teacher's BSV/ETH UTXO-and-address-metadata model.
package utxostore

import (
	"time"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
)

// NoteState is a StoredNote's local lifecycle state (spec §3).
type NoteState string

const (
	NoteAvailable NoteState = "available"
	NoteInFlight  NoteState = "in_flight"
	NoteSpent     NoteState = "spent"
)

// StoredNote is a note plus local state (spec §3). NoteID is stable
// across syncs and is the store's primary key.
type StoredNote struct {
	NoteID       digest.Digest `json:"note_id"`
	Note         note.Note     `json:"note"`
	State        NoteState     `json:"state"`
	PendingTxID  string        `json:"pending_tx_id,omitempty"`
	DiscoveredAt time.Time     `json:"discovered_at"`
	IsChange     bool          `json:"is_change,omitempty"`
	SourceWalletTx string      `json:"source_wallet_tx,omitempty"`
}

// TxStatus is a WalletTransaction's lifecycle state (spec §3).
type TxStatus string

const (
	TxCreated                TxStatus = "created"
	TxBroadcastPending       TxStatus = "broadcast_pending"
	TxBroadcastedUnconfirmed TxStatus = "broadcasted_unconfirmed"
	TxConfirmed              TxStatus = "confirmed"
	TxFailed                 TxStatus = "failed"
	TxExpired                TxStatus = "expired"
)

// isPending reports whether s is one of the TxStatus values the sync loop
// still tracks for confirmation or expiry (spec §4.5).
func (s TxStatus) isPending() bool {
	return s == TxBroadcastPending || s == TxBroadcastedUnconfirmed
}

// WalletTransaction records one send initiated by this wallet (spec §3).
type WalletTransaction struct {
	ID               string        `json:"id"`
	AccountPKH       digest.Digest `json:"account_pkh"`
	To               digest.Digest `json:"to"`
	Amount           uint64        `json:"amount"`
	Fee              uint64        `json:"fee"`
	ExpectedChange   uint64        `json:"expected_change"`
	InputNoteIDs     []digest.Digest `json:"input_note_ids"`
	OutputTxID       *digest.Digest  `json:"output_txid,omitempty"`
	Status           TxStatus        `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	LastTransitionAt time.Time       `json:"last_transition_at"`
	ErrorMessage     string          `json:"error_message,omitempty"`
}

// FetchedUTXO is one note as reported by the chain via the sync RPC
// (spec §4.5's diff algorithm input). It carries only what the diff
// needs to key and classify the UTXO.
type FetchedUTXO struct {
	NoteID digest.Digest
	Note   note.Note
}
