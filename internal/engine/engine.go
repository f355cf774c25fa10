// Package engine composes the vault, per-account UTXO stores, the note
// engine, and the sync loop into the stable method surface the extension
// shell consumes (spec §6). It is the one place that owns the mapping
// from "current account" to "that account's store", and that refreshes
// the vault's auto-lock activity timestamp on the fixed set of methods
// the spec names as user activity.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nockwallet/walletengine/internal/config"
	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/fileutil"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/internal/obs"
	"github.com/nockwallet/walletengine/internal/rpcclient"
	"github.com/nockwallet/walletengine/internal/syncloop"
	"github.com/nockwallet/walletengine/internal/utxostore"
	"github.com/nockwallet/walletengine/internal/vault"
	"github.com/nockwallet/walletengine/internal/vaultbackup"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// The spec §6 fixed set of engine methods that refresh the auto-lock
// timestamp is split across two packages: unlock, switch_account, create_account,
// rename_account, set_auto_lock, get_mnemonic are handled inside
// internal/vault directly (each already calls touchLocked); send_transaction
// is handled here since it spans vault + utxostore.

// Engine is the engine's single composition root.
type Engine struct {
	mu sync.Mutex

	dataDir string
	cfg     *config.Config
	vault   *vault.Vault
	rpc     rpcclient.Handle
	loop    *syncloop.Loop
	logger  *obs.Logger

	stores map[digest.Digest]*utxostore.Store
}

// New opens (or initializes) the engine rooted at dataDir.
func New(dataDir string, cfg *config.Config, rpc rpcclient.Handle, logger *obs.Logger) (*Engine, error) {
	if logger == nil {
		logger = obs.Null()
	}

	v, err := vault.Open(dataDir, cfg.AgeScryptWorkFactor)
	if err != nil {
		return nil, err
	}

	loop := syncloop.New(rpc,
		secondsDuration(cfg.SyncIntervalSeconds),
		minutesDuration(cfg.TxExpiryMinutes),
		logger,
	)

	return &Engine{
		dataDir: dataDir,
		cfg:     cfg,
		vault:   v,
		rpc:     rpc,
		loop:    loop,
		logger:  logger,
		stores:  make(map[digest.Digest]*utxostore.Store),
	}, nil
}

// RunHealthLoop blocks ticking the health check until ctx is cancelled;
// callers run it in their own goroutine (the engine itself owns none).
func (e *Engine) RunHealthLoop(ctx context.Context) {
	e.loop.Run(ctx)
}

// IsHealthy reports the most recent health-check outcome.
func (e *Engine) IsHealthy() bool {
	return e.loop.IsHealthy()
}

// --- Vault surface ---

func (e *Engine) GetState() vault.State {
	return e.vault.GetState()
}

func (e *Engine) Setup(password, phrase string) (vault.Account, error) {
	return e.vault.Setup(password, phrase)
}

func (e *Engine) Unlock(password string) error {
	return e.vault.Unlock(password)
}

func (e *Engine) Lock() {
	e.vault.Lock()
}

// Reset destroys the vault and every account's UTXO store (spec §4.3:
// "callers are responsible for also resetting the paired UTXO store").
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.vault.Reset(); err != nil {
		return err
	}
	e.stores = make(map[digest.Digest]*utxostore.Store)
	if err := os.RemoveAll(filepath.Join(e.dataDir, "utxoStore")); err != nil {
		return err
	}
	return nil
}

func (e *Engine) SetAutoLock(minutes int) error {
	return e.vault.SetAutoLock(minutes)
}

func (e *Engine) GetAutoLock() int {
	return e.vault.GetAutoLock()
}

func (e *Engine) GetMnemonic(password string) (string, error) {
	return e.vault.GetMnemonic(password)
}

// --- Account surface ---

func (e *Engine) CreateAccount(name string) (vault.Account, error) {
	return e.vault.CreateAccount(name)
}

func (e *Engine) SwitchAccount(index uint32) error {
	return e.vault.SwitchAccount(index)
}

func (e *Engine) RenameAccount(index uint32, name string) error {
	return e.vault.RenameAccount(index, name)
}

func (e *Engine) HideAccount(index uint32, hidden bool) error {
	return e.vault.HideAccount(index, hidden)
}

func (e *Engine) UpdateAccountStyling(index uint32, display map[string]string) error {
	return e.vault.UpdateAccountStyling(index, display)
}

func (e *Engine) GetAccounts() []vault.Account {
	return e.vault.GetAccounts()
}

// --- Store wiring ---

// storeFor lazily opens the UTXO store for pkh.
func (e *Engine) storeFor(pkh digest.Digest) (*utxostore.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.stores[pkh]; ok {
		return s, nil
	}
	s, err := utxostore.Open(e.dataDir, pkh)
	if err != nil {
		return nil, err
	}
	e.stores[pkh] = s
	return s, nil
}

func (e *Engine) currentAccount() (vault.Account, error) {
	idx := e.vault.CurrentAccountIndex()
	for _, a := range e.vault.GetAccounts() {
		if a.Index == idx {
			return a, nil
		}
	}
	return vault.Account{}, werrors.ErrInvalidAccountIndex
}

func (e *Engine) currentStore() (*utxostore.Store, vault.Account, error) {
	account, err := e.currentAccount()
	if err != nil {
		return nil, vault.Account{}, err
	}
	s, err := e.storeFor(account.PKH)
	if err != nil {
		return nil, vault.Account{}, err
	}
	return s, account, nil
}

// --- Balance / transaction surface ---

// GetBalance is chain-sourced (spec §6): it fetches the account's current
// UTXO set directly rather than consulting the local store.
func (e *Engine) GetBalance(ctx context.Context) (uint64, error) {
	account, err := e.currentAccount()
	if err != nil {
		return 0, err
	}
	notes, err := syncloop.FetchAccountNotes(ctx, e.rpc, account.PKH)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, n := range notes {
		total += n.Assets
	}
	return total, nil
}

// GetBalanceFromStore is the local, in-flight-aware balance (spec §6).
func (e *Engine) GetBalanceFromStore() (uint64, error) {
	s, _, err := e.currentStore()
	if err != nil {
		return 0, err
	}
	return s.Balance(), nil
}

func (e *Engine) EstimateTransactionFee(recipientPKH digest.Digest, amount uint64) (uint64, error) {
	s, account, err := e.currentStore()
	if err != nil {
		return 0, err
	}
	return s.EstimateTransactionFee(account.PKH, recipientPKH, amount, e.cfg.FeePerWord)
}

func (e *Engine) EstimateMaxSend(recipientPKH digest.Digest) (amount, fee uint64, err error) {
	s, account, err := e.currentStore()
	if err != nil {
		return 0, 0, err
	}
	return s.EstimateMaxSend(account.PKH, recipientPKH, e.cfg.FeePerWord)
}

// SendTransaction refreshes the vault's activity timestamp (spec §6's
// activity set names send_transaction) before running the send pipeline.
func (e *Engine) SendTransaction(ctx context.Context, recipientPKH digest.Digest, amount uint64, feeOverride *uint64, sendMax bool) (*utxostore.SendResult, error) {
	s, account, err := e.currentStore()
	if err != nil {
		return nil, err
	}

	master, err := e.vault.SigningMaster()
	if err != nil {
		return nil, err
	}
	signer := accountSigner{master: master, accountIndex: account.Index}

	e.vault.Touch()
	return s.SendTransaction(ctx, e.rpc, signer, account.PKH, recipientPKH, amount, feeOverride, sendMax, e.cfg.FeePerWord)
}

// SignRawTx signs an already-built unsigned transaction with the current
// account's key (spec §6: sign_raw_tx). Every input must be spendable by
// the current account's pkh; multi-party signing is out of scope (spec
// Non-goals).
func (e *Engine) SignRawTx(unsigned *note.UnsignedTx) (*note.RawTx, error) {
	master, err := e.vault.SigningMaster()
	if err != nil {
		return nil, err
	}
	account, err := e.currentAccount()
	if err != nil {
		return nil, err
	}
	signer := accountSigner{master: master, accountIndex: account.Index}

	keys := make([][32]byte, len(unsigned.Inputs))
	for i := range unsigned.Inputs {
		key, err := signer.PrivateKeyFor(account.PKH)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return note.Sign(unsigned, keys)
}

func (e *Engine) AddTransactionToCache(tx utxostore.WalletTransaction) error {
	s, _, err := e.currentStore()
	if err != nil {
		return err
	}
	return s.PutTransaction(tx)
}

func (e *Engine) GetWalletTransactions() ([]utxostore.WalletTransaction, error) {
	s, _, err := e.currentStore()
	if err != nil {
		return nil, err
	}
	return s.Transactions(), nil
}

// Sync runs one on-demand reconciliation pass for the current account
// (spec §5: "driven on-demand for UTXO sync").
func (e *Engine) Sync(ctx context.Context) error {
	s, account, err := e.currentStore()
	if err != nil {
		return err
	}
	return e.loop.SyncAccount(ctx, s, account.PKH)
}

// IsNockAddress validates a user-supplied address string (spec §6:
// "decode_base58(trim(s)) succeeds and yields exactly 40 bytes").
func IsNockAddress(s string) bool {
	_, err := digest.Decode(strings.TrimSpace(s))
	return err == nil
}

// ParseAddress is IsNockAddress's error-returning counterpart, for
// callers that need the decoded pkh rather than a boolean.
func ParseAddress(s string) (digest.Digest, error) {
	d, err := digest.Decode(strings.TrimSpace(s))
	if err != nil {
		return digest.Digest{}, werrors.ErrBadAddress
	}
	return d, nil
}

// VaultPath returns the on-disk vault file path, for callers (e.g.
// vaultbackup) that need to locate it without reaching into the vault
// package's private layout.
func (e *Engine) VaultPath() string {
	return filepath.Join(e.dataDir, "vault.json")
}

// ExportBackup writes a checksummed snapshot of the vault file to
// backupDir and marks onboarding.backupComplete (spec §6: export_backup).
// Requires Unlocked, the same as every other account-surface mutation.
func (e *Engine) ExportBackup(backupDir string) (*vaultbackup.Backup, string, error) {
	if e.vault.GetState() != vault.Unlocked {
		return nil, "", werrors.ErrLocked
	}

	raw, err := os.ReadFile(e.VaultPath()) // #nosec G304 -- fixed path under dataDir
	if err != nil {
		return nil, "", werrors.Wrap(err, "engine: reading vault file")
	}

	accounts := e.vault.GetAccounts()
	svc := vaultbackup.NewService(backupDir)
	backup, path, err := svc.Export(raw, len(accounts), true)
	if err != nil {
		return nil, "", err
	}

	if err := e.vault.MarkBackupComplete(); err != nil {
		return nil, "", err
	}
	return backup, path, nil
}

// RestoreBackup validates a backup file and replaces the current data
// directory's vault file with its payload (spec §6: import_backup). The
// restored vault starts Locked; its own password (unrelated to any
// password used here) unlocks it as usual. Existing per-account UTXO
// stores are dropped from cache so they reopen against the restored
// account set.
func (e *Engine) RestoreBackup(backupPath string) error {
	svc := vaultbackup.NewService(filepath.Dir(backupPath))
	payload, _, err := svc.Restore(backupPath)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fileutil.WriteAtomic(e.VaultPath(), payload, 0o600); err != nil {
		return werrors.Wrap(err, "engine: writing restored vault file")
	}

	v, err := vault.Open(e.dataDir, e.cfg.AgeScryptWorkFactor)
	if err != nil {
		return err
	}
	e.vault = v
	e.stores = make(map[digest.Digest]*utxostore.Store)
	return nil
}

// ListBackups returns the backup filenames present in backupDir.
func (e *Engine) ListBackups(backupDir string) ([]string, error) {
	return vaultbackup.NewService(backupDir).List()
}
