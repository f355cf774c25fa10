// Package vault owns the encrypted seed container and the account list: a
// single process-wide state machine (spec §4.3) cycling through Absent,
// Locked, and Unlocked, persisted the way the teacher's wallet package
// persists a FileStorage wallet file — one JSON document holding public
// metadata plus an encrypted blob — generalized to the engine's flat
// key-value layout (spec §6) and account model instead of a single seed.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/fileutil"
	"github.com/nockwallet/walletengine/internal/keyhier"
	"github.com/nockwallet/walletengine/internal/mnemonic"
	"github.com/nockwallet/walletengine/internal/secbuf"
	"github.com/nockwallet/walletengine/internal/vaultcrypto"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// State is one of the three vault lifecycle states (spec §4.3).
type State int

const (
	Absent State = iota
	Locked
	Unlocked
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

const (
	vaultFileName    = "vault.json"
	vaultFilePerm    = 0o600
	vaultDirPerm     = 0o700
	minPasswordChars = 1
)

// Account is the engine's public account record (spec §3). Display is
// opaque UI styling state the engine stores but never interprets.
type Account struct {
	Index   uint32            `json:"index"`
	Name    string            `json:"name"`
	PKH     digest.Digest     `json:"pkh"`
	Hidden  bool              `json:"hidden"`
	Display map[string]string `json:"display,omitempty"`
}

// OnboardingState tracks whether the user has completed the mnemonic
// backup flow the extension shell drives (spec §6: onboardingState).
type OnboardingState struct {
	BackupComplete bool `json:"backupComplete"`
}

// persistedFile is the on-disk shape of a vault (spec §6's flat
// key-value layout, collapsed into one JSON document the way the
// teacher's walletFile collapses Wallet+EncryptedSeed into one).
type persistedFile struct {
	Enc                 []byte            `json:"enc,omitempty"`
	Accounts            []Account         `json:"accounts"`
	CurrentAccountIndex uint32            `json:"currentAccountIndex"`
	AutoLockMinutes     int               `json:"autoLockMinutes"`
	OnboardingState     OnboardingState   `json:"onboardingState"`
	ApprovedOrigins     []string          `json:"approvedOrigins"`
	CachedBalances      map[string]uint64 `json:"cachedBalances"`
}

// Vault is the process-wide singleton the spec's §9 design note asks for
// as an explicit handle rather than a hidden global: the extension shell
// constructs one at boot and passes it into every engine call.
//
// The encrypted blob is an age scrypt payload (vaultcrypto.Seal); its
// header already self-describes the salt and scrypt work factor, so the
// spec's separate `{iv, salt, kdf_params, cipher}` fields are embedded in
// that payload rather than broken out as sibling JSON fields. See
// DESIGN.md.
type Vault struct {
	mu sync.Mutex

	path       string
	workFactor uint8

	state    State
	mnemonic *secbuf.Bytes // non-nil only while Unlocked
	master   *keyhier.ExtendedKey

	accounts            []Account
	currentAccountIndex uint32
	autoLockMinutes     int
	onboarding          OnboardingState
	approvedOrigins     []string
	cachedBalances      map[string]uint64

	manuallyLocked bool
	lastActivity   time.Time
	now            func() time.Time
}

// Open loads a vault rooted at dir (created if absent). If a vault file
// already exists, the state starts Locked; otherwise Absent.
func Open(dir string, workFactor uint8) (*Vault, error) {
	v := &Vault{
		path:           filepath.Join(dir, vaultFileName),
		workFactor:     vaultcrypto.ClampWorkFactor(workFactor),
		state:          Absent,
		cachedBalances: make(map[string]uint64),
		now:            time.Now,
	}

	pf, err := v.load()
	if err != nil {
		return nil, err
	}
	if pf != nil {
		v.applyPersisted(pf)
		v.state = Locked
	}

	return v, nil
}

func (v *Vault) applyPersisted(pf *persistedFile) {
	v.accounts = pf.Accounts
	v.currentAccountIndex = pf.CurrentAccountIndex
	v.autoLockMinutes = pf.AutoLockMinutes
	v.onboarding = pf.OnboardingState
	v.approvedOrigins = pf.ApprovedOrigins
	v.cachedBalances = pf.CachedBalances
	if v.cachedBalances == nil {
		v.cachedBalances = make(map[string]uint64)
	}
}

func (v *Vault) load() (*persistedFile, error) {
	var pf persistedFile
	err := fileutil.ReadJSON(v.path, &pf)
	switch {
	case err == nil:
		return &pf, nil
	case os.IsNotExist(err):
		return nil, nil
	default:
		// Corrupt vault file: quarantine and report as absent rather than
		// silently resurrecting stale state (spec §7: "store corruption
		// detected at load ... leaves the store empty").
		_ = fileutil.QuarantineCorrupt(v.path)
		return nil, nil
	}
}

func (v *Vault) persistLocked(encBlob []byte) error {
	if err := os.MkdirAll(filepath.Dir(v.path), vaultDirPerm); err != nil {
		return fmt.Errorf("vault: creating directory: %w", err)
	}
	pf := persistedFile{
		Enc:                 encBlob,
		Accounts:            v.accounts,
		CurrentAccountIndex: v.currentAccountIndex,
		AutoLockMinutes:     v.autoLockMinutes,
		OnboardingState:     v.onboarding,
		ApprovedOrigins:     v.approvedOrigins,
		CachedBalances:      v.cachedBalances,
	}
	return fileutil.WriteJSONAtomic(v.path, pf, vaultFilePerm)
}

// persistWithCurrentBlob re-reads the existing encrypted blob from disk
// and rewrites the file with v's current in-memory metadata. Used by
// account-mutating operations, which never touch the mnemonic.
func (v *Vault) persistWithCurrentBlob() error {
	var pf persistedFile
	err := fileutil.ReadJSON(v.path, &pf)
	if err != nil {
		return fmt.Errorf("vault: reading existing blob: %w", err)
	}
	return v.persistLocked(pf.Enc)
}

// GetState reports the vault's current lifecycle state. Passive: does
// not refresh the auto-lock activity timestamp (spec §6).
func (v *Vault) GetState() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAutoLockLocked()
	return v.state
}

// Setup creates a new vault (spec §4.3). Requires Absent. If mnemonic is
// empty, one is generated. Derives account 0, persists, and transitions
// to Unlocked.
func (v *Vault) Setup(password, phrase string) (Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Absent {
		return Account{}, werrors.New(werrors.CodeInvalidParams, "vault: setup requires no existing vault")
	}
	if len(password) < minPasswordChars {
		return Account{}, werrors.New(werrors.CodeInvalidParams, "vault: password required")
	}

	if phrase == "" {
		generated, err := mnemonic.Generate()
		if err != nil {
			return Account{}, werrors.Wrap(err, "vault: generating mnemonic")
		}
		phrase = generated
	}
	if err := mnemonic.Validate(phrase); err != nil {
		return Account{}, werrors.ErrInvalidMnemonic
	}

	seed, err := mnemonic.ToSeed(phrase, "")
	if err != nil {
		return Account{}, werrors.ErrInvalidMnemonic
	}

	master, err := keyhier.DeriveMasterKey(seed)
	secbuf.Zero(seed)
	if err != nil {
		return Account{}, werrors.Wrap(err, "vault: deriving master key")
	}

	account0, err := deriveAccount(master, 0, "")
	if err != nil {
		return Account{}, werrors.Wrap(err, "vault: deriving account 0")
	}

	enc, err := vaultcrypto.Seal([]byte(phrase), password, v.workFactor)
	if err != nil {
		return Account{}, werrors.Wrap(err, "vault: sealing vault")
	}

	v.accounts = []Account{account0}
	v.currentAccountIndex = 0

	if err := v.persistLocked(enc); err != nil {
		return Account{}, werrors.Wrap(err, "vault: persisting")
	}

	v.mnemonic = secbuf.FromSlice([]byte(phrase))
	v.master = master
	v.state = Unlocked
	v.manuallyLocked = false
	v.touchLocked()

	return account0, nil
}

// Unlock decrypts the vault and transitions Locked → Unlocked (spec
// §4.3). Clears the sticky manual-lock flag.
func (v *Vault) Unlock(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case Absent:
		return werrors.ErrNoVault
	case Unlocked:
		v.manuallyLocked = false
		v.touchLocked()
		return nil
	}

	var pf persistedFile
	if err := fileutil.ReadJSON(v.path, &pf); err != nil {
		return werrors.ErrNoVault
	}
	if len(pf.Enc) == 0 {
		return werrors.ErrNoVault
	}

	plaintext, err := vaultcrypto.Open(pf.Enc, password, v.workFactor)
	if err != nil {
		return werrors.ErrBadPassword
	}

	phrase := string(plaintext)
	secbuf.Zero(plaintext)

	seed, err := mnemonic.ToSeed(phrase, "")
	if err != nil {
		return werrors.Wrap(err, "vault: re-deriving seed")
	}
	master, err := keyhier.DeriveMasterKey(seed)
	secbuf.Zero(seed)
	if err != nil {
		return werrors.Wrap(err, "vault: re-deriving master key")
	}

	v.mnemonic = secbuf.FromSlice([]byte(phrase))
	v.master = master
	v.state = Unlocked
	v.manuallyLocked = false
	v.touchLocked()

	return nil
}

// Lock zeroises in-memory secrets and transitions to Locked. Idempotent.
// Sets the sticky manual-lock flag, which suppresses any implicit
// re-unlock path until the next successful Unlock (spec §4.3, §8 "manual
// lock suppression").
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
	v.manuallyLocked = true
}

func (v *Vault) lockLocked() {
	if v.mnemonic != nil {
		v.mnemonic.Destroy()
		v.mnemonic = nil
	}
	v.master = nil
	if v.state == Unlocked {
		v.state = Locked
	}
}

// Reset destroys all persisted vault state and transitions to Absent
// (spec §4.3). Callers are responsible for also resetting the paired
// UTXO store, which lives outside this package.
func (v *Vault) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lockLocked()

	if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
		return werrors.Wrap(err, "vault: removing vault file")
	}

	v.state = Absent
	v.accounts = nil
	v.currentAccountIndex = 0
	v.autoLockMinutes = 0
	v.onboarding = OnboardingState{}
	v.approvedOrigins = nil
	v.cachedBalances = make(map[string]uint64)
	v.manuallyLocked = false

	return nil
}

// requireUnlockedLocked checks and applies any pending auto-lock before
// gating on State, so a call arriving after the idle window observes
// Locked even if no prior call triggered the transition.
func (v *Vault) requireUnlockedLocked() error {
	v.checkAutoLockLocked()
	if v.state != Unlocked {
		return werrors.ErrLocked
	}
	return nil
}

func deriveAccount(master *keyhier.ExtendedKey, index uint32, name string) (Account, error) {
	child, err := master.DeriveChild(index)
	if err != nil {
		return Account{}, err
	}
	if name == "" {
		name = fmt.Sprintf("Account %d", index+1)
	}
	return Account{Index: index, Name: name, PKH: child.PKH()}, nil
}

// CreateAccount derives the next sequential account index and appends it
// (spec §4.3, §6). Requires Unlocked; refreshes the activity timestamp.
func (v *Vault) CreateAccount(name string) (Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return Account{}, err
	}

	nextIndex := uint32(len(v.accounts))
	account, err := deriveAccount(v.master, nextIndex, name)
	if err != nil {
		return Account{}, werrors.Wrap(err, "vault: deriving account")
	}

	v.accounts = append(v.accounts, account)
	if err := v.persistWithCurrentBlob(); err != nil {
		return Account{}, werrors.Wrap(err, "vault: persisting")
	}
	v.touchLocked()

	return account, nil
}

func (v *Vault) findAccountLocked(index uint32) (int, error) {
	for i := range v.accounts {
		if v.accounts[i].Index == index {
			return i, nil
		}
	}
	return -1, werrors.ErrInvalidAccountIndex
}

// SwitchAccount changes the active account index (spec §4.3, §6).
// Requires Unlocked; refreshes the activity timestamp.
func (v *Vault) SwitchAccount(index uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return err
	}
	if _, err := v.findAccountLocked(index); err != nil {
		return err
	}

	v.currentAccountIndex = index
	if err := v.persistWithCurrentBlob(); err != nil {
		return werrors.Wrap(err, "vault: persisting")
	}
	v.touchLocked()

	return nil
}

// RenameAccount renames the account at index (spec §4.3, §6). Requires
// Unlocked; refreshes the activity timestamp.
func (v *Vault) RenameAccount(index uint32, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return err
	}
	i, err := v.findAccountLocked(index)
	if err != nil {
		return err
	}
	if name == "" {
		return werrors.New(werrors.CodeInvalidParams, "vault: account name required")
	}

	v.accounts[i].Name = name
	if err := v.persistWithCurrentBlob(); err != nil {
		return werrors.Wrap(err, "vault: persisting")
	}
	v.touchLocked()

	return nil
}

// HideAccount sets an account's hidden flag (spec §3: "deleting is
// represented as a hidden-flag, not a removal"). Requires Unlocked; does
// not refresh the activity timestamp (not in the spec §6 activity set).
func (v *Vault) HideAccount(index uint32, hidden bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return err
	}
	i, err := v.findAccountLocked(index)
	if err != nil {
		return err
	}

	v.accounts[i].Hidden = hidden
	if err := v.persistWithCurrentBlob(); err != nil {
		return werrors.Wrap(err, "vault: persisting")
	}

	return nil
}

// UpdateAccountStyling replaces an account's opaque display attributes
// (spec §3, §6). Requires Unlocked; does not refresh the activity
// timestamp.
func (v *Vault) UpdateAccountStyling(index uint32, display map[string]string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return err
	}
	i, err := v.findAccountLocked(index)
	if err != nil {
		return err
	}

	v.accounts[i].Display = display
	if err := v.persistWithCurrentBlob(); err != nil {
		return werrors.Wrap(err, "vault: persisting")
	}

	return nil
}

// GetAccounts returns a copy of the account list (passive read).
func (v *Vault) GetAccounts() []Account {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAutoLockLocked()

	out := make([]Account, len(v.accounts))
	copy(out, v.accounts)
	return out
}

// CurrentAccountIndex returns the active account index (passive read).
func (v *Vault) CurrentAccountIndex() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAutoLockLocked()
	return v.currentAccountIndex
}

// GetMnemonic re-verifies password before revealing the mnemonic (spec
// §4.3: "defense-in-depth against a stale unlocked session"). Requires
// Unlocked; refreshes the activity timestamp.
func (v *Vault) GetMnemonic(password string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return "", err
	}

	var pf persistedFile
	if err := fileutil.ReadJSON(v.path, &pf); err != nil {
		return "", werrors.ErrNoVault
	}

	plaintext, err := vaultcrypto.Open(pf.Enc, password, v.workFactor)
	if err != nil {
		return "", werrors.ErrBadPassword
	}
	defer secbuf.Zero(plaintext)

	v.touchLocked()
	return string(plaintext), nil
}

// SetAutoLock sets the auto-lock interval in minutes; 0 disables it
// (spec §4.3). Requires Unlocked; refreshes the activity timestamp.
func (v *Vault) SetAutoLock(minutes int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return err
	}
	if minutes < 0 {
		return werrors.New(werrors.CodeInvalidParams, "vault: auto-lock minutes must be non-negative")
	}

	v.autoLockMinutes = minutes
	if err := v.persistWithCurrentBlob(); err != nil {
		return werrors.Wrap(err, "vault: persisting")
	}
	v.touchLocked()

	return nil
}

// GetAutoLock returns the configured auto-lock interval in minutes
// (passive read).
func (v *Vault) GetAutoLock() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkAutoLockLocked()
	return v.autoLockMinutes
}

// MarkBackupComplete records that the user has exported a vault backup
// (spec §6: onboardingState.backupComplete), so the extension shell can
// stop nagging for it. Requires Unlocked.
func (v *Vault) MarkBackupComplete() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlockedLocked(); err != nil {
		return err
	}

	v.onboarding.BackupComplete = true
	if err := v.persistWithCurrentBlob(); err != nil {
		return werrors.Wrap(err, "vault: persisting")
	}
	v.touchLocked()

	return nil
}

// GetOnboardingState returns the current onboarding flags (passive read).
func (v *Vault) GetOnboardingState() OnboardingState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.onboarding
}

// Touch refreshes the activity timestamp. Exposed so the extension shell
// can mark provider-side activity methods (request_accounts,
// sign_message, send_transaction) named in spec §6's activity set, which
// live outside this package's own method surface.
func (v *Vault) Touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchLocked()
}

func (v *Vault) touchLocked() {
	v.lastActivity = v.now()
}

// checkAutoLockLocked applies the auto-lock timer lazily: rather than
// run a background goroutine against a single-threaded engine (spec §5),
// every entry point checks elapsed idle time against the configured
// interval before acting. A manual lock's sticky flag means a stale
// unlock window never resurrects Unlocked on its own; only Unlock clears
// the flag (spec §4.3, §8 "manual lock suppression").
func (v *Vault) checkAutoLockLocked() {
	if v.state != Unlocked || v.autoLockMinutes <= 0 || v.manuallyLocked {
		return
	}
	idle := v.now().Sub(v.lastActivity)
	if idle >= time.Duration(v.autoLockMinutes)*time.Minute {
		v.lockLocked()
	}
}

// WithClock overrides the vault's time source, for deterministic
// auto-lock tests.
func (v *Vault) WithClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

// SigningMaster returns the unlocked master key for callers outside this
// package (the note/transaction engine) that need to derive a signer for
// the current account. Returns ErrLocked if not Unlocked.
func (v *Vault) SigningMaster() (*keyhier.ExtendedKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlockedLocked(); err != nil {
		return nil, err
	}
	return v.master, nil
}
