package vault_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockwallet/walletengine/internal/vault"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

const testWorkFactor = 10

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func openVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.Open(t.TempDir(), testWorkFactor)
	require.NoError(t, err)
	return v
}

func TestOpen_AbsentWhenNoFile(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	assert.Equal(t, vault.Absent, v.GetState())
}

func TestSetup_TransitionsToUnlocked(t *testing.T) {
	t.Parallel()
	v := openVault(t)

	account, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), account.Index)
	assert.False(t, account.PKH.IsZero())
	assert.Equal(t, vault.Unlocked, v.GetState())

	accounts := v.GetAccounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, account.PKH, accounts[0].PKH)
}

func TestSetup_GeneratesMnemonicWhenOmitted(t *testing.T) {
	t.Parallel()
	v := openVault(t)

	_, err := v.Setup("hunter2hunter2", "")
	require.NoError(t, err)

	phrase, err := v.GetMnemonic("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, phrase)
}

func TestSetup_RejectsInvalidMnemonic(t *testing.T) {
	t.Parallel()
	v := openVault(t)

	_, err := v.Setup("hunter2hunter2", "not a valid mnemonic at all")
	require.ErrorIs(t, err, werrors.ErrInvalidMnemonic)
	assert.Equal(t, vault.Absent, v.GetState())
}

func TestSetup_RejectsWhenNotAbsent(t *testing.T) {
	t.Parallel()
	v := openVault(t)

	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	_, err = v.Setup("other", testMnemonic)
	require.Error(t, err)
}

func TestLockUnlock_RoundTrip(t *testing.T) {
	t.Parallel()
	v := openVault(t)

	account, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	v.Lock()
	assert.Equal(t, vault.Locked, v.GetState())

	require.NoError(t, v.Unlock("hunter2hunter2"))
	assert.Equal(t, vault.Unlocked, v.GetState())

	accounts := v.GetAccounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, account.PKH, accounts[0].PKH)
	assert.Equal(t, uint32(0), v.CurrentAccountIndex())
}

func TestLock_Idempotent(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	v.Lock()
	v.Lock()
	assert.Equal(t, vault.Locked, v.GetState())
}

func TestUnlock_WrongPasswordFails(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)
	v.Lock()

	err = v.Unlock("wrong password")
	require.ErrorIs(t, err, werrors.ErrBadPassword)
	assert.Equal(t, vault.Locked, v.GetState())
}

func TestUnlock_NoVaultFails(t *testing.T) {
	t.Parallel()
	v := openVault(t)

	err := v.Unlock("hunter2hunter2")
	require.ErrorIs(t, err, werrors.ErrNoVault)
}

func TestReopenAfterSetup_StartsLocked(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	v1, err := vault.Open(dir, testWorkFactor)
	require.NoError(t, err)
	account, err := v1.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	v2, err := vault.Open(dir, testWorkFactor)
	require.NoError(t, err)
	assert.Equal(t, vault.Locked, v2.GetState())

	require.NoError(t, v2.Unlock("hunter2hunter2"))
	accounts := v2.GetAccounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, account.PKH, accounts[0].PKH)
}

func TestReset_ReturnsToAbsent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	v, err := vault.Open(dir, testWorkFactor)
	require.NoError(t, err)

	_, err = v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	require.NoError(t, v.Reset())
	assert.Equal(t, vault.Absent, v.GetState())
	assert.Empty(t, v.GetAccounts())

	_, err = vault.Open(dir, testWorkFactor)
	require.NoError(t, err)

	_, statErr := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, statErr)
}

func TestCreateAccount_RequiresUnlocked(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)
	v.Lock()

	_, err = v.CreateAccount("second")
	require.ErrorIs(t, err, werrors.ErrLocked)
}

func TestCreateAccount_SequentialIndices(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	second, err := v.CreateAccount("second")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), second.Index)
	assert.Equal(t, "second", second.Name)

	third, err := v.CreateAccount("")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), third.Index)
	assert.NotEmpty(t, third.Name)

	assert.Len(t, v.GetAccounts(), 3)
}

func TestSwitchAccount_ValidatesIndex(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)
	_, err = v.CreateAccount("second")
	require.NoError(t, err)

	require.NoError(t, v.SwitchAccount(1))
	assert.Equal(t, uint32(1), v.CurrentAccountIndex())

	err = v.SwitchAccount(99)
	require.ErrorIs(t, err, werrors.ErrInvalidAccountIndex)
}

func TestRenameAccount(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	require.NoError(t, v.RenameAccount(0, "Savings"))
	assert.Equal(t, "Savings", v.GetAccounts()[0].Name)

	err = v.RenameAccount(0, "")
	require.Error(t, err)
}

func TestHideAccount(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	require.NoError(t, v.HideAccount(0, true))
	assert.True(t, v.GetAccounts()[0].Hidden)

	require.NoError(t, v.HideAccount(0, false))
	assert.False(t, v.GetAccounts()[0].Hidden)
}

func TestUpdateAccountStyling(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	require.NoError(t, v.UpdateAccountStyling(0, map[string]string{"color": "blue"}))
	assert.Equal(t, "blue", v.GetAccounts()[0].Display["color"])
}

func TestGetMnemonic_RequiresCorrectPassword(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	phrase, err := v.GetMnemonic("hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, phrase)

	_, err = v.GetMnemonic("wrong")
	require.ErrorIs(t, err, werrors.ErrBadPassword)
}

func TestGetMnemonic_RequiresUnlocked(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)
	v.Lock()

	_, err = v.GetMnemonic("hunter2hunter2")
	require.ErrorIs(t, err, werrors.ErrLocked)
}

func TestSetAutoLock_ZeroDisables(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	require.NoError(t, v.SetAutoLock(0))
	assert.Equal(t, 0, v.GetAutoLock())
}

func TestSetAutoLock_RejectsNegative(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	err = v.SetAutoLock(-1)
	require.Error(t, err)
}

func TestAutoLock_LocksAfterIdleWindow(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	clock := time.Now()
	v.WithClock(func() time.Time { return clock })

	require.NoError(t, v.SetAutoLock(1))

	clock = clock.Add(61 * time.Second)
	assert.Equal(t, vault.Locked, v.GetState())
}

func TestAutoLock_NeverLocksAtZero(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	clock := time.Now()
	v.WithClock(func() time.Time { return clock })

	clock = clock.Add(24 * time.Hour)
	assert.Equal(t, vault.Unlocked, v.GetState())
}

func TestAutoLock_ActivityResetsTimer(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	clock := time.Now()
	v.WithClock(func() time.Time { return clock })
	require.NoError(t, v.SetAutoLock(1))

	clock = clock.Add(50 * time.Second)
	v.Touch()

	clock = clock.Add(50 * time.Second)
	assert.Equal(t, vault.Unlocked, v.GetState())
}

func TestManualLock_SuppressesImplicitReunlock(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	clock := time.Now()
	v.WithClock(func() time.Time { return clock })
	require.NoError(t, v.SetAutoLock(1))

	v.Lock()
	assert.Equal(t, vault.Locked, v.GetState())

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, vault.Locked, v.GetState())

	require.NoError(t, v.Unlock("hunter2hunter2"))
	assert.Equal(t, vault.Unlocked, v.GetState())
}

func TestSigningMaster_RequiresUnlocked(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	master, err := v.SigningMaster()
	require.NoError(t, err)
	assert.NotNil(t, master)

	v.Lock()
	_, err = v.SigningMaster()
	require.ErrorIs(t, err, werrors.ErrLocked)
}

func TestMarkBackupComplete_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	v, err := vault.Open(dir, testWorkFactor)
	require.NoError(t, err)
	_, err = v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	assert.False(t, v.GetOnboardingState().BackupComplete)
	require.NoError(t, v.MarkBackupComplete())
	assert.True(t, v.GetOnboardingState().BackupComplete)

	reopened, err := vault.Open(dir, testWorkFactor)
	require.NoError(t, err)
	assert.True(t, reopened.GetOnboardingState().BackupComplete)
}

func TestMarkBackupComplete_RequiresUnlocked(t *testing.T) {
	t.Parallel()
	v := openVault(t)
	_, err := v.Setup("hunter2hunter2", testMnemonic)
	require.NoError(t, err)

	v.Lock()
	require.ErrorIs(t, v.MarkBackupComplete(), werrors.ErrLocked)
}
