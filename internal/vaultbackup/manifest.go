// Package vaultbackup exports and restores the vault's on-disk file as a
// portable, checksummed snapshot (spec §6: export_backup / import_backup),
// adapted from the teacher's wallet backup format.
package vaultbackup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBackupNotFound indicates the backup file was not found.
	ErrBackupNotFound = errors.New("vaultbackup: backup file not found")

	// ErrBackupCorrupted indicates the backup checksum failed.
	ErrBackupCorrupted = errors.New("vaultbackup: checksum mismatch")

	// ErrInvalidFormat indicates the backup envelope is malformed.
	ErrInvalidFormat = errors.New("vaultbackup: invalid backup format")
)

// BackupVersion is the current backup envelope format version.
const BackupVersion = 1

// BackupExtension is the file extension written for backup files.
const BackupExtension = ".nockvault"

// Backup is a portable snapshot of a vault's on-disk file. Payload is the
// vault.json bytes verbatim: the vault's own "enc" field is already an
// independently password-sealed blob (vaultcrypto.Seal), so the envelope
// wraps it rather than re-encrypting under a second password the way the
// teacher's single-wallet format does — see DESIGN.md.
type Backup struct {
	Version  int      `json:"version"`
	Manifest Manifest `json:"manifest"`
	Payload  []byte   `json:"payload"`
	Checksum string   `json:"checksum"`
}

// Manifest carries metadata a caller can inspect without unlocking the
// vault: when the backup was taken and how many accounts it covers.
type Manifest struct {
	CreatedAt        time.Time `json:"created_at"`
	AccountCount     int       `json:"account_count"`
	OnboardingDone   bool      `json:"onboarding_done"`
	EncryptionMethod string    `json:"encryption_method"`
	HostInfo         string    `json:"host_info,omitempty"`
}

// NewManifest builds a Manifest for a vault with accountCount accounts.
func NewManifest(accountCount int, onboardingDone bool) Manifest {
	return Manifest{
		CreatedAt:        time.Now().UTC(),
		AccountCount:     accountCount,
		OnboardingDone:   onboardingDone,
		EncryptionMethod: "age-scrypt",
	}
}

// CalculateChecksum computes the SHA256 checksum of data.
func CalculateChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches the expected checksum.
func VerifyChecksum(data []byte, expected string) error {
	if CalculateChecksum(data) != expected {
		return ErrBackupCorrupted
	}
	return nil
}

// NewBackup wraps payload with manifest and a freshly computed checksum.
func NewBackup(manifest Manifest, payload []byte) *Backup {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return &Backup{
		Version:  BackupVersion,
		Manifest: manifest,
		Payload:  buf,
		Checksum: CalculateChecksum(buf),
	}
}

// Validate checks the backup's structural consistency and checksum.
func (b *Backup) Validate() error {
	if b.Version != BackupVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, b.Version)
	}
	if len(b.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidFormat)
	}
	return VerifyChecksum(b.Payload, b.Checksum)
}
