package vaultbackup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nockwallet/walletengine/internal/fileutil"
)

// BackupDirPermissions is the permission mode for the backup directory.
const BackupDirPermissions = 0o750

// BackupFilePermissions is the permission mode for backup files.
const BackupFilePermissions = 0o600

// Service reads and writes backup envelopes under one directory.
type Service struct {
	backupDir string
}

// NewService builds a Service rooted at backupDir.
func NewService(backupDir string) *Service {
	return &Service{backupDir: backupDir}
}

// Export wraps the raw bytes of a vault file (as read from disk by the
// caller, typically engine.Engine.VaultPath) into a checksummed envelope
// and writes it to the backup directory, returning the envelope and the
// path it was written to.
func (s *Service) Export(vaultFileBytes []byte, accountCount int, onboardingDone bool) (*Backup, string, error) {
	if len(vaultFileBytes) == 0 {
		return nil, "", fmt.Errorf("%w: vault file is empty", ErrInvalidFormat)
	}

	manifest := NewManifest(accountCount, onboardingDone)
	backup := NewBackup(manifest, vaultFileBytes)

	path, err := s.writeBackup(backup)
	if err != nil {
		return nil, "", fmt.Errorf("vaultbackup: writing backup: %w", err)
	}
	return backup, path, nil
}

// Verify checks a backup file's checksum and structure without exposing
// its payload, for callers that want to confirm a backup is sound before
// trusting it (e.g. right after writing it, or before offering restore).
func (s *Service) Verify(path string) (*Manifest, error) {
	backup, err := s.readBackup(path)
	if err != nil {
		return nil, err
	}
	if err := backup.Validate(); err != nil {
		return nil, err
	}
	return &backup.Manifest, nil
}

// Restore validates a backup file and returns its payload: the raw bytes
// to write back out as the vault file at the caller's chosen data
// directory. The vault's own password protects the payload's "enc"
// field, so Restore itself needs no password.
func (s *Service) Restore(path string) ([]byte, *Manifest, error) {
	backup, err := s.readBackup(path)
	if err != nil {
		return nil, nil, err
	}
	if err := backup.Validate(); err != nil {
		return nil, nil, err
	}
	return backup.Payload, &backup.Manifest, nil
}

// List returns the backup filenames present in the backup directory.
func (s *Service) List() ([]string, error) {
	if err := os.MkdirAll(s.backupDir, BackupDirPermissions); err != nil {
		return nil, fmt.Errorf("vaultbackup: creating backup directory: %w", err)
	}

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("vaultbackup: reading backup directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == BackupExtension {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (s *Service) writeBackup(backup *Backup) (string, error) {
	if err := os.MkdirAll(s.backupDir, BackupDirPermissions); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	timestamp := backup.Manifest.CreatedAt.Format("2006-01-02-150405")
	filename := fmt.Sprintf("nockvault-%s%s", timestamp, BackupExtension)
	path := filepath.Join(s.backupDir, filename)

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing backup: %w", err)
	}
	if err := fileutil.WriteAtomic(path, data, BackupFilePermissions); err != nil {
		return "", fmt.Errorf("writing backup file: %w", err)
	}
	return path, nil
}

func (s *Service) readBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is caller-supplied
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBackupNotFound
		}
		return nil, fmt.Errorf("reading backup file: %w", err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return &backup, nil
}
