// Package vaultcrypto seals and opens the vault's encrypted blob with a
// passphrase, the way the teacher's crypto package wraps filippo.io/age's
// scrypt-based recipient/identity pair (spec §4.3, §9 "age for vault
// encryption"). The work factor is plumbed in from engine config instead
// of a package-level atomic, since the engine has no global test-only
// override surface.
package vaultcrypto

import (
	"bytes"
	"io"

	"filippo.io/age"

	"github.com/nockwallet/walletengine/internal/secbuf"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// MinWorkFactor and MaxWorkFactor bound the scrypt cost parameter accepted
// from config, mirroring the teacher's clamp.
const (
	MinWorkFactor = 10
	MaxWorkFactor = 22
)

// ClampWorkFactor constrains factor to [MinWorkFactor, MaxWorkFactor].
func ClampWorkFactor(factor uint8) uint8 {
	if factor < MinWorkFactor {
		return MinWorkFactor
	}
	if factor > MaxWorkFactor {
		return MaxWorkFactor
	}
	return factor
}

// Seal encrypts plaintext under password, using workFactor as the scrypt
// cost parameter (spec: higher is slower to brute-force, slower to unlock).
func Seal(plaintext []byte, password string, workFactor uint8) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, werrors.Wrap(err, "vaultcrypto: creating recipient")
	}
	recipient.SetWorkFactor(int(ClampWorkFactor(workFactor)))

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, werrors.Wrap(err, "vaultcrypto: initializing seal")
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, werrors.Wrap(err, "vaultcrypto: writing sealed data")
	}
	if err := w.Close(); err != nil {
		return nil, werrors.Wrap(err, "vaultcrypto: finalizing seal")
	}

	return buf.Bytes(), nil
}

// Open decrypts ciphertext under password. maxWorkFactor bounds the cost
// age will accept from the ciphertext header, guarding against a
// maliciously inflated work factor used as a denial-of-service vector
// against whoever next unlocks the vault.
//
// A wrong password surfaces as werrors.ErrBadPassword: age's scrypt
// identity is the only identity type this engine uses, so any decrypt
// failure against it means the passphrase didn't match.
func Open(ciphertext []byte, password string, maxWorkFactor uint8) ([]byte, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, werrors.Wrap(err, "vaultcrypto: creating identity")
	}
	identity.SetMaxWorkFactor(int(ClampWorkFactor(maxWorkFactor)))

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, werrors.ErrBadPassword
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, werrors.ErrBadPassword
	}

	return plaintext, nil
}

// SealSecure encrypts the contents of a secbuf.Bytes.
func SealSecure(sb *secbuf.Bytes, password string, workFactor uint8) ([]byte, error) {
	data := sb.Bytes()
	if data == nil {
		return nil, werrors.New(werrors.CodeInvalidParams, "vaultcrypto: nothing to seal")
	}
	return Seal(data, password, workFactor)
}

// OpenSecure decrypts ciphertext directly into a secbuf.Bytes, zeroing the
// intermediate plaintext slice age handed back.
func OpenSecure(ciphertext []byte, password string, maxWorkFactor uint8) (*secbuf.Bytes, error) {
	plaintext, err := Open(ciphertext, password, maxWorkFactor)
	if err != nil {
		return nil, err
	}
	defer secbuf.Zero(plaintext)

	return secbuf.FromSlice(plaintext), nil
}
