// Package secbuf holds secrets (mnemonics, seeds, private keys) that must
// not linger in swapped or paged-out memory longer than necessary: an
// mlocked byte buffer that zeroes itself on Destroy and carries a
// runtime finalizer as a backstop against a missed Destroy call.
package secbuf

import (
	"crypto/rand"
	"io"
	"runtime"
	"sync"
)

// Reader is the engine's source of cryptographic randomness (mnemonic
// generation, deterministic-nonce salts, AEAD salts).
var Reader io.Reader = rand.Reader

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Bytes wraps a sensitive byte slice in locked, self-zeroing memory.
type Bytes struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// New allocates a Bytes of the given size, best-effort mlocked.
func New(size int) *Bytes {
	data := make([]byte, size)
	b := &Bytes{data: data, locked: mlock(data)}
	runtime.SetFinalizer(b, func(s *Bytes) { s.Destroy() })
	return b
}

// FromSlice copies data into a new locked Bytes.
func FromSlice(data []byte) *Bytes {
	b := New(len(data))
	copy(b.data, data)
	return b
}

// RandomSecure returns n random bytes inside a locked Bytes.
func RandomSecure(n int) (*Bytes, error) {
	b := New(n)
	if _, err := io.ReadFull(Reader, b.data); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// Bytes returns the underlying slice. Returns nil once Destroy has run.
func (b *Bytes) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// IsLocked reports whether the memory is mlocked.
func (b *Bytes) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Len returns the buffer's length, or 0 if destroyed.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Destroy zeroes and unlocks the buffer. Safe to call more than once.
func (b *Bytes) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
	runtime.SetFinalizer(b, nil)
}

// Zero overwrites a plain byte slice with zeroes in place, for secrets
// that were never promoted into a Bytes (e.g. a freshly decrypted
// mnemonic string converted to []byte for one HMAC call).
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
