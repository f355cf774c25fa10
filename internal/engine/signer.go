package engine

import (
	"time"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/keyhier"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// accountSigner adapts the vault's unlocked master key to
// utxostore.Signer for one account index, so internal/utxostore never
// needs to know about the vault's derivation scheme.
type accountSigner struct {
	master       *keyhier.ExtendedKey
	accountIndex uint32
}

func (s accountSigner) PrivateKeyFor(_ digest.Digest) ([32]byte, error) {
	child, err := s.master.DeriveChild(s.accountIndex)
	if err != nil {
		return [32]byte{}, werrors.Wrap(err, "engine: deriving signing key")
	}
	if child.PrivateKey == nil {
		return [32]byte{}, werrors.ErrSigningFailed
	}
	return *child.PrivateKey, nil
}

func secondsDuration(n int) time.Duration {
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}

func minutesDuration(n int) time.Duration {
	if n <= 0 {
		n = 30
	}
	return time.Duration(n) * time.Minute
}
