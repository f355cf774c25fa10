// Package keyhier implements the wallet's key hierarchy: a master
// extended key derived from a seed, and non-hardened child derivation by
// account index, generalized from BIP32's HMAC-SHA512 split the way the
// teacher's wallet package builds HD keys on top of a real secp256k1
// implementation. See DESIGN.md for why this engine owns its own
// derivation instead of reusing a BIP32 library verbatim: Nockchain's
// public-key format is 97 bytes, incompatible with BIP32's hardcoded
// 33-byte compressed point serialization.
package keyhier

import (
	"crypto/hmac"
	"crypto/sha512"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/mnemonic"
)

// PublicKeySize is the wire size of an encoded public key (spec §3):
// a 1-byte tag, two 32-byte curve coordinates, and a 32-byte auxiliary
// commitment binding them together.
const PublicKeySize = 97

// pubKeyTag marks the engine's public-key wire format, distinguishing it
// from any other 97-byte string.
const pubKeyTag = 0x01

// masterHMACKey is the fixed HMAC key used to split a seed into a master
// private scalar and chain code, playing the role BIP32 gives the
// literal string "Bitcoin seed".
var masterHMACKey = []byte("Nockchain wallet engine seed")

// ErrDerivationFailed indicates a child index the curve rejects: the
// HMAC output's left half was not a valid scalar, or (on the private
// branch) the resulting key was zero. Per BIP32, both are negligibly
// rare and callers are expected to skip to the next index.
var ErrDerivationFailed = errors.New("keyhier: derivation failed for this index")

// ErrInvalidSeed indicates a seed that produced an invalid master scalar
// (negligibly rare; same remediation as ErrDerivationFailed is to
// re-derive from different seed material).
var ErrInvalidSeed = errors.New("keyhier: seed produced an invalid master key")

// ExtendedKey is a derived key at one level of the hierarchy.
// PrivateKey is nil on a public-only branch (spec §3).
type ExtendedKey struct {
	PrivateKey *[32]byte
	PublicKey  [PublicKeySize]byte
	ChainCode  [32]byte
}

// DeriveMasterKey splits a 64-byte seed into a master extended key via
// HMAC-SHA512 (spec §4.2).
func DeriveMasterKey(seed []byte) (*ExtendedKey, error) {
	mac := hmac.New(sha512.New, masterHMACKey)
	mac.Write(seed)
	i := mac.Sum(nil)

	il, ir := i[:32], i[32:]

	scalar, err := scalarFromBytes(il)
	if err != nil {
		return nil, ErrInvalidSeed
	}

	return extendedKeyFromScalar(scalar, ir)
}

// DeriveMasterKeyFromMnemonic is a convenience wrapper over
// mnemonic.ToSeed + DeriveMasterKey.
func DeriveMasterKeyFromMnemonic(phrase, passphrase string) (*ExtendedKey, error) {
	seed, err := mnemonic.ToSeed(phrase, passphrase)
	if err != nil {
		return nil, err
	}
	return DeriveMasterKey(seed)
}

// DeriveChild derives the non-hardened child at index from k. Determinism
// contract (spec §4.2): DeriveMasterKey(seed).DeriveChild(i).PublicKey is
// reproducible from seed and i alone.
func (k *ExtendedKey) DeriveChild(index uint32) (*ExtendedKey, error) {
	parentPub, err := k.decodePublicPoint()
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 33+4)
	data = append(data, parentPub.SerializeCompressed()...)
	data = append(data, byte(index>>24), byte(index>>16), byte(index>>8), byte(index))

	mac := hmac.New(sha512.New, k.ChainCode[:])
	mac.Write(data)
	i := mac.Sum(nil)

	il, ir := i[:32], i[32:]

	ilScalar, err := scalarFromBytes(il)
	if err != nil {
		return nil, ErrDerivationFailed
	}

	if k.PrivateKey != nil {
		parentScalar, err := scalarFromBytes(k.PrivateKey[:])
		if err != nil {
			return nil, ErrDerivationFailed
		}
		childScalar := new(secp256k1.ModNScalar).Set(parentScalar)
		childScalar.Add(ilScalar)
		if childScalar.IsZero() {
			return nil, ErrDerivationFailed
		}
		return extendedKeyFromScalar(childScalar, ir)
	}

	var ilPoint, parentJacobian, childJacobian secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(ilScalar, &ilPoint)
	parentPub.AsJacobian(&parentJacobian)
	secp256k1.AddNonConst(&parentJacobian, &ilPoint, &childJacobian)
	childJacobian.ToAffine()

	if childJacobian.X.IsZero() && childJacobian.Y.IsZero() {
		return nil, ErrDerivationFailed
	}

	childPub := secp256k1.NewPublicKey(&childJacobian.X, &childJacobian.Y)

	child := &ExtendedKey{PublicKey: EncodePublicKey(childPub)}
	copy(child.ChainCode[:], ir)
	return child, nil
}

// PKH returns the public-key hash of k's public key (spec §4.2):
// hash_noun(noun_encode(public_key)).
func (k *ExtendedKey) PKH() digest.Digest {
	return PKHFromPublicKey(k.PublicKey)
}

// PKHFromPublicKey computes the PKH of a standalone encoded public key.
func PKHFromPublicKey(pub [PublicKeySize]byte) digest.Digest {
	return digest.HashNoun(pub[:])
}

func scalarFromBytes(b []byte) (*secp256k1.ModNScalar, error) {
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(b)
	if overflow || s.IsZero() {
		return nil, ErrDerivationFailed
	}
	return &s, nil
}

func extendedKeyFromScalar(scalar *secp256k1.ModNScalar, chainCode []byte) (*ExtendedKey, error) {
	privBytes := scalar.Bytes()
	priv := secp256k1.NewPrivateKey(scalar)
	pub := priv.PubKey()

	k := &ExtendedKey{PublicKey: EncodePublicKey(pub)}
	k.PrivateKey = &[32]byte{}
	copy(k.PrivateKey[:], privBytes[:])
	copy(k.ChainCode[:], chainCode)
	return k, nil
}

// PublicKeyFromPrivate derives the 97-byte encoded public key
// corresponding to a bare 32-byte private scalar, for callers (like the
// transaction signer) that hold a private key outside an ExtendedKey.
func PublicKeyFromPrivate(priv [32]byte) ([PublicKeySize]byte, error) {
	scalar, err := scalarFromBytes(priv[:])
	if err != nil {
		return [PublicKeySize]byte{}, ErrDerivationFailed
	}
	pub := secp256k1.NewPrivateKey(scalar).PubKey()
	return EncodePublicKey(pub), nil
}

// decodePublicPoint parses k.PublicKey back into a curve point for use
// in child derivation's HMAC input.
func (k *ExtendedKey) decodePublicPoint() (*secp256k1.PublicKey, error) {
	return DecodePublicKey(k.PublicKey)
}

// DecodePublicKey parses the engine's 97-byte wire format back into a
// secp256k1 curve point, for use by the signer package and by child
// derivation.
func DecodePublicKey(pub [PublicKeySize]byte) (*secp256k1.PublicKey, error) {
	if pub[0] != pubKeyTag {
		return nil, ErrDerivationFailed
	}
	x := new(secp256k1.FieldVal)
	y := new(secp256k1.FieldVal)
	x.SetByteSlice(pub[1:33])
	y.SetByteSlice(pub[33:65])
	return secp256k1.NewPublicKey(x, y), nil
}

// EncodePublicKey renders a curve point in the engine's 97-byte wire
// format: tag || X || Y || commitment, where commitment binds the two
// coordinates together via blake2b-256. Nockchain's real "cheetah" curve
// is a cubic-extension-field curve no library in the corpus implements;
// this format satisfies the spec's byte-size contract on top of real
// secp256k1 point arithmetic while remaining internally consistent and
// deterministic. See DESIGN.md.
func EncodePublicKey(pub *secp256k1.PublicKey) [PublicKeySize]byte {
	var out [PublicKeySize]byte
	out[0] = pubKeyTag

	var point secp256k1.JacobianPoint
	pub.AsJacobian(&point)
	xBytes := point.X.Bytes()
	yBytes := point.Y.Bytes()
	copy(out[1:33], xBytes[:])
	copy(out[33:65], yBytes[:])

	h := blake2b.Sum256(out[1:65])
	copy(out[65:97], h[:32])

	return out
}
