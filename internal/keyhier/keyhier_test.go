package keyhier_test

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockwallet/walletengine/internal/keyhier"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	t.Parallel()
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}

	a, err := keyhier.DeriveMasterKey(seed)
	require.NoError(t, err)
	b, err := keyhier.DeriveMasterKey(seed)
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey, b.PublicKey)
	assert.Equal(t, a.ChainCode, b.ChainCode)
	assert.Equal(t, *a.PrivateKey, *b.PrivateKey)
}

func TestDeriveMasterKeyFromMnemonic_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	b, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey, b.PublicKey)
}

func TestDeriveChild_DeterministicAndReproducibleFromSeedAlone(t *testing.T) {
	t.Parallel()
	master, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	child0a, err := master.DeriveChild(0)
	require.NoError(t, err)

	master2, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	child0b, err := master2.DeriveChild(0)
	require.NoError(t, err)

	assert.Equal(t, child0a.PublicKey, child0b.PublicKey)
	assert.Equal(t, *child0a.PrivateKey, *child0b.PrivateKey)
}

func TestDeriveChild_DifferentIndicesDiffer(t *testing.T) {
	t.Parallel()
	master, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	child0, err := master.DeriveChild(0)
	require.NoError(t, err)
	child1, err := master.DeriveChild(1)
	require.NoError(t, err)

	assert.NotEqual(t, child0.PublicKey, child1.PublicKey)
}

func TestDeriveChild_PublicOnlyBranch(t *testing.T) {
	t.Parallel()
	master, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	child, err := master.DeriveChild(5)
	require.NoError(t, err)

	publicOnly := &keyhier.ExtendedKey{PublicKey: master.PublicKey, ChainCode: master.ChainCode}
	childFromPublic, err := publicOnly.DeriveChild(5)
	require.NoError(t, err)

	assert.Equal(t, child.PublicKey, childFromPublic.PublicKey)
	assert.Nil(t, childFromPublic.PrivateKey)
}

func TestEncodeDecodePublicKey_RoundTripsShortCoordinates(t *testing.T) {
	t.Parallel()

	// Coordinates small enough that big.Int's minimal-length encoding
	// would be shorter than the fixed 32-byte window EncodePublicKey
	// writes into: a byte-serialization bug would left-align instead of
	// left-pad these, producing a different point on decode.
	var x, y secp256k1.FieldVal
	x.SetInt(1)
	y.SetInt(2)
	pub := secp256k1.NewPublicKey(&x, &y)

	encoded := keyhier.EncodePublicKey(pub)
	decoded, err := keyhier.DecodePublicKey(encoded)
	require.NoError(t, err)

	var got secp256k1.JacobianPoint
	decoded.AsJacobian(&got)
	assert.True(t, got.X.Equals(&x), "X coordinate did not round-trip")
	assert.True(t, got.Y.Equals(&y), "Y coordinate did not round-trip")
}

func TestEncodePublicKey_LeftPadsShortCoordinateInWireBytes(t *testing.T) {
	t.Parallel()

	var x, y secp256k1.FieldVal
	x.SetInt(1)
	y.SetInt(1)
	pub := secp256k1.NewPublicKey(&x, &y)

	encoded := keyhier.EncodePublicKey(pub)

	var wantX, wantY [32]byte
	wantX[31] = 1
	wantY[31] = 1
	assert.Equal(t, wantX[:], encoded[1:33], "X must be right-aligned (left-padded with zeros)")
	assert.Equal(t, wantY[:], encoded[33:65], "Y must be right-aligned (left-padded with zeros)")
}

func TestPKH_DeterministicAndSensitiveToKey(t *testing.T) {
	t.Parallel()
	master, err := keyhier.DeriveMasterKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	child0, err := master.DeriveChild(0)
	require.NoError(t, err)
	child1, err := master.DeriveChild(1)
	require.NoError(t, err)

	assert.Equal(t, child0.PKH(), child0.PKH())
	assert.NotEqual(t, child0.PKH(), child1.PKH())
}
