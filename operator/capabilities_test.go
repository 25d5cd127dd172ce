package operator

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KPrasch/nucypher/primitives"
)

func TestAuthenticatorSignVerifies(t *testing.T) {
	sk, pk, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	auth := NewAuthenticator(sk)
	require.True(t, pk.Equal(auth.Public().Point))

	digest := primitives.Digest([]byte("payload"))
	sig, err := auth.Sign(digest)
	require.NoError(t, err)
	require.True(t, primitives.Verify(auth.Public(), digest, sig))
}

func TestTransactingPowerDelegatesSigning(t *testing.T) {
	sk, _, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	auth := NewAuthenticator(sk)
	power := NewTransactingPower(auth)

	digest := primitives.Digest([]byte("tx"))
	sig, err := power.Sign(digest)
	require.NoError(t, err)
	require.True(t, primitives.Verify(auth.Public(), digest, sig))
	require.Equal(t, addressFromPublicKey(auth.Public()), power.Address())
}

func TestDecryptingPowerExposesKey(t *testing.T) {
	sk, pk, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	power := NewDecryptingPower(sk)
	require.True(t, pk.Equal(power.Key().Public().Point))
}
