package operator

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KPrasch/nucypher/primitives"
)

func TestMetadataRoundTripAndAuthenticate(t *testing.T) {
	signingSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	_, decryptingPK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	auth := NewAuthenticator(signingSK)

	var addr [20]byte
	addr[0] = 7
	m, err := NewMetadata(auth, addr, decryptingPK, 137, time.Unix(1234567890, 0))
	require.NoError(t, err)
	require.True(t, m.Authenticate())

	parsed, err := ParseMetadata(m.Bytes())
	require.NoError(t, err)
	require.Equal(t, m.OperatorAddress, parsed.OperatorAddress)
	require.Equal(t, m.ChainID, parsed.ChainID)
	require.Equal(t, m.Timestamp, parsed.Timestamp)
	require.True(t, parsed.Authenticate())
}

func TestMetadataAuthenticateRejectsTamperedAddress(t *testing.T) {
	signingSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	_, decryptingPK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	auth := NewAuthenticator(signingSK)

	var addr [20]byte
	m, err := NewMetadata(auth, addr, decryptingPK, 1, time.Now())
	require.NoError(t, err)

	m.OperatorAddress[0] ^= 0xFF
	require.False(t, m.Authenticate())
}
