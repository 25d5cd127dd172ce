package primitives

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReencryptionRoundTrip(t *testing.T) {
	ownerSK, ownerPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	bobSK, bobPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	operatorSK, operatorPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	publisherSK, publisherVK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	capsule, symKey, err := Encapsulate(ownerPK, rand.Reader)
	require.NoError(t, err)
	require.Len(t, symKey, 32)

	kfrag, err := GenerateKeyFragment(ownerSK, bobPK, rand.Reader)
	require.NoError(t, err)

	var hrac [32]byte
	copy(hrac[:], Digest([]byte("policy-id")))

	enc, err := EncryptKeyFragment(kfrag, hrac, publisherSK, operatorPK, rand.Reader)
	require.NoError(t, err)

	decrypted, err := DecryptKeyFrag(enc, operatorSK, hrac, publisherVK)
	require.NoError(t, err)
	require.Equal(t, 0, kfrag.RK.Cmp(decrypted.RK))

	cfrag, err := Reencrypt(decrypted, capsule, operatorSK, rand.Reader)
	require.NoError(t, err)

	ok := VerifyCFrag(cfrag, capsule, ownerPK, operatorPK, ownerPK, bobPK)
	require.True(t, ok)

	recovered := RecoverSymmetricKey(cfrag, bobSK)
	require.Equal(t, symKey, recovered)
}

func TestDecryptKeyFragWrongPolicy(t *testing.T) {
	ownerSK, _, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	bobSK, bobPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	_ = bobSK
	operatorSK, operatorPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	publisherSK, publisherVK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	kfrag, err := GenerateKeyFragment(ownerSK, bobPK, rand.Reader)
	require.NoError(t, err)

	var hrac [32]byte
	copy(hrac[:], Digest([]byte("policy-a")))
	enc, err := EncryptKeyFragment(kfrag, hrac, publisherSK, operatorPK, rand.Reader)
	require.NoError(t, err)

	var otherHrac [32]byte
	copy(otherHrac[:], Digest([]byte("policy-b")))
	_, err = DecryptKeyFrag(enc, operatorSK, otherHrac, publisherVK)
	require.ErrorIs(t, err, ErrWrongPolicy)
}

func TestDecryptKeyFragBadSignature(t *testing.T) {
	ownerSK, _, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	_, bobPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	operatorSK, operatorPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	publisherSK, _, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	_, impostorVK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	kfrag, err := GenerateKeyFragment(ownerSK, bobPK, rand.Reader)
	require.NoError(t, err)

	var hrac [32]byte
	copy(hrac[:], Digest([]byte("policy-id")))
	enc, err := EncryptKeyFragment(kfrag, hrac, publisherSK, operatorPK, rand.Reader)
	require.NoError(t, err)

	_, err = DecryptKeyFrag(enc, operatorSK, hrac, impostorVK)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCapsuleBytesRoundTrip(t *testing.T) {
	_, ownerPK, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	capsule, _, err := Encapsulate(ownerPK, rand.Reader)
	require.NoError(t, err)

	parsed, err := CapsuleFromBytes(capsule.Bytes())
	require.NoError(t, err)
	require.True(t, capsule.E.Equal(parsed.E))
}
