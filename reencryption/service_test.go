package reencryption

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

type noopChain struct{}

func (noopChain) EthCall(ctx context.Context, chainID uint64, to [20]byte, data []byte) ([]byte, error) {
	return nil, nil
}
func (noopChain) BlockTimestamp(ctx context.Context, chainID uint64) (uint64, error) { return 0, nil }
func (noopChain) BlockNumber(ctx context.Context, chainID uint64) (uint64, error)    { return 0, nil }
func (noopChain) ChainIDSupported(chainID uint64) bool                              { return true }

func buildService(t *testing.T, decryptingKey, signingKey primitives.PrivateKey) *Service {
	t.Helper()
	dir := t.TempDir()
	revoked, err := LoadRevocationSet(filepath.Join(dir, "revoked.txt"))
	require.NoError(t, err)
	audit, err := OpenAuditLog(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })
	return NewService(zap.NewNop().Sugar(), decryptingKey, signingKey, revoked, audit, noopChain{}, rand.Reader)
}

func buildRequest(t *testing.T) (Request, *Service) {
	t.Helper()
	ownerSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	operatorSK, operatorPK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	publisherSK, publisherVK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	bobSK, bobVK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	capsule, _, err := primitives.Encapsulate(ownerSK.Public(), rand.Reader)
	require.NoError(t, err)

	kfrag, err := primitives.GenerateKeyFragment(ownerSK, bobVK, rand.Reader)
	require.NoError(t, err)

	hrac := policy.NewHRAC(publisherVK, bobVK, []byte("label"))
	enc, err := primitives.EncryptKeyFragment(kfrag, [32]byte(hrac), publisherSK, operatorPK, rand.Reader)
	require.NoError(t, err)

	req := Request{
		HRAC:                  hrac,
		Capsules:              []primitives.Capsule{capsule},
		EncryptedKeyFrag:      enc,
		BobVerifyingKey:       bobVK,
		PublisherVerifyingKey: publisherVK,
	}
	sig, err := bobSK.Sign(primitives.Digest(req.signedBytes()))
	require.NoError(t, err)
	req.Signature = sig

	return req, buildService(t, operatorSK, operatorSK)
}

func TestReencryptHappyPath(t *testing.T) {
	req, svc := buildRequest(t)
	resp, err := svc.Reencrypt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.CFrags, 1)
	require.True(t, primitives.Verify(svc.signingKey.Public(), primitives.Digest(resp.signedBytes()), resp.Signature))
}

func TestReencryptRevokedPolicy(t *testing.T) {
	req, svc := buildRequest(t)
	require.NoError(t, svc.revoked.Revoke(req.HRAC))

	_, err := svc.Reencrypt(context.Background(), req)
	require.ErrorIs(t, err, ErrPolicyRevoked)
	require.Equal(t, 401, StatusCode(err))
}

func TestReencryptBadSignatureRejected(t *testing.T) {
	req, svc := buildRequest(t)
	req.Signature[0] ^= 0xFF

	_, err := svc.Reencrypt(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidRequestSignature)
	require.Equal(t, 401, StatusCode(err))
}

func TestReencryptWrongPolicyOnEncryptedKeyFrag(t *testing.T) {
	req, svc := buildRequest(t)
	var otherHRAC policy.HRAC
	copy(otherHRAC[:], primitives.Digest([]byte("different-policy")))
	req.HRAC = otherHRAC

	_, err := svc.Reencrypt(context.Background(), req)
	require.ErrorIs(t, err, primitives.ErrWrongPolicy)
	require.Equal(t, 400, StatusCode(err))
}

func TestAuditLogNotWrittenOnFailure(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	revoked, err := LoadRevocationSet(filepath.Join(dir, "revoked.txt"))
	require.NoError(t, err)
	audit, err := OpenAuditLog(auditPath)
	require.NoError(t, err)

	operatorSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	svc := NewService(zap.NewNop().Sugar(), operatorSK, operatorSK, revoked, audit, noopChain{}, rand.Reader)

	req, _ := buildRequest(t)
	require.NoError(t, svc.revoked.Revoke(req.HRAC))
	_, err = svc.Reencrypt(context.Background(), req)
	require.Error(t, err)
	require.NoError(t, audit.Close())

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	require.Empty(t, data)
}
