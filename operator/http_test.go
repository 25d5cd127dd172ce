package operator

import (
	"bytes"
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
	"github.com/KPrasch/nucypher/reencryption"
	"github.com/KPrasch/nucypher/rituals"
)

type noopChain struct{}

func (noopChain) EthCall(ctx context.Context, chainID uint64, to [20]byte, data []byte) ([]byte, error) {
	return nil, nil
}
func (noopChain) BlockTimestamp(ctx context.Context, chainID uint64) (uint64, error) { return 0, nil }
func (noopChain) BlockNumber(ctx context.Context, chainID uint64) (uint64, error)    { return 0, nil }
func (noopChain) ChainIDSupported(chainID uint64) bool                              { return true }

type noopCoordinator struct{}

func (noopCoordinator) GetRitual(ctx context.Context, ritualID uint32) (*rituals.Ritual, error) {
	return nil, nil
}
func (noopCoordinator) GetRitualStatus(ctx context.Context, ritualID uint32) (rituals.Status, error) {
	return rituals.NonInitiated, nil
}
func (noopCoordinator) GetNodeIndex(ctx context.Context, ritualID uint32, node [20]byte) (int, error) {
	return -1, nil
}
func (noopCoordinator) Transcripts(ctx context.Context, ritualID uint32) (map[int][]byte, error) {
	return nil, nil
}
func (noopCoordinator) PostTranscript(ctx context.Context, ritualID uint32, nodeIndex int, transcript []byte) (rituals.TxReceipt, error) {
	return rituals.TxReceipt{}, nil
}
func (noopCoordinator) PostAggregation(ctx context.Context, ritualID uint32, nodeIndex int, aggregation []byte) (rituals.TxReceipt, error) {
	return rituals.TxReceipt{}, nil
}

func buildTestNode(t *testing.T) (*Node, primitives.PrivateKey, primitives.PublicKey) {
	t.Helper()
	dir := t.TempDir()

	signingSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	decryptingSK, decryptingPK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	auth := NewAuthenticator(signingSK)
	decrypting := NewDecryptingPower(decryptingSK)

	revoked, err := reencryption.LoadRevocationSet(filepath.Join(dir, "revoked.txt"))
	require.NoError(t, err)
	audit, err := reencryption.OpenAuditLog(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	svc := reencryption.NewService(zap.NewNop().Sugar(), decryptingSK, signingSK, revoked, audit, noopChain{}, rand.Reader)

	store := rituals.NewStore()
	var myAddr [20]byte
	engine := rituals.NewEngine(zap.NewNop().Sugar(), store, noopCoordinator{}, decryptingSK, myAddr, rand.Reader)
	ritualist := NewRitualist(engine)

	node := NewNode(zap.NewNop().Sugar(), auth, decrypting, ritualist, svc, revoked, 137)
	return node, decryptingSK, decryptingPK
}

func TestHandlePublicInformation(t *testing.T) {
	node, _, _ := buildTestNode(t)
	server := NewServer(node)

	req := httptest.NewRequest(http.MethodGet, "/public_information", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))

	m, err := ParseMetadata(rec.Body.Bytes())
	require.NoError(t, err)
	require.True(t, m.Authenticate())
	require.Equal(t, node.OperatorAddress(), m.OperatorAddress)
}

func TestHandlePing(t *testing.T) {
	node, _, _ := buildTestNode(t)
	server := NewServer(node)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.1:54321"
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "203.0.113.1", rec.Body.String())
}

func TestHandleStatusJSON(t *testing.T) {
	node, _, _ := buildTestNode(t)
	server := NewServer(node)

	req := httptest.NewRequest(http.MethodGet, "/status/", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "operator_address")
}

func TestHandleReencryptHappyPath(t *testing.T) {
	node, decryptingSK, decryptingPK := buildTestNode(t)
	server := NewServer(node)

	ownerSK, _, err := primitives.GenerateKeyPair(rand.Reader)
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
	enc, err := primitives.EncryptKeyFragment(kfrag, [32]byte(hrac), publisherSK, decryptingPK, rand.Reader)
	require.NoError(t, err)
	_ = decryptingSK

	wireReq := reencryption.Request{
		HRAC:                  hrac,
		Capsules:              []primitives.Capsule{capsule},
		EncryptedKeyFrag:      enc,
		BobVerifyingKey:       bobVK,
		PublisherVerifyingKey: publisherVK,
	}
	// Request's signature covers HRAC || capsules || kfrag ciphertext ||
	// bob verifying key, matching Request.signedBytes' (unexported) layout.
	var signed []byte
	signed = append(signed, hrac[:]...)
	signed = append(signed, capsule.Bytes()...)
	signed = append(signed, enc.Ciphertext...)
	signed = append(signed, bobVK.Bytes()...)
	sig, err := bobSK.Sign(primitives.Digest(signed))
	require.NoError(t, err)
	wireReq.Signature = sig

	body, err := wireReq.Bytes()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/reencrypt", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp, err := reencryption.ParseResponse(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, resp.CFrags, 1)
}

func TestHandleRevokeRejectsBadSignature(t *testing.T) {
	node, _, _ := buildTestNode(t)
	server := NewServer(node)

	_, publisherVK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	var hrac policy.HRAC
	order := reencryption.RevocationOrder{HRAC: hrac, PublisherVerifyingKey: publisherVK, Signature: make([]byte, 64)}

	req := httptest.NewRequest(http.MethodPost, "/revoke", bytes.NewReader(order.Bytes()))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
