package reencryption

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

func TestRequestBytesRoundTrip(t *testing.T) {
	req, _ := buildRequest(t)

	cond, err := conditions.NewTimeCondition(1, conditions.ReturnValueTest{Comparator: conditions.Gte, Value: float64(0)})
	require.NoError(t, err)
	tree, err := conditions.Parse([]interface{}{cond})
	require.NoError(t, err)
	req.Conditions = []*conditions.Lingo{tree}
	req.Context = conditions.Context{"foo": "bar"}

	b, err := req.Bytes()
	require.NoError(t, err)

	parsed, err := ParseRequest(b)
	require.NoError(t, err)

	require.Equal(t, req.HRAC, parsed.HRAC)
	require.Len(t, parsed.Capsules, 1)
	require.Equal(t, req.Capsules[0].Bytes(), parsed.Capsules[0].Bytes())
	require.Equal(t, req.Signature, parsed.Signature)
	require.Equal(t, req.Context, parsed.Context)
	require.NotNil(t, parsed.Conditions[0])
	require.True(t, parsed.Authenticate())
}

func TestRequestBytesRoundTripNoConditions(t *testing.T) {
	req, _ := buildRequest(t)
	b, err := req.Bytes()
	require.NoError(t, err)

	parsed, err := ParseRequest(b)
	require.NoError(t, err)
	require.Equal(t, req.HRAC, parsed.HRAC)
	require.Empty(t, parsed.Conditions)
}

func TestResponseBytesRoundTrip(t *testing.T) {
	req, svc := buildRequest(t)
	resp, err := svc.Reencrypt(context.Background(), req)
	require.NoError(t, err)

	b := resp.Bytes()
	parsed, err := ParseResponse(b)
	require.NoError(t, err)

	require.Len(t, parsed.CFrags, 1)
	require.Equal(t, resp.Signature, parsed.Signature)
	require.Equal(t, resp.CFrags[0].E1.Bytes(), parsed.CFrags[0].E1.Bytes())
	require.Equal(t, resp.CFrags[0].ProofS, parsed.CFrags[0].ProofS)
}

func TestRevocationOrderBytesRoundTrip(t *testing.T) {
	publisherSK, publisherVK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	var hrac policy.HRAC
	copy(hrac[:], primitives.Digest([]byte("policy")))

	order := RevocationOrder{HRAC: hrac, PublisherVerifyingKey: publisherVK}
	sig, err := publisherSK.Sign(primitives.Digest(order.HRAC[:]))
	require.NoError(t, err)
	order.Signature = sig
	require.True(t, order.Authenticate())

	parsed, err := ParseRevocationOrder(order.Bytes())
	require.NoError(t, err)
	require.Equal(t, order.HRAC, parsed.HRAC)
	require.True(t, parsed.Authenticate())
}
