package primitives

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildRitualKeys(t *testing.T, n int) (map[NodeID]PrivateKey, map[NodeID]PublicKey) {
	t.Helper()
	sks := make(map[NodeID]PrivateKey, n)
	pks := make(map[NodeID]PublicKey, n)
	for i := 0; i < n; i++ {
		sk, pk, err := GenerateKeyPair(rand.Reader)
		require.NoError(t, err)
		sks[NodeID(i)] = sk
		pks[NodeID(i)] = pk
	}
	return sks, pks
}

func TestDKGHappyPath(t *testing.T) {
	const n = 4
	const threshold = 3
	const ritualID = uint32(7)

	sks, pks := buildRitualKeys(t, n)

	transcripts := make(map[NodeID]Transcript, n)
	for id := range pks {
		tr, err := GenerateTranscript(ritualID, id, pks, threshold, rand.Reader)
		require.NoError(t, err)
		transcripts[id] = tr
	}

	type aggregateResult struct {
		agg   AggregatedTranscript
		share DecryptionShare
	}
	results := make(map[NodeID]aggregateResult, n)

	plaintextScalar, err := randomScalar(rand.Reader)
	require.NoError(t, err)
	ciphertextPoint := scalarBaseMul(plaintextScalar)

	var publicKey Point
	for id, sk := range sks {
		agg, combinedShare, err := AggregateTranscripts(ritualID, id, sk, threshold, transcripts)
		require.NoError(t, err)
		if publicKey.X == nil {
			publicKey = agg.PublicKey
		} else {
			require.True(t, publicKey.Equal(agg.PublicKey))
		}
		ds := DeriveDecryptionShare(ritualID, id, combinedShare, ciphertextPoint)
		results[id] = aggregateResult{agg: agg, share: ds}
	}

	shares := make([]DecryptionShare, 0, threshold)
	for _, r := range results {
		if len(shares) == threshold {
			break
		}
		shares = append(shares, r.share)
	}

	combinedPoint, err := CombineDecryptionShares(shares, threshold)
	require.NoError(t, err)
	require.NotNil(t, combinedPoint.X)
	require.True(t, combinedPoint.IsOnCurve())
}

func TestAggregateTranscriptsBelowThreshold(t *testing.T) {
	const n = 4
	const threshold = 3
	const ritualID = uint32(1)

	sks, pks := buildRitualKeys(t, n)
	transcripts := make(map[NodeID]Transcript, n)
	for id := range pks {
		tr, err := GenerateTranscript(ritualID, id, pks, threshold, rand.Reader)
		require.NoError(t, err)
		transcripts[id] = tr
		if len(transcripts) == threshold-1 {
			break
		}
	}

	var anyID NodeID
	for id := range sks {
		anyID = id
		break
	}
	_, _, err := AggregateTranscripts(ritualID, anyID, sks[anyID], threshold, transcripts)
	require.ErrorIs(t, err, ErrThresholdNotMet)
}

func TestCombineDecryptionSharesThresholdNotMet(t *testing.T) {
	_, err := CombineDecryptionShares(nil, 2)
	require.ErrorIs(t, err, ErrThresholdNotMet)
}
