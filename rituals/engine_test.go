package rituals

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/primitives"
)

type fakeCoordinator struct {
	mu           sync.Mutex
	ritual       *Ritual
	status       Status
	transcripts  map[int][]byte
	aggregations map[int][]byte
}

func (f *fakeCoordinator) GetRitual(ctx context.Context, ritualID uint32) (*Ritual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ritual, nil
}

func (f *fakeCoordinator) GetRitualStatus(ctx context.Context, ritualID uint32) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeCoordinator) GetNodeIndex(ctx context.Context, ritualID uint32, node [20]byte) (int, error) {
	return 0, nil
}

func (f *fakeCoordinator) Transcripts(ctx context.Context, ritualID uint32) (map[int][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int][]byte, len(f.transcripts))
	for k, v := range f.transcripts {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCoordinator) PostTranscript(ctx context.Context, ritualID uint32, nodeIndex int, transcript []byte) (TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[nodeIndex] = transcript
	return TxReceipt{Success: true}, nil
}

func (f *fakeCoordinator) PostAggregation(ctx context.Context, ritualID uint32, nodeIndex int, aggregation []byte) (TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregations[nodeIndex] = aggregation
	return TxReceipt{Success: true}, nil
}

type alwaysTrueChain struct{}

func (alwaysTrueChain) EthCall(ctx context.Context, chainID uint64, to [20]byte, data []byte) ([]byte, error) {
	return nil, nil
}
func (alwaysTrueChain) BlockTimestamp(ctx context.Context, chainID uint64) (uint64, error) {
	return 1, nil
}
func (alwaysTrueChain) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) { return 1, nil }
func (alwaysTrueChain) ChainIDSupported(chainID uint64) bool                           { return true }

func TestDKGRitualHappyPath(t *testing.T) {
	const n = 4
	const threshold = 3
	const ritualID = uint32(7)

	logger := zap.NewNop().Sugar()

	sks := make([]primitives.PrivateKey, n)
	pks := make([]primitives.PublicKey, n)
	for i := 0; i < n; i++ {
		sk, pk, err := primitives.GenerateKeyPair(rand.Reader)
		require.NoError(t, err)
		sks[i] = sk
		pks[i] = pk
	}

	ritual := &Ritual{ID: ritualID, Nodes: pks, Threshold: threshold}
	coord := &fakeCoordinator{ritual: ritual, status: AwaitingTranscripts, transcripts: map[int][]byte{}, aggregations: map[int][]byte{}}

	engines := make([]*Engine, n)
	for i := 0; i < n; i++ {
		var addr [20]byte
		addr[0] = byte(i)
		engines[i] = NewEngine(logger, NewStore(), coord, sks[i], addr, rand.Reader)
	}

	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, engines[i].HandleStartRitual(ctx, ritualID))
	}
	require.Len(t, coord.transcripts, n)

	coord.status = AwaitingAggregations
	for i := 0; i < n; i++ {
		require.NoError(t, engines[i].HandleStartAggregationRound(ctx, ritualID))
	}
	require.Len(t, coord.aggregations, n)

	coord.status = Finalized

	trueCond, err := conditions.NewTimeCondition(1, conditions.ReturnValueTest{Comparator: conditions.Gt, Value: float64(0)})
	require.NoError(t, err)
	tree, err := conditions.Parse([]interface{}{trueCond})
	require.NoError(t, err)

	_, somePK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	ciphertextPoint := somePK.Point

	shares := make([]primitives.DecryptionShare, 0, n)
	for i := 0; i < n; i++ {
		share, err := engines[i].DeriveDecryptionShare(ctx, ritualID, ciphertextPoint, tree, alwaysTrueChain{}, nil)
		require.NoError(t, err)
		shares = append(shares, share)
	}
	require.Len(t, shares, n)
}

// TestDeriveDecryptionShareRefetchesAfterRestart simulates a node that lost
// its in-memory Store (e.g. a process restart) after a ritual was already
// FINALIZED on-chain: it must still be able to serve a decryption share by
// refetching and re-aggregating transcripts, not fail with ErrNotFinalized.
func TestDeriveDecryptionShareRefetchesAfterRestart(t *testing.T) {
	const n = 4
	const threshold = 3
	const ritualID = uint32(9)

	logger := zap.NewNop().Sugar()

	sks := make([]primitives.PrivateKey, n)
	pks := make([]primitives.PublicKey, n)
	for i := 0; i < n; i++ {
		sk, pk, err := primitives.GenerateKeyPair(rand.Reader)
		require.NoError(t, err)
		sks[i] = sk
		pks[i] = pk
	}

	ritual := &Ritual{ID: ritualID, Nodes: pks, Threshold: threshold}
	coord := &fakeCoordinator{ritual: ritual, status: AwaitingTranscripts, transcripts: map[int][]byte{}, aggregations: map[int][]byte{}}

	engines := make([]*Engine, n)
	for i := 0; i < n; i++ {
		var addr [20]byte
		addr[0] = byte(i)
		engines[i] = NewEngine(logger, NewStore(), coord, sks[i], addr, rand.Reader)
	}

	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, engines[i].HandleStartRitual(ctx, ritualID))
	}

	coord.status = AwaitingAggregations
	for i := 0; i < n; i++ {
		require.NoError(t, engines[i].HandleStartAggregationRound(ctx, ritualID))
	}

	coord.status = Finalized

	// Node 0 "restarts": rebuild its Engine with a fresh, empty Store but
	// the same coordinator, key material, and address.
	var addr0 [20]byte
	restarted := NewEngine(logger, NewStore(), coord, sks[0], addr0, rand.Reader)
	_, _, ok := restarted.store.Finalized(ritualID)
	require.False(t, ok, "fresh store must start out empty")

	_, somePK, err := primitives.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	share, err := restarted.DeriveDecryptionShare(ctx, ritualID, somePK.Point, nil, alwaysTrueChain{}, nil)
	require.NoError(t, err)
	require.NotZero(t, share)
}
