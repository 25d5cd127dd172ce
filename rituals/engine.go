package rituals

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/chain"
	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/primitives"
)

const (
	maxPostRetries  = 3
	backoffBase     = 2 * time.Second
	backoffCap      = 30 * time.Second
)

// Engine drives every ritual this node participates in through round 1
// (transcript generation), round 2 (aggregation), and decryption-share
// derivation on request. One Engine instance is shared by all rituals; a
// per-ritual-id lock serializes the operations that touch a single
// ritual's state, while distinct ritual ids proceed independently.
type Engine struct {
	logger        *zap.SugaredLogger
	store         *Store
	coordinator   Coordinator
	decryptingKey primitives.PrivateKey
	myAddress     [20]byte
	rand          primitives.RandReader

	locksMu sync.Mutex
	locks   map[uint32]*sync.Mutex
}

// NewEngine constructs an Engine bound to one node's identity and key
// material. rand is the CSPRNG handle threaded into every primitive call
// that needs one.
func NewEngine(logger *zap.SugaredLogger, store *Store, coordinator Coordinator, decryptingKey primitives.PrivateKey, myAddress [20]byte, rand primitives.RandReader) *Engine {
	return &Engine{
		logger:        logger,
		store:         store,
		coordinator:   coordinator,
		decryptingKey: decryptingKey,
		myAddress:     myAddress,
		rand:          rand,
		locks:         map[uint32]*sync.Mutex{},
	}
}

func (e *Engine) lockFor(ritualID uint32) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[ritualID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[ritualID] = l
	}
	return l
}

// HandleStartRitual implements round 1: on a StartRitual event, generate
// and post this node's transcript, subject to the coordinator's
// preconditions and the idempotent-posting check.
func (e *Engine) HandleStartRitual(ctx context.Context, ritualID uint32) error {
	lock := e.lockFor(ritualID)
	lock.Lock()
	defer lock.Unlock()

	ritual, err := e.coordinator.GetRitual(ctx, ritualID)
	if err != nil {
		return fmt.Errorf("rituals: fetching ritual %d: %w", ritualID, err)
	}
	status, err := e.coordinator.GetRitualStatus(ctx, ritualID)
	if err != nil {
		return fmt.Errorf("rituals: fetching ritual %d status: %w", ritualID, err)
	}
	if status != AwaitingTranscripts {
		e.logger.Debugw("skipping round 1, wrong status", "ritual_id", ritualID, "status", status.String())
		return nil
	}
	nodeIndex := ritual.NodeIndex(e.decryptingKey.Public())
	if nodeIndex < 0 {
		return fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrNotParticipant)
	}
	if e.store.HasTranscript(ritualID, nodeIndex) {
		e.logger.Debugw("transcript already posted, idempotent skip", "ritual_id", ritualID, "node_index", nodeIndex)
		return nil
	}

	nodes := make(map[primitives.NodeID]primitives.PublicKey, len(ritual.Nodes))
	for i, pk := range ritual.Nodes {
		nodes[primitives.NodeID(i)] = pk
	}
	transcript, err := primitives.GenerateTranscript(ritualID, primitives.NodeID(nodeIndex), nodes, ritual.Threshold, e.rand)
	if err != nil {
		return fmt.Errorf("rituals: generating transcript for ritual %d: %w", ritualID, err)
	}
	transcriptBytes := encodeTranscript(transcript)
	e.store.PutTranscript(ritualID, nodeIndex, transcriptBytes)

	return e.postWithRetry(ctx, ritualID, "transcript", func(ctx context.Context) error {
		_, err := e.coordinator.PostTranscript(ctx, ritualID, nodeIndex, transcriptBytes)
		return err
	})
}

// HandleStartAggregationRound implements round 2: fetch every node's
// posted transcript, aggregate, store locally, and post the aggregation.
func (e *Engine) HandleStartAggregationRound(ctx context.Context, ritualID uint32) error {
	lock := e.lockFor(ritualID)
	lock.Lock()
	defer lock.Unlock()

	ritual, err := e.coordinator.GetRitual(ctx, ritualID)
	if err != nil {
		return fmt.Errorf("rituals: fetching ritual %d: %w", ritualID, err)
	}
	status, err := e.coordinator.GetRitualStatus(ctx, ritualID)
	if err != nil {
		return fmt.Errorf("rituals: fetching ritual %d status: %w", ritualID, err)
	}
	if status != AwaitingAggregations {
		e.logger.Debugw("skipping round 2, wrong status", "ritual_id", ritualID, "status", status.String())
		return nil
	}
	nodeIndex := ritual.NodeIndex(e.decryptingKey.Public())
	if nodeIndex < 0 {
		return fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrNotParticipant)
	}
	if e.store.HasAggregation(ritualID, nodeIndex) {
		e.logger.Debugw("aggregation already posted, idempotent skip", "ritual_id", ritualID, "node_index", nodeIndex)
		return nil
	}

	aggregated, combinedShare, err := e.aggregateFromCoordinator(ctx, ritualID, ritual, nodeIndex)
	if err != nil {
		return err
	}
	e.store.SetFinalized(ritualID, aggregated, combinedShare)

	aggregationBytes := encodeAggregatedTranscript(aggregated)
	e.store.PutAggregation(ritualID, nodeIndex, aggregationBytes)

	return e.postWithRetry(ctx, ritualID, "aggregation", func(ctx context.Context) error {
		_, err := e.coordinator.PostAggregation(ctx, ritualID, nodeIndex, aggregationBytes)
		return err
	})
}

// DeriveDecryptionShare handles an on-demand threshold-decryption request:
// it requires the ritual to be Finalized locally (refetching from the
// coordinator if this node's local store is missing the aggregated
// transcript), evaluates the attached condition tree, and on success
// returns this node's decryption share for ciphertextPoint.
func (e *Engine) DeriveDecryptionShare(ctx context.Context, ritualID uint32, ciphertextPoint primitives.Point, tree *conditions.Lingo, c chain.Chain, vars conditions.Context) (primitives.DecryptionShare, error) {
	status, err := e.coordinator.GetRitualStatus(ctx, ritualID)
	if err != nil {
		return primitives.DecryptionShare{}, fmt.Errorf("rituals: fetching ritual %d status: %w", ritualID, err)
	}
	if status != Finalized {
		return primitives.DecryptionShare{}, fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrNotFinalized)
	}

	_, combinedShare, ok := e.store.Finalized(ritualID)
	if !ok {
		if err := e.refetchFinalized(ctx, ritualID); err != nil {
			return primitives.DecryptionShare{}, err
		}
		_, combinedShare, ok = e.store.Finalized(ritualID)
		if !ok {
			return primitives.DecryptionShare{}, fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrNotFinalized)
		}
	}

	if tree != nil {
		if err := conditions.Evaluate(ctx, tree, c, vars); err != nil {
			e.logger.Infow("decryption share request rejected by conditions", "ritual_id", ritualID, "error", err)
			return primitives.DecryptionShare{}, fmt.Errorf("rituals: ritual %d: %w: %v", ritualID, ErrConditionsNotSatisfied, err)
		}
	}

	ritual, err := e.coordinator.GetRitual(ctx, ritualID)
	if err != nil {
		return primitives.DecryptionShare{}, fmt.Errorf("rituals: fetching ritual %d: %w", ritualID, err)
	}
	nodeIndex := ritual.NodeIndex(e.decryptingKey.Public())
	if nodeIndex < 0 {
		return primitives.DecryptionShare{}, fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrNotParticipant)
	}

	return primitives.DeriveDecryptionShare(ritualID, primitives.NodeID(nodeIndex), combinedShare, ciphertextPoint), nil
}

// aggregateFromCoordinator fetches every node's posted transcript for
// ritualID and re-runs the aggregation math, without touching the Store or
// the coordinator's write side. Shared by HandleStartAggregationRound (round
// 2) and refetchFinalized (local-state recovery).
func (e *Engine) aggregateFromCoordinator(ctx context.Context, ritualID uint32, ritual *Ritual, nodeIndex int) (primitives.AggregatedTranscript, *big.Int, error) {
	raw, err := e.coordinator.Transcripts(ctx, ritualID)
	if err != nil {
		return primitives.AggregatedTranscript{}, nil, fmt.Errorf("rituals: fetching transcripts for ritual %d: %w", ritualID, err)
	}
	if len(raw) < len(ritual.Nodes) {
		return primitives.AggregatedTranscript{}, nil, fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrMissingTranscripts)
	}
	transcripts := make(map[primitives.NodeID]primitives.Transcript, len(raw))
	for idx, b := range raw {
		t, err := decodeTranscript(b)
		if err != nil {
			return primitives.AggregatedTranscript{}, nil, fmt.Errorf("rituals: decoding transcript from node %d: %w", idx, err)
		}
		transcripts[primitives.NodeID(idx)] = t
	}

	aggregated, combinedShare, err := primitives.AggregateTranscripts(ritualID, primitives.NodeID(nodeIndex), e.decryptingKey, ritual.Threshold, transcripts)
	if err != nil {
		return primitives.AggregatedTranscript{}, nil, fmt.Errorf("rituals: aggregating ritual %d: %w", ritualID, err)
	}
	return aggregated, combinedShare, nil
}

// refetchFinalized repopulates a FINALIZED ritual's local combinedShare by
// re-fetching transcripts from the coordinator and re-running the
// aggregation math, per the spec-named recovery path for a node whose
// in-memory Store lost its state (e.g. a restart). It deliberately does not
// gate on ritual status or re-post anything — the ritual is already
// Finalized on-chain; this only rebuilds local state.
func (e *Engine) refetchFinalized(ctx context.Context, ritualID uint32) error {
	lock := e.lockFor(ritualID)
	lock.Lock()
	defer lock.Unlock()

	if _, _, ok := e.store.Finalized(ritualID); ok {
		return nil
	}

	ritual, err := e.coordinator.GetRitual(ctx, ritualID)
	if err != nil {
		return fmt.Errorf("rituals: fetching ritual %d: %w", ritualID, err)
	}
	nodeIndex := ritual.NodeIndex(e.decryptingKey.Public())
	if nodeIndex < 0 {
		return fmt.Errorf("rituals: ritual %d: %w", ritualID, ErrNotParticipant)
	}

	aggregated, combinedShare, err := e.aggregateFromCoordinator(ctx, ritualID, ritual, nodeIndex)
	if err != nil {
		return err
	}
	e.store.SetFinalized(ritualID, aggregated, combinedShare)
	return nil
}

// postWithRetry retries fn up to maxPostRetries times with exponential
// backoff (base 2s, cap 30s) before abandoning the ritual.
func (e *Engine) postWithRetry(ctx context.Context, ritualID uint32, what string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxPostRetries; attempt++ {
		if err := fn(ctx); err != nil {
			lastErr = err
			e.logger.Warnw("posting failed, will retry", "ritual_id", ritualID, "what", what, "attempt", attempt+1, "error", err)
			wait := backoffBase * time.Duration(1<<attempt)
			if wait > backoffCap {
				wait = backoffCap
			}
			jitter := time.Duration(rand.Int63n(int64(wait) / 4))
			select {
			case <-time.After(wait + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	e.logger.Errorw("abandoning ritual after exhausting retries", "ritual_id", ritualID, "what", what, "error", lastErr)
	return fmt.Errorf("rituals: ritual %d: %w: %v", ritualID, ErrRitualAbandoned, lastErr)
}
