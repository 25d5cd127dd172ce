package rituals

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/KPrasch/nucypher/primitives"
)

// Store is the per-ritual local cache of transcripts, aggregated
// transcripts, and derived DKG public keys described by the ritual state
// machine. It has a single writer per (ritual id, field) and allows
// concurrent reads; at the scale rituals run at (a handful of nodes, a
// handful of rituals) one store-wide RWMutex guards every ritual's record
// rather than one lock per ritual id.
type Store struct {
	mu      sync.RWMutex
	records map[uint32]*record
}

// NewStore returns an empty store. There is no eviction policy: rituals are
// small and bounded, and are expected to live for the node's lifetime.
func NewStore() *Store {
	return &Store{records: map[uint32]*record{}}
}

func (s *Store) entry(ritualID uint32) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[ritualID]
	if !ok {
		r = newRecord()
		s.records[ritualID] = r
	}
	return r
}

// HasTranscript reports whether this node has already recorded a
// transcript for (ritualID, nodeIndex) — the idempotency pre-check the
// engine uses before posting round 1.
func (s *Store) HasTranscript(ritualID uint32, nodeIndex int) bool {
	e := s.entry(ritualID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := e.transcripts[nodeIndex]
	return ok
}

// PutTranscript records a transcript for (ritualID, nodeIndex). Calling it
// twice for the same key is a no-op on the second call, matching the
// idempotent-posting invariant at the engine level.
func (s *Store) PutTranscript(ritualID uint32, nodeIndex int, transcript []byte) {
	e := s.entry(ritualID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := e.transcripts[nodeIndex]; ok {
		return
	}
	e.transcripts[nodeIndex] = transcript
}

// Transcripts returns a copy of the transcripts recorded so far for
// ritualID, keyed by node index.
func (s *Store) Transcripts(ritualID uint32) map[int][]byte {
	e := s.entry(ritualID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]byte, len(e.transcripts))
	for k, v := range e.transcripts {
		out[k] = v
	}
	return out
}

// HasAggregation reports whether this node has recorded an aggregation for
// (ritualID, nodeIndex).
func (s *Store) HasAggregation(ritualID uint32, nodeIndex int) bool {
	e := s.entry(ritualID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := e.aggregations[nodeIndex]
	return ok
}

// PutAggregation records an aggregation for (ritualID, nodeIndex), also a
// no-op on a repeat call for the same key.
func (s *Store) PutAggregation(ritualID uint32, nodeIndex int, aggregation []byte) {
	e := s.entry(ritualID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := e.aggregations[nodeIndex]; ok {
		return
	}
	e.aggregations[nodeIndex] = aggregation
}

// SetFinalized stores the locally derived aggregated transcript, combined
// share, and DKG public key once this node has completed round 2.
func (s *Store) SetFinalized(ritualID uint32, aggregated primitives.AggregatedTranscript, combinedShare *big.Int) {
	e := s.entry(ritualID)
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := aggregated
	pk := aggregated.PublicKey
	e.aggregated = &agg
	e.combinedShare = new(big.Int).Set(combinedShare)
	e.publicKey = &pk
}

// Finalized returns this node's locally stored aggregated transcript and
// combined share for ritualID, or ok=false if round 2 has not completed
// locally yet.
func (s *Store) Finalized(ritualID uint32) (aggregated primitives.AggregatedTranscript, combinedShare *big.Int, ok bool) {
	e := s.entry(ritualID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e.aggregated == nil {
		return primitives.AggregatedTranscript{}, nil, false
	}
	return *e.aggregated, new(big.Int).Set(e.combinedShare), true
}

// ErrAlreadyFinalized reports a second local finalization of a ritual. No
// function in this package returns it: SetFinalized overwrites any earlier
// finalization, and the engine's precondition check (status ==
// AWAITING_AGGREGATIONS) is what keeps it from being called twice.
var ErrAlreadyFinalized = fmt.Errorf("rituals: ritual already finalized locally")
