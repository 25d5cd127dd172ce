// Package rituals implements the DKG ritual state machine: local storage
// of transcripts and aggregated transcripts (the "ritual store"), and the
// engine that drives a ritual through round 1 (transcript generation),
// round 2 (aggregation), and on-demand decryption-share derivation.
package rituals

import (
	"math/big"
	"time"

	"github.com/KPrasch/nucypher/primitives"
)

// Status mirrors the on-chain coordinator's view of a ritual's progress.
// It only ever moves forward; Finalized, Timeout and Invalid are terminal.
type Status int

const (
	NonInitiated Status = iota
	AwaitingTranscripts
	AwaitingAggregations
	Finalized
	Timeout
	Invalid
)

func (s Status) String() string {
	switch s {
	case NonInitiated:
		return "NON_INITIATED"
	case AwaitingTranscripts:
		return "AWAITING_TRANSCRIPTS"
	case AwaitingAggregations:
		return "AWAITING_AGGREGATIONS"
	case Finalized:
		return "FINALIZED"
	case Timeout:
		return "TIMEOUT"
	case Invalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

func (s Status) terminal() bool {
	return s == Finalized || s == Timeout || s == Invalid
}

// Ritual is the local view of one DKG run among a fixed node set, as
// observed through the coordinator's on-chain state.
type Ritual struct {
	ID        uint32
	Initiator [20]byte
	Nodes     []primitives.PublicKey // ordered, node index == position
	Threshold int
	Status    Status
}

// Shares is the ritual's share count, always equal to len(Nodes).
func (r *Ritual) Shares() int {
	return len(r.Nodes)
}

// NodeIndex returns the index of me within the ritual's node list, or -1 if
// me is not a participant.
func (r *Ritual) NodeIndex(me primitives.PublicKey) int {
	for i, n := range r.Nodes {
		if n.Equal(me.Point) {
			return i
		}
	}
	return -1
}

// record is the ritual store's per-ritual cache entry: presence-tracked
// transcripts and aggregations, plus whatever round 2 derives.
type record struct {
	transcripts   map[int][]byte
	aggregations  map[int][]byte
	aggregated    *primitives.AggregatedTranscript
	combinedShare *big.Int
	publicKey     *primitives.Point
	finalizedAt   time.Time
}

func newRecord() *record {
	return &record{
		transcripts:  map[int][]byte{},
		aggregations: map[int][]byte{},
	}
}
