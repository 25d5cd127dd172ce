package rituals

import "errors"

var (
	// ErrMissingTranscripts is returned by round 2 when the coordinator
	// reports fewer posted transcripts than the ritual has nodes.
	ErrMissingTranscripts = errors.New("rituals: missing transcripts from coordinator")
	// ErrConditionsNotSatisfied is returned by DeriveDecryptionShare when
	// the attached condition lingo evaluates false.
	ErrConditionsNotSatisfied = errors.New("rituals: conditions not satisfied")
	// ErrNotFinalized is returned when a decryption share is requested for
	// a ritual that has not reached Finalized status.
	ErrNotFinalized = errors.New("rituals: ritual not finalized")
	// ErrNotParticipant is returned when this node is not among the
	// ritual's node set.
	ErrNotParticipant = errors.New("rituals: node is not a participant in this ritual")
	// ErrRitualAbandoned is returned once the engine has exhausted its
	// retry budget for a posting operation.
	ErrRitualAbandoned = errors.New("rituals: ritual abandoned after exhausting retries")
)
