package policy

import (
	"fmt"

	"github.com/KPrasch/nucypher/internal/wire"
	"github.com/KPrasch/nucypher/primitives"
)

// RetrievalKit is what a retriever sends the planner for each ciphertext it
// wants reencrypted: the capsule, an optional condition payload, and the
// set of operator addresses already known to have been queried (carried
// over from a previous, partial retrieval attempt).
type RetrievalKit struct {
	Capsule          primitives.Capsule
	Conditions       []byte
	QueriedAddresses map[OperatorAddr]struct{}
}

// NewRetrievalKit builds a kit with no prior query history.
func NewRetrievalKit(capsule primitives.Capsule, conditions []byte) RetrievalKit {
	return RetrievalKit{Capsule: capsule, Conditions: conditions, QueriedAddresses: map[OperatorAddr]struct{}{}}
}

// Bytes serializes the kit as capsule||4-byte-count-prefixed address list,
// with conditions bolted on via the shared delimiter framing.
func (r RetrievalKit) Bytes() []byte {
	capsuleBytes := r.Capsule.Bytes()
	core := make([]byte, 0, 1+len(capsuleBytes)+4+20*len(r.QueriedAddresses))
	core = append(core, byte(len(capsuleBytes)))
	core = append(core, capsuleBytes...)
	core = append(core, uint32ToBytes(uint32(len(r.QueriedAddresses)))...)
	for addr := range r.QueriedAddresses {
		core = append(core, addr[:]...)
	}
	return wire.Join(core, r.Conditions)
}

// ParseRetrievalKit is the inverse of Bytes.
func ParseRetrievalKit(b []byte) (RetrievalKit, error) {
	core, payload, _ := wire.Split(b)
	if len(core) < 1 {
		return RetrievalKit{}, fmt.Errorf("policy: retrieval kit core too short")
	}
	capsuleLen := int(core[0])
	if len(core) < 1+capsuleLen+4 {
		return RetrievalKit{}, fmt.Errorf("policy: retrieval kit core too short")
	}
	capsule, err := primitives.CapsuleFromBytes(core[1 : 1+capsuleLen])
	if err != nil {
		return RetrievalKit{}, err
	}
	rest := core[1+capsuleLen:]
	count := bytesToUint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < count*20 {
		return RetrievalKit{}, fmt.Errorf("policy: retrieval kit address list truncated")
	}
	addrs := make(map[OperatorAddr]struct{}, count)
	for i := uint32(0); i < count; i++ {
		var a OperatorAddr
		copy(a[:], rest[i*20:(i+1)*20])
		addrs[a] = struct{}{}
	}
	return RetrievalKit{Capsule: capsule, Conditions: payload, QueriedAddresses: addrs}, nil
}
