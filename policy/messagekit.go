package policy

import (
	"fmt"

	"github.com/KPrasch/nucypher/internal/wire"
	"github.com/KPrasch/nucypher/primitives"
)

// MessageKit bundles a capsule and the ciphertext it was produced
// alongside, with an optional condition payload bolted on via the shared
// wire.Delimiter framing.
type MessageKit struct {
	Capsule    primitives.Capsule
	Ciphertext []byte
	// Conditions, when present, is the raw condition bytes exactly as
	// supplied by the encryptor; this package does not interpret them.
	Conditions []byte
}

// Bytes serializes the kit as capsule||4-byte-length-prefixed ciphertext,
// optionally followed by the delimiter and condition payload.
func (m MessageKit) Bytes() []byte {
	core := encodeCapsuleAndCiphertext(m.Capsule, m.Ciphertext)
	return wire.Join(core, m.Conditions)
}

// ParseMessageKit is the inverse of Bytes.
func ParseMessageKit(b []byte) (MessageKit, error) {
	core, payload, _ := wire.Split(b)
	capsule, ciphertext, err := decodeCapsuleAndCiphertext(core)
	if err != nil {
		return MessageKit{}, err
	}
	return MessageKit{Capsule: capsule, Ciphertext: ciphertext, Conditions: payload}, nil
}

func encodeCapsuleAndCiphertext(capsule primitives.Capsule, ciphertext []byte) []byte {
	capsuleBytes := capsule.Bytes()
	out := make([]byte, 0, 1+len(capsuleBytes)+4+len(ciphertext))
	out = append(out, byte(len(capsuleBytes)))
	out = append(out, capsuleBytes...)
	out = append(out, uint32ToBytes(uint32(len(ciphertext)))...)
	out = append(out, ciphertext...)
	return out
}

func decodeCapsuleAndCiphertext(b []byte) (primitives.Capsule, []byte, error) {
	if len(b) < 1 {
		return primitives.Capsule{}, nil, fmt.Errorf("policy: message kit core too short")
	}
	capsuleLen := int(b[0])
	if len(b) < 1+capsuleLen+4 {
		return primitives.Capsule{}, nil, fmt.Errorf("policy: message kit core too short")
	}
	capsule, err := primitives.CapsuleFromBytes(b[1 : 1+capsuleLen])
	if err != nil {
		return primitives.Capsule{}, nil, err
	}
	rest := b[1+capsuleLen:]
	ctLen := bytesToUint32(rest[:4])
	if uint32(len(rest)-4) < ctLen {
		return primitives.Capsule{}, nil, fmt.Errorf("policy: message kit ciphertext length mismatch")
	}
	ciphertext := rest[4 : 4+ctLen]
	return capsule, ciphertext, nil
}

func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func bytesToUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
