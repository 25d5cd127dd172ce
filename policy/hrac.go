// Package policy implements the wire data model that sits above the raw
// cryptographic primitives: HRAC-identified policies, the MessageKit and
// RetrievalKit wire formats with their bolt-on condition framing, and the
// TreasureMap that hands operators their encrypted key fragments.
package policy

import (
	"encoding/hex"
	"fmt"

	"github.com/KPrasch/nucypher/primitives"
)

// HRAC (Hashed Relayer Access Code) is a 32-byte policy identifier derived
// from the publisher, the delegatee, and a label, opaque to everything
// downstream of the publisher.
type HRAC [32]byte

// NewHRAC derives an HRAC the way a publisher would at policy-creation
// time: keccak256 of the publisher's verifying key, the delegatee's
// verifying key, and a label chosen by the publisher.
func NewHRAC(publisherVK, bobVK primitives.PublicKey, label []byte) HRAC {
	var h HRAC
	copy(h[:], primitives.Digest(publisherVK.Bytes(), bobVK.Bytes(), label))
	return h
}

// String renders the HRAC as a lowercase hex string.
func (h HRAC) String() string {
	return hex.EncodeToString(h[:])
}

// HRACFromHex parses the hex encoding String produces.
func HRACFromHex(s string) (HRAC, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return HRAC{}, fmt.Errorf("policy: malformed hrac: %w", err)
	}
	if len(b) != 32 {
		return HRAC{}, fmt.Errorf("policy: hrac must be 32 bytes, got %d", len(b))
	}
	var h HRAC
	copy(h[:], b)
	return h, nil
}
