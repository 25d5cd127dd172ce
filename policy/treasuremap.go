package policy

import (
	"fmt"

	"github.com/KPrasch/nucypher/primitives"
)

// OperatorAddr is the 20-byte address identifying an operator node, the
// same address family the chain/coordinator layer uses.
type OperatorAddr [20]byte

// TreasureMap is published once per policy and is immutable thereafter: it
// tells a retrieving client which operators hold encrypted key fragments
// for a given HRAC, and how many valid cfrags are required.
type TreasureMap struct {
	HRAC                 HRAC
	Threshold            int
	Shares               int
	Destinations         map[OperatorAddr]primitives.EncryptedKeyFrag
	PolicyEncryptingKey  primitives.PublicKey
	PublisherVerifyingKey primitives.PublicKey

	published bool
}

// NewTreasureMap validates and constructs a TreasureMap. Threshold must be
// <= shares <= len(destinations).
func NewTreasureMap(hrac HRAC, threshold, shares int, destinations map[OperatorAddr]primitives.EncryptedKeyFrag, policyPK, publisherVK primitives.PublicKey) (*TreasureMap, error) {
	if threshold < 1 || threshold > shares {
		return nil, fmt.Errorf("policy: threshold %d must be in [1, shares=%d]", threshold, shares)
	}
	if shares > len(destinations) {
		return nil, fmt.Errorf("policy: shares %d exceeds %d destinations", shares, len(destinations))
	}
	return &TreasureMap{
		HRAC:                  hrac,
		Threshold:             threshold,
		Shares:                shares,
		Destinations:          destinations,
		PolicyEncryptingKey:   policyPK,
		PublisherVerifyingKey: publisherVK,
		published:             true,
	}, nil
}

// Published reports whether the map is marked published; NewTreasureMap
// marks every map it builds, so it is true for all of them. Once true, the
// map's fields must not be mutated in place — callers construct a new
// TreasureMap for policy updates instead.
func (t *TreasureMap) Published() bool {
	return t.published
}
