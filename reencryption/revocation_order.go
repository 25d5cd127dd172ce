package reencryption

import (
	"fmt"

	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

// RevocationOrder is the signed instruction a publisher sends an operator
// to revoke one policy: the HRAC to revoke, the publisher's verifying key,
// and a signature over the HRAC proving the caller holds that key.
type RevocationOrder struct {
	HRAC                  policy.HRAC
	PublisherVerifyingKey primitives.PublicKey
	Signature             []byte
}

// Authenticate verifies o.Signature against o.PublisherVerifyingKey.
func (o RevocationOrder) Authenticate() bool {
	return primitives.Verify(o.PublisherVerifyingKey, primitives.Digest(o.HRAC[:]), o.Signature)
}

// Bytes serializes o as hrac||len-prefixed pubkey||len-prefixed signature.
func (o RevocationOrder) Bytes() []byte {
	var out []byte
	out = append(out, o.HRAC[:]...)
	out = appendLenPrefixed(out, o.PublisherVerifyingKey.Bytes())
	out = appendLenPrefixed(out, o.Signature)
	return out
}

// ParseRevocationOrder is the inverse of Bytes.
func ParseRevocationOrder(b []byte) (RevocationOrder, error) {
	br := &byteReader{b: b}
	hracBytes, err := br.bytes(32)
	if err != nil {
		return RevocationOrder{}, err
	}
	var o RevocationOrder
	copy(o.HRAC[:], hracBytes)

	pubBytes, err := br.lenPrefixed()
	if err != nil {
		return RevocationOrder{}, err
	}
	o.PublisherVerifyingKey, err = primitives.UnmarshalPublicKey(pubBytes)
	if err != nil {
		return RevocationOrder{}, err
	}
	o.Signature, err = br.lenPrefixed()
	if err != nil {
		return RevocationOrder{}, err
	}
	if len(o.Signature) == 0 {
		return RevocationOrder{}, fmt.Errorf("reencryption: revocation order missing signature")
	}
	return o, nil
}
