package operator

import (
	"fmt"
	"time"

	"github.com/KPrasch/nucypher/primitives"
)

// Metadata is the operator metadata bytestring exchanged over
// /public_information and /node_metadata: enough for a peer to address
// and verify this node without a separate discovery step (node gossip
// itself is out of scope; this is just the one node's self-description).
type Metadata struct {
	OperatorAddress [20]byte
	SigningKey      primitives.PublicKey
	DecryptingKey   primitives.PublicKey
	ChainID         uint64
	Timestamp       int64
	// Signature covers everything above under SigningKey, proving the
	// bearer of this metadata controls the claimed signing key.
	Signature []byte
}

// NewMetadata builds and signs a Metadata record for this node.
func NewMetadata(auth *Authenticator, operatorAddress [20]byte, decryptingKey primitives.PublicKey, chainID uint64, now time.Time) (Metadata, error) {
	m := Metadata{
		OperatorAddress: operatorAddress,
		SigningKey:      auth.Public(),
		DecryptingKey:   decryptingKey,
		ChainID:         chainID,
		Timestamp:       now.Unix(),
	}
	sig, err := auth.Sign(primitives.Digest(m.signedBytes()))
	if err != nil {
		return Metadata{}, fmt.Errorf("operator: signing metadata: %w", err)
	}
	m.Signature = sig
	return m, nil
}

// Authenticate verifies m.Signature against m.SigningKey.
func (m Metadata) Authenticate() bool {
	return primitives.Verify(m.SigningKey, primitives.Digest(m.signedBytes()), m.Signature)
}

func (m Metadata) signedBytes() []byte {
	var buf []byte
	buf = append(buf, m.OperatorAddress[:]...)
	buf = append(buf, m.SigningKey.Bytes()...)
	buf = append(buf, m.DecryptingKey.Bytes()...)
	cid := make([]byte, 8)
	for i := 0; i < 8; i++ {
		cid[i] = byte(m.ChainID >> (56 - 8*i))
	}
	buf = append(buf, cid...)
	ts := make([]byte, 8)
	for i := 0; i < 8; i++ {
		ts[i] = byte(m.Timestamp >> (56 - 8*i))
	}
	buf = append(buf, ts...)
	return buf
}

// Bytes serializes m as a flat, length-prefixed binary record.
func (m Metadata) Bytes() []byte {
	var out []byte
	out = append(out, m.OperatorAddress[:]...)
	out = appendLenPrefixed(out, m.SigningKey.Bytes())
	out = appendLenPrefixed(out, m.DecryptingKey.Bytes())
	out = appendUint64(out, uint64(m.ChainID))
	out = appendUint64(out, uint64(m.Timestamp))
	out = appendLenPrefixed(out, m.Signature)
	return out
}

// ParseMetadata is the inverse of Bytes.
func ParseMetadata(b []byte) (Metadata, error) {
	r := &byteReader{b: b}
	var m Metadata

	addr, err := r.bytes(20)
	if err != nil {
		return Metadata{}, err
	}
	copy(m.OperatorAddress[:], addr)

	signingBytes, err := r.lenPrefixed()
	if err != nil {
		return Metadata{}, err
	}
	m.SigningKey, err = primitives.UnmarshalPublicKey(signingBytes)
	if err != nil {
		return Metadata{}, err
	}

	decryptingBytes, err := r.lenPrefixed()
	if err != nil {
		return Metadata{}, err
	}
	m.DecryptingKey, err = primitives.UnmarshalPublicKey(decryptingBytes)
	if err != nil {
		return Metadata{}, err
	}

	chainID, err := r.uint64()
	if err != nil {
		return Metadata{}, err
	}
	m.ChainID = chainID

	ts, err := r.uint64()
	if err != nil {
		return Metadata{}, err
	}
	m.Timestamp = int64(ts)

	m.Signature, err = r.lenPrefixed()
	if err != nil {
		return Metadata{}, err
	}
	return m, nil
}
