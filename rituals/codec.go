package rituals

import (
	"encoding/binary"
	"fmt"

	"github.com/KPrasch/nucypher/primitives"
)

const compressedPointLen = 33

func encodeTranscript(t primitives.Transcript) []byte {
	var out []byte
	out = appendUint32(out, t.RitualID)
	out = appendUint32(out, uint32(t.Dealer))
	out = appendUint16(out, uint16(len(t.Commitments)))
	for _, c := range t.Commitments {
		out = append(out, c.Bytes()...)
	}
	out = appendUint16(out, uint16(len(t.EncryptedShares)))
	for recipient, sealed := range t.EncryptedShares {
		out = appendUint32(out, uint32(recipient))
		out = appendUint32(out, uint32(len(sealed)))
		out = append(out, sealed...)
	}
	return out
}

func decodeTranscript(b []byte) (primitives.Transcript, error) {
	var t primitives.Transcript
	r := &byteReader{b: b}

	ritualID, err := r.uint32()
	if err != nil {
		return t, err
	}
	dealer, err := r.uint32()
	if err != nil {
		return t, err
	}
	numCommitments, err := r.uint16()
	if err != nil {
		return t, err
	}
	commitments := make([]primitives.Point, numCommitments)
	for i := range commitments {
		pb, err := r.bytes(compressedPointLen)
		if err != nil {
			return t, err
		}
		p, err := primitives.PointFromBytes(pb)
		if err != nil {
			return t, err
		}
		commitments[i] = p
	}
	numShares, err := r.uint16()
	if err != nil {
		return t, err
	}
	shares := make(map[primitives.NodeID][]byte, numShares)
	for i := uint16(0); i < numShares; i++ {
		recipient, err := r.uint32()
		if err != nil {
			return t, err
		}
		length, err := r.uint32()
		if err != nil {
			return t, err
		}
		sealed, err := r.bytes(int(length))
		if err != nil {
			return t, err
		}
		shares[primitives.NodeID(recipient)] = sealed
	}

	t.RitualID = ritualID
	t.Dealer = primitives.NodeID(dealer)
	t.Commitments = commitments
	t.EncryptedShares = shares
	return t, nil
}

// encodeAggregatedTranscript serializes the ritual id, contributing dealer
// set, and the derived DKG public key. Per-dealer commitment vectors are
// not re-serialized here: every participant already holds them locally
// from round 1's transcripts, keyed by the same dealer ids this encodes.
func encodeAggregatedTranscript(a primitives.AggregatedTranscript) []byte {
	var out []byte
	out = appendUint32(out, a.RitualID)
	out = appendUint16(out, uint16(len(a.Dealers)))
	for _, d := range a.Dealers {
		out = appendUint32(out, uint32(d))
	}
	out = append(out, a.PublicKey.Bytes()...)
	return out
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, fmt.Errorf("rituals: unexpected end of encoded data")
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}
