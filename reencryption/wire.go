package reencryption

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/internal/wire"
	"github.com/KPrasch/nucypher/primitives"
)

// conditionsPayload is the JSON shape carried after the wire delimiter: one
// (possibly absent) condition tree per capsule plus the request-scoped
// context values those trees reference, mirroring how MessageKit and
// RetrievalKit bolt an opaque condition payload onto their core bytes.
type conditionsPayload struct {
	Conditions []json.RawMessage  `json:"conditions"`
	Context    conditions.Context `json:"context,omitempty"`
}

// Bytes serializes r as core||delimiter||payload, where core is a compact
// binary encoding of everything but the condition trees and context, and
// payload is the base64 text of a JSON conditionsPayload: each capsule's
// tree as MarshalLingo produces it, plus the context.
func (r Request) Bytes() ([]byte, error) {
	var core []byte
	core = append(core, r.HRAC[:]...)

	core = appendUint16(core, uint16(len(r.Capsules)))
	for _, c := range r.Capsules {
		core = appendLenPrefixed(core, c.Bytes())
	}

	core = append(core, r.EncryptedKeyFrag.HRAC[:]...)
	core = appendLenPrefixed(core, r.EncryptedKeyFrag.PublisherVerifyingPK.Bytes())
	core = appendUint32(core, uint32(len(r.EncryptedKeyFrag.Ciphertext)))
	core = append(core, r.EncryptedKeyFrag.Ciphertext...)

	core = appendLenPrefixed(core, r.BobVerifyingKey.Bytes())
	core = appendLenPrefixed(core, r.PublisherVerifyingKey.Bytes())
	core = appendLenPrefixed(core, r.Signature)

	payload, err := encodeConditionsPayload(r.Conditions, r.Context)
	if err != nil {
		return nil, fmt.Errorf("reencryption: encoding conditions payload: %w", err)
	}
	return wire.Join(core, payload), nil
}

// ParseRequest is the inverse of Request.Bytes.
func ParseRequest(b []byte) (Request, error) {
	core, payload, _ := wire.Split(b)
	br := &byteReader{b: core}

	var req Request
	hracBytes, err := br.bytes(32)
	if err != nil {
		return Request{}, err
	}
	copy(req.HRAC[:], hracBytes)

	numCapsules, err := br.uint16()
	if err != nil {
		return Request{}, err
	}
	req.Capsules = make([]primitives.Capsule, numCapsules)
	for i := range req.Capsules {
		raw, err := br.lenPrefixed()
		if err != nil {
			return Request{}, err
		}
		capsule, err := primitives.CapsuleFromBytes(raw)
		if err != nil {
			return Request{}, err
		}
		req.Capsules[i] = capsule
	}

	kfragHRAC, err := br.bytes(32)
	if err != nil {
		return Request{}, err
	}
	copy(req.EncryptedKeyFrag.HRAC[:], kfragHRAC)
	pubBytes, err := br.lenPrefixed()
	if err != nil {
		return Request{}, err
	}
	publisherPK, err := primitives.UnmarshalPublicKey(pubBytes)
	if err != nil {
		return Request{}, err
	}
	req.EncryptedKeyFrag.PublisherVerifyingPK = publisherPK
	ctLen, err := br.uint32()
	if err != nil {
		return Request{}, err
	}
	ciphertext, err := br.bytes(int(ctLen))
	if err != nil {
		return Request{}, err
	}
	req.EncryptedKeyFrag.Ciphertext = append([]byte{}, ciphertext...)

	bobVKBytes, err := br.lenPrefixed()
	if err != nil {
		return Request{}, err
	}
	req.BobVerifyingKey, err = primitives.UnmarshalPublicKey(bobVKBytes)
	if err != nil {
		return Request{}, err
	}
	publisherVKBytes, err := br.lenPrefixed()
	if err != nil {
		return Request{}, err
	}
	req.PublisherVerifyingKey, err = primitives.UnmarshalPublicKey(publisherVKBytes)
	if err != nil {
		return Request{}, err
	}
	req.Signature, err = br.lenPrefixed()
	if err != nil {
		return Request{}, err
	}

	conditionsList, ctx, err := decodeConditionsPayload(payload, len(req.Capsules))
	if err != nil {
		return Request{}, fmt.Errorf("reencryption: decoding conditions payload: %w", err)
	}
	req.Conditions = conditionsList
	req.Context = ctx

	return req, nil
}

// Bytes serializes resp as a compact binary encoding; responses never carry
// a condition payload, so no delimiter framing is involved.
func (resp Response) Bytes() []byte {
	var out []byte
	out = appendUint16(out, uint16(len(resp.Capsules)))
	for _, c := range resp.Capsules {
		out = appendLenPrefixed(out, c.Bytes())
	}
	out = appendUint16(out, uint16(len(resp.CFrags)))
	for _, cf := range resp.CFrags {
		out = append(out, cf.E1.Bytes()...)
		out = append(out, cf.Precursor.Bytes()...)
		out = append(out, cf.Commitment.Bytes()...)
		out = append(out, cf.ProofT1.Bytes()...)
		out = append(out, cf.ProofT2.Bytes()...)
		s := make([]byte, 32)
		cf.ProofS.FillBytes(s)
		out = append(out, s...)
		out = appendLenPrefixed(out, cf.OperatorVK.Bytes())
	}
	out = appendLenPrefixed(out, resp.Signature)
	return out
}

// ParseResponse is the inverse of Response.Bytes.
func ParseResponse(b []byte) (Response, error) {
	br := &byteReader{b: b}
	var resp Response

	numCapsules, err := br.uint16()
	if err != nil {
		return Response{}, err
	}
	resp.Capsules = make([]primitives.Capsule, numCapsules)
	for i := range resp.Capsules {
		raw, err := br.lenPrefixed()
		if err != nil {
			return Response{}, err
		}
		capsule, err := primitives.CapsuleFromBytes(raw)
		if err != nil {
			return Response{}, err
		}
		resp.Capsules[i] = capsule
	}

	numCFrags, err := br.uint16()
	if err != nil {
		return Response{}, err
	}
	resp.CFrags = make([]primitives.CapsuleFragment, numCFrags)
	for i := range resp.CFrags {
		cf := primitives.CapsuleFragment{}
		cf.E1, err = br.point()
		if err != nil {
			return Response{}, err
		}
		cf.Precursor, err = br.point()
		if err != nil {
			return Response{}, err
		}
		cf.Commitment, err = br.point()
		if err != nil {
			return Response{}, err
		}
		cf.ProofT1, err = br.point()
		if err != nil {
			return Response{}, err
		}
		cf.ProofT2, err = br.point()
		if err != nil {
			return Response{}, err
		}
		sBytes, err := br.bytes(32)
		if err != nil {
			return Response{}, err
		}
		cf.ProofS = bigFromBytes(sBytes)
		vkBytes, err := br.lenPrefixed()
		if err != nil {
			return Response{}, err
		}
		cf.OperatorVK, err = primitives.UnmarshalPublicKey(vkBytes)
		if err != nil {
			return Response{}, err
		}
		resp.CFrags[i] = cf
	}

	resp.Signature, err = br.lenPrefixed()
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// encodeConditionsPayload produces base64(JSON(...)) per the wire format:
// the condition payload trailing the delimiter is base64 text, not raw
// JSON bytes.
func encodeConditionsPayload(trees []*conditions.Lingo, ctx conditions.Context) ([]byte, error) {
	if len(trees) == 0 && len(ctx) == 0 {
		return nil, nil
	}
	raw := make([]json.RawMessage, len(trees))
	for i, t := range trees {
		if t == nil {
			raw[i] = json.RawMessage("null")
			continue
		}
		b, err := conditions.MarshalLingo(t)
		if err != nil {
			return nil, err
		}
		raw[i] = b
	}
	jsonBytes, err := json.Marshal(conditionsPayload{Conditions: raw, Context: ctx})
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(jsonBytes)))
	base64.StdEncoding.Encode(encoded, jsonBytes)
	return encoded, nil
}

func decodeConditionsPayload(payload []byte, numCapsules int) ([]*conditions.Lingo, conditions.Context, error) {
	if len(payload) == 0 {
		return nil, nil, nil
	}
	jsonBytes, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("malformed base64 conditions payload: %w", err)
	}
	var cp conditionsPayload
	if err := json.Unmarshal(jsonBytes, &cp); err != nil {
		return nil, nil, err
	}
	if len(cp.Conditions) != 0 && len(cp.Conditions) != numCapsules {
		return nil, nil, fmt.Errorf("%d condition entries for %d capsules", len(cp.Conditions), numCapsules)
	}
	trees := make([]*conditions.Lingo, len(cp.Conditions))
	for i, raw := range cp.Conditions {
		if string(raw) == "null" || len(raw) == 0 {
			continue
		}
		tree, err := conditions.UnmarshalLingo(raw)
		if err != nil {
			return nil, nil, err
		}
		trees[i] = tree
	}
	return trees, cp.Context, nil
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

func appendLenPrefixed(b, v []byte) []byte {
	b = appendUint16(b, uint16(len(v)))
	return append(b, v...)
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
		return nil, fmt.Errorf("reencryption: unexpected end of encoded data")
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *byteReader) lenPrefixed() ([]byte, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(n))
}

func (r *byteReader) point() (primitives.Point, error) {
	b, err := r.bytes(33)
	if err != nil {
		return primitives.Point{}, err
	}
	return primitives.PointFromBytes(b)
}

func bigFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
