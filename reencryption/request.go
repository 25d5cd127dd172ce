// Package reencryption implements the operator-facing PRE reencryption
// service (C6): decrypting a requester's key fragment, authenticating the
// request, gating each capsule on its attached access conditions, and
// returning a signed bundle of capsule fragments.
package reencryption

import (
	"fmt"

	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

// Request is one reencrypt call: a set of capsules to reencrypt under one
// decrypted key fragment, each capsule optionally gated by its own
// condition tree, plus whatever request-scoped context those conditions
// need to evaluate.
type Request struct {
	HRAC                  policy.HRAC
	Capsules              []primitives.Capsule
	EncryptedKeyFrag      primitives.EncryptedKeyFrag
	BobVerifyingKey       primitives.PublicKey
	PublisherVerifyingKey primitives.PublicKey
	// Conditions holds one (possibly nil) tree per capsule, same order as
	// Capsules.
	Conditions []*conditions.Lingo
	Context    conditions.Context
	// Signature is made under BobVerifyingKey over HRAC, the capsules, the
	// encrypted kfrag's ciphertext and BobVerifyingKey (see signedBytes).
	// PublisherVerifyingKey, the other EncryptedKeyFrag fields, Conditions
	// and Context are not covered.
	Signature []byte
}

// signedBytes returns the byte sequence a Request's Signature covers.
func (r Request) signedBytes() []byte {
	var buf []byte
	buf = append(buf, r.HRAC[:]...)
	for _, c := range r.Capsules {
		buf = append(buf, c.Bytes()...)
	}
	buf = append(buf, r.EncryptedKeyFrag.Ciphertext...)
	buf = append(buf, r.BobVerifyingKey.Bytes()...)
	return buf
}

// Authenticate verifies r.Signature against r.BobVerifyingKey.
func (r Request) Authenticate() bool {
	return primitives.Verify(r.BobVerifyingKey, primitives.Digest(r.signedBytes()), r.Signature)
}

// Response is the signed result of a successful reencryption: one cfrag
// per input capsule, in the same order.
type Response struct {
	Capsules []primitives.Capsule
	CFrags   []primitives.CapsuleFragment
	// Signature covers (Capsules, CFrags) under the operator's signing key.
	Signature []byte
}

func (resp Response) signedBytes() []byte {
	var buf []byte
	for _, c := range resp.Capsules {
		buf = append(buf, c.Bytes()...)
	}
	for _, cf := range resp.CFrags {
		buf = append(buf, cf.E1.Bytes()...)
		buf = append(buf, cf.Precursor.Bytes()...)
		buf = append(buf, cf.Commitment.Bytes()...)
		buf = append(buf, cf.ProofT1.Bytes()...)
		buf = append(buf, cf.ProofT2.Bytes()...)
		s := make([]byte, 32)
		cf.ProofS.FillBytes(s)
		buf = append(buf, s...)
		buf = append(buf, cf.OperatorVK.Bytes()...)
	}
	return buf
}

func signResponse(operatorSK primitives.PrivateKey, capsules []primitives.Capsule, cfrags []primitives.CapsuleFragment) (Response, error) {
	resp := Response{Capsules: capsules, CFrags: cfrags}
	sig, err := operatorSK.Sign(primitives.Digest(resp.signedBytes()))
	if err != nil {
		return Response{}, fmt.Errorf("reencryption: signing response: %w", err)
	}
	resp.Signature = sig
	return resp, nil
}
