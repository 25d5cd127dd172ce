package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"math/big"
)

// Capsule is the ciphertext header produced by the encryptor. It is
// immutable once created; the capsule's E component is the only field a
// proxy (operator) ever sees or re-encrypts.
type Capsule struct {
	E Point
}

// Bytes returns the compressed encoding of the capsule.
func (c Capsule) Bytes() []byte {
	return c.E.Bytes()
}

// CapsuleFromBytes parses a capsule previously produced by Bytes.
func CapsuleFromBytes(b []byte) (Capsule, error) {
	p, err := PointFromBytes(b)
	if err != nil {
		return Capsule{}, err
	}
	return Capsule{E: p}, nil
}

// Encapsulate is run by the data owner (Alice) at encryption time: it draws
// a random capsule and the symmetric key an accompanying ciphertext was (or
// will be) encrypted under. It lives in this package because it shares the
// curve arithmetic, but operators never call it — only the client side
// (outside this module's scope) does, at encryption time.
func Encapsulate(ownerPK PublicKey, rand RandReader) (Capsule, []byte, error) {
	r, err := randomScalar(rand)
	if err != nil {
		return Capsule{}, nil, err
	}
	e := scalarBaseMul(r)
	v := ownerPK.ScalarMul(r)
	return Capsule{E: e}, kdf(v), nil
}

// KeyFragment is a decrypted share of a delegation key: the output of
// DecryptKeyFrag and the input to Reencrypt.
type KeyFragment struct {
	// RK is the blinded re-encryption scalar: RK = ownerSK * d^-1, where d
	// is a Diffie-Hellman secret shared between the precursor scalar and
	// the delegatee's public key. Never transmitted in the clear.
	RK *big.Int
	// Precursor is w*G, where w is the ephemeral scalar used to derive d.
	// Sent alongside the cfrag so the delegatee can recompute d.
	Precursor Point
	// Commitment is RK*G, included so CapsuleFragment recipients can check
	// a cfrag was produced with the committed RK without learning it (see
	// VerifyCFrag).
	Commitment Point
	// DelegatingPK is the owner's public key the kfrag was generated under.
	DelegatingPK PublicKey
	// ReceivingPK is the delegatee's (Bob's) public key the kfrag targets.
	ReceivingPK PublicKey
}

// GenerateKeyFragment is the Alice-side (owner) key-fragment generation
// step. It is included for completeness of the primitive adapter's pure
// functions and for test fixtures; the production delegation flow that
// calls it runs on the publisher's machine, outside this node's scope.
func GenerateKeyFragment(ownerSK PrivateKey, bobPK PublicKey, rand RandReader) (KeyFragment, error) {
	w, err := randomScalar(rand)
	if err != nil {
		return KeyFragment{}, err
	}
	precursor := scalarBaseMul(w)
	shared := bobPK.ScalarMul(w) // w*B == ECDH(w, bobPK)
	d := new(big.Int).SetBytes(kdf(shared))
	d = mod(d)
	dInv := new(big.Int).ModInverse(d, order())
	if dInv == nil {
		return KeyFragment{}, fmt.Errorf("primitives: degenerate DH secret")
	}
	rk := mod(new(big.Int).Mul(ownerSK.Scalar(), dInv))
	return KeyFragment{
		RK:           rk,
		Precursor:    precursor,
		Commitment:   scalarBaseMul(rk),
		DelegatingPK: ownerSK.Public(),
		ReceivingPK:  bobPK,
	}, nil
}

// EncryptedKeyFrag is a KeyFragment encrypted for one specific operator and
// bound to a policy (HRAC) and publisher. Only the intended operator's
// decrypting key can open it.
type EncryptedKeyFrag struct {
	HRAC                 [32]byte
	PublisherVerifyingPK PublicKey
	Ciphertext           []byte // ECIES(operatorPK, encode(KeyFragment) || signature)
}

// EncryptKeyFragment seals kfrag for operatorPK, binding it to hrac and
// signing it with the publisher's signing key so DecryptKeyFrag can verify
// provenance.
func EncryptKeyFragment(kfrag KeyFragment, hrac [32]byte, publisherSK PrivateKey, operatorPK PublicKey, rand RandReader) (EncryptedKeyFrag, error) {
	payload := encodeKeyFragment(kfrag)
	sig, err := publisherSK.Sign(Digest(hrac[:], payload))
	if err != nil {
		return EncryptedKeyFrag{}, err
	}
	plaintext := append(append([]byte{}, payload...), sig...)
	ct, err := eciesEncrypt(operatorPK, plaintext, rand)
	if err != nil {
		return EncryptedKeyFrag{}, err
	}
	return EncryptedKeyFrag{
		HRAC:                 hrac,
		PublisherVerifyingPK: publisherSK.Public(),
		Ciphertext:           ct,
	}, nil
}

// DecryptKeyFrag decrypts an EncryptedKeyFrag using the operator's
// decrypting key, verifying the publisher's signature and the bound HRAC.
//
// Errors: ErrDecryptionFailed on bad padding/MAC, ErrInvalidSignature on a
// publisher signature mismatch, ErrWrongPolicy if the embedded HRAC differs
// from hrac.
func DecryptKeyFrag(enc EncryptedKeyFrag, decryptingKey PrivateKey, hrac [32]byte, publisherVK PublicKey) (KeyFragment, error) {
	plaintext, err := eciesDecrypt(decryptingKey, enc.Ciphertext)
	if err != nil {
		return KeyFragment{}, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(plaintext) < 64 {
		return KeyFragment{}, fmt.Errorf("%w: short plaintext", ErrDecryptionFailed)
	}
	payload, sig := plaintext[:len(plaintext)-64], plaintext[len(plaintext)-64:]
	if !Verify(publisherVK, Digest(enc.HRAC[:], payload), sig) {
		return KeyFragment{}, ErrInvalidSignature
	}
	if enc.HRAC != hrac {
		return KeyFragment{}, ErrWrongPolicy
	}
	kfrag, err := decodeKeyFragment(payload)
	if err != nil {
		return KeyFragment{}, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return kfrag, nil
}

// CapsuleFragment (cfrag) is the output of one re-encryption.
type CapsuleFragment struct {
	E1         Point
	Precursor  Point
	Commitment Point // copied from the kfrag, carried for verification
	// DLEQ proof that E1 = RK*Capsule.E for the same RK committed to in
	// Commitment = RK*G, without revealing RK.
	ProofT1, ProofT2 Point
	ProofS           *big.Int
	OperatorVK       PublicKey
}

// Reencrypt performs one proxy re-encryption: given a decrypted key
// fragment and a capsule, it returns the capsule fragment an operator sends
// back to the requester. It is deterministic given kfrag, capsule and the
// randomness used for the DLEQ proof, and performs no I/O.
func Reencrypt(kfrag KeyFragment, capsule Capsule, operatorSK PrivateKey, rand RandReader) (CapsuleFragment, error) {
	e1 := capsule.E.ScalarMul(kfrag.RK)

	k, err := randomScalar(rand)
	if err != nil {
		return CapsuleFragment{}, err
	}
	t1 := scalarBaseMul(k)
	t2 := capsule.E.ScalarMul(k)
	c := dleqChallenge(kfrag.Commitment, e1, t1, t2)
	s := mod(new(big.Int).Add(k, new(big.Int).Mul(c, kfrag.RK)))

	return CapsuleFragment{
		E1:         e1,
		Precursor:  kfrag.Precursor,
		Commitment: kfrag.Commitment,
		ProofT1:    t1,
		ProofT2:    t2,
		ProofS:     s,
		OperatorVK: operatorSK.Public(),
	}, nil
}

// VerifyCFrag checks the cfrag's DLEQ proof: that cfrag.E1 was derived
// from capsule.E with the same scalar committed to in cfrag.Commitment.
// aliceVK, ursulaVK, policyPK and bobPK are accepted but not checked, so
// the cfrag is not bound to a particular operator, publisher, policy or
// delegatee.
func VerifyCFrag(cfrag CapsuleFragment, capsule Capsule, aliceVK, ursulaVK, policyPK, bobPK PublicKey) bool {
	c := dleqChallenge(cfrag.Commitment, cfrag.E1, cfrag.ProofT1, cfrag.ProofT2)
	lhs1 := scalarBaseMul(cfrag.ProofS)
	rhs1 := cfrag.ProofT1.Add(cfrag.Commitment.ScalarMul(c))
	lhs2 := capsule.E.ScalarMul(cfrag.ProofS)
	rhs2 := cfrag.ProofT2.Add(cfrag.E1.ScalarMul(c))
	return lhs1.Equal(rhs1) && lhs2.Equal(rhs2)
}

// RecoverSymmetricKey is run by the delegatee (Bob): given enough verified
// cfrags is not actually required in the single-hop scheme this package
// implements (any one valid cfrag suffices) — combining multiple cfrags is
// the retrieval planner's job (picking the first `threshold` valid ones);
// this recovers the capsule's symmetric key from one cfrag and Bob's
// decrypting key.
func RecoverSymmetricKey(cfrag CapsuleFragment, bobSK PrivateKey) []byte {
	d := mod(new(big.Int).SetBytes(kdf(cfrag.Precursor.ScalarMul(bobSK.Scalar()))))
	v := cfrag.E1.ScalarMul(d)
	return kdf(v)
}

func dleqChallenge(a, b, t1, t2 Point) *big.Int {
	h := Digest(a.Bytes(), b.Bytes(), t1.Bytes(), t2.Bytes())
	return mod(new(big.Int).SetBytes(h))
}

func kdf(p Point) []byte {
	return Digest([]byte("nucypher-kdf"), p.Bytes())
}

func encodeKeyFragment(k KeyFragment) []byte {
	rk := make([]byte, 32)
	k.RK.FillBytes(rk)
	out := append([]byte{}, rk...)
	out = append(out, k.Precursor.Bytes()...)
	out = append(out, k.Commitment.Bytes()...)
	out = append(out, k.DelegatingPK.Bytes()...)
	out = append(out, k.ReceivingPK.Bytes()...)
	return out
}

func decodeKeyFragment(b []byte) (KeyFragment, error) {
	// 32 bytes scalar + 4 compressed points of 33 bytes each.
	const pointLen = 33
	if len(b) != 32+4*pointLen {
		return KeyFragment{}, fmt.Errorf("unexpected key fragment length %d", len(b))
	}
	rk := mod(new(big.Int).SetBytes(b[:32]))
	off := 32
	next := func() (Point, error) {
		p, err := PointFromBytes(b[off : off+pointLen])
		off += pointLen
		return p, err
	}
	precursor, err := next()
	if err != nil {
		return KeyFragment{}, err
	}
	commitment, err := next()
	if err != nil {
		return KeyFragment{}, err
	}
	delegating, err := next()
	if err != nil {
		return KeyFragment{}, err
	}
	receiving, err := next()
	if err != nil {
		return KeyFragment{}, err
	}
	return KeyFragment{
		RK:           rk,
		Precursor:    precursor,
		Commitment:   commitment,
		DelegatingPK: PublicKey{Point: delegating},
		ReceivingPK:  PublicKey{Point: receiving},
	}, nil
}

// eciesEncrypt is a minimal ECIES construction: an ephemeral keypair, an
// ECDH-derived AES-256-GCM key, ephemeral public key prefixed to the
// nonce||ciphertext. AES-GCM is used directly from the standard library:
// no example repo in the corpus reaches for a third-party AEAD, so this is
// the one ambient concern in this module built on stdlib rather than an
// ecosystem library (see DESIGN.md).
func eciesEncrypt(recipient PublicKey, plaintext []byte, rand RandReader) ([]byte, error) {
	ephSK, ephPK, err := GenerateKeyPair(rand)
	if err != nil {
		return nil, err
	}
	shared := recipient.ScalarMul(ephSK.Scalar())
	key := kdf(shared)[:32]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plaintext, nil)
	out := append([]byte{}, ephPK.Bytes()...)
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

func eciesDecrypt(recipientSK PrivateKey, data []byte) ([]byte, error) {
	const pointLen = 33
	if len(data) < pointLen {
		return nil, fmt.Errorf("ciphertext too short")
	}
	ephPK, err := PointFromBytes(data[:pointLen])
	if err != nil {
		return nil, err
	}
	shared := ephPK.ScalarMul(recipientSK.Scalar())
	key := kdf(shared)[:32]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	rest := data[pointLen:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
