package primitives

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// RandReader is the CSPRNG handle every randomized function in this package
// takes explicitly, rather than reaching for a package-global source.
type RandReader = io.Reader

// PrivateKey is a secp256k1 scalar. The zero value is not a valid key; use
// GenerateKeyPair or UnmarshalPrivateKey.
//
// A PrivateKey is passed by value: DecryptKeyFrag takes it as a value
// parameter and Sign has a value receiver.
type PrivateKey struct {
	d *big.Int
}

// PublicKey is a point on secp256k1: either a signing ("verifying") key or
// an encrypting key, depending on context.
type PublicKey struct {
	Point
}

// GenerateKeyPair draws a fresh (PrivateKey, PublicKey) pair from rand.
func GenerateKeyPair(rand RandReader) (PrivateKey, PublicKey, error) {
	d, err := randomScalar(rand)
	if err != nil {
		return PrivateKey{}, PublicKey{}, err
	}
	return PrivateKey{d: d}, PublicKey{Point: scalarBaseMul(d)}, nil
}

// Public derives the public key corresponding to sk.
func (sk PrivateKey) Public() PublicKey {
	return PublicKey{Point: scalarBaseMul(sk.d)}
}

// Scalar returns a copy of the raw scalar.
func (sk PrivateKey) Scalar() *big.Int {
	return new(big.Int).Set(sk.d)
}

// PrivateKeyFromScalar wraps an existing scalar as a PrivateKey.
func PrivateKeyFromScalar(d *big.Int) PrivateKey {
	return PrivateKey{d: mod(d)}
}

// MarshalBinary encodes sk as a 32-byte big-endian scalar.
func (sk PrivateKey) MarshalBinary() ([]byte, error) {
	b := make([]byte, 32)
	sk.d.FillBytes(b)
	return b, nil
}

// UnmarshalPrivateKey decodes a 32-byte big-endian scalar.
func UnmarshalPrivateKey(b []byte) (PrivateKey, error) {
	return PrivateKey{d: mod(new(big.Int).SetBytes(b))}, nil
}

// MarshalBinary encodes pk as a compressed SEC1 point.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return pk.Bytes(), nil
}

// UnmarshalPublicKey decodes a compressed SEC1 point.
func UnmarshalPublicKey(b []byte) (PublicKey, error) {
	p, err := PointFromBytes(b)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{Point: p}, nil
}

// Sign produces an ECDSA signature over digest (expected to be a 32-byte
// hash, conventionally crypto.Keccak256 of the signed payload) using sk.
func (sk PrivateKey) Sign(digest []byte) ([]byte, error) {
	priv, err := sk.toECDSA()
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, err
	}
	// Drop the recovery id: verification below is against a known public
	// key, not key recovery.
	return sig[:64], nil
}

// Verify checks sig against digest and pk.
func Verify(pk PublicKey, digest, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	return crypto.VerifySignature(pk.Bytes(), digest, sig)
}

// Digest is the keccak256 hash used throughout this package and the wire
// formats that depend on it, matching the hash family go-ethereum's crypto
// package (and therefore the rest of the domain stack's address/ID
// derivation) already standardizes on.
func Digest(parts ...[]byte) []byte {
	return crypto.Keccak256(parts...)
}

func (sk PrivateKey) toECDSA() (*ecdsaPrivateKey, error) {
	return privateKeyToECDSA(sk.d)
}
