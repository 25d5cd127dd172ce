// Package operator composes the independent capability objects that make
// up one operator node — Signer, Decryptor, Ritualist, HttpServer — the
// way the design notes describe: a flat bundle with no inheritance, each
// capability reachable only through its own narrow interface.
package operator

import (
	"sync"

	"github.com/KPrasch/nucypher/primitives"
)

// Authenticator holds the node's signing key; signatures made through it
// go through Sign, which holds a lock for the duration of the signature.
// It is not the only holder of the key: the same PrivateKey value is also
// handed to reencryption.NewService, which signs responses with it directly.
type Authenticator struct {
	mu  sync.Mutex
	key primitives.PrivateKey
}

// NewAuthenticator wraps an existing signing key.
func NewAuthenticator(key primitives.PrivateKey) *Authenticator {
	return &Authenticator{key: key}
}

// Public returns the authenticator's verifying key; this does not require
// the lock, since PrivateKey.Public is a pure function of the (unexported)
// scalar and never touches shared mutable state.
func (a *Authenticator) Public() primitives.PublicKey {
	return a.key.Public()
}

// Sign produces a signature over digest, holding the authenticator's lock
// for the duration of the call.
func (a *Authenticator) Sign(digest []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key.Sign(digest)
}

// TransactingPower is a scoped capability handle granting signing rights
// over on-chain transactions for the duration of its borrow. It never
// holds key bytes itself; it only references the authenticator that does.
type TransactingPower struct {
	auth *Authenticator
}

// NewTransactingPower borrows signing rights from auth.
func NewTransactingPower(auth *Authenticator) TransactingPower {
	return TransactingPower{auth: auth}
}

// Sign delegates to the underlying authenticator.
func (p TransactingPower) Sign(digest []byte) ([]byte, error) {
	return p.auth.Sign(digest)
}

// Address derives the operator's on-chain address from the transacting
// key, the same way every other address in this system is derived.
func (p TransactingPower) Address() [20]byte {
	return addressFromPublicKey(p.auth.Public())
}

// DecryptingPower is a handle wrapping the decrypting key. It has no
// DecryptKeyFrag method of its own: Key returns the key itself, and the
// reencryption service is constructed with its own copy of the key.
type DecryptingPower struct {
	key primitives.PrivateKey
}

// NewDecryptingPower wraps a decrypting key.
func NewDecryptingPower(key primitives.PrivateKey) DecryptingPower {
	return DecryptingPower{key: key}
}

// Key returns the underlying key; within this package it is used to derive
// the decrypting public key for the node's metadata and status output.
func (p DecryptingPower) Key() primitives.PrivateKey {
	return p.key
}

func addressFromPublicKey(pk primitives.PublicKey) [20]byte {
	digest := primitives.Digest(pk.Bytes())
	var addr [20]byte
	copy(addr[:], digest[len(digest)-20:])
	return addr
}
