package primitives

import (
	stdecdsa "crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// ecdsaPrivateKey is an alias kept local to this package so the rest of the
// code never has to import crypto/ecdsa directly.
type ecdsaPrivateKey = stdecdsa.PrivateKey

// privateKeyToECDSA adapts our scalar representation to the
// *ecdsa.PrivateKey shape go-ethereum's crypto.Sign expects.
func privateKeyToECDSA(d *big.Int) (*ecdsaPrivateKey, error) {
	b := make([]byte, 32)
	d.FillBytes(b)
	return crypto.ToECDSA(b)
}
