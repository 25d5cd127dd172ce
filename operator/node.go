package operator

import (
	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/reencryption"
)

// Node is the composed capability bundle for one running operator: a
// signer (Authenticator/TransactingPower), a decryptor (DecryptingPower), a
// ritualist, and the reencryption service, wired together and each reached
// through its own surface. The reencryption service holds both the signing
// key and the decrypting key.
type Node struct {
	Logger *zap.SugaredLogger

	Auth        *Authenticator
	Transacting TransactingPower
	Decrypting  DecryptingPower
	Ritualist   *Ritualist
	Reencryptor *reencryption.Service
	Revoked     *reencryption.RevocationSet

	chainID uint64
}

// NewNode composes a Node from its already-constructed capabilities.
func NewNode(logger *zap.SugaredLogger, auth *Authenticator, decrypting DecryptingPower, ritualist *Ritualist, reencryptor *reencryption.Service, revoked *reencryption.RevocationSet, chainID uint64) *Node {
	return &Node{
		Logger:      logger,
		Auth:        auth,
		Transacting: NewTransactingPower(auth),
		Decrypting:  decrypting,
		Ritualist:   ritualist,
		Reencryptor: reencryptor,
		Revoked:     revoked,
		chainID:     chainID,
	}
}

// OperatorAddress returns this node's on-chain operator address, derived
// from the transacting key.
func (n *Node) OperatorAddress() [20]byte {
	return n.Transacting.Address()
}
