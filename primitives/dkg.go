package primitives

import (
	"fmt"
	"math/big"
)

// NodeID identifies a participant in a DKG ritual by its fixed position
// (0-indexed) in the ritual's node list, matching the x-coordinate its
// Shamir share is evaluated at (x = id+1, so no participant ever holds the
// share at x=0).
type NodeID uint32

func (id NodeID) x() *big.Int {
	return big.NewInt(int64(id) + 1)
}

// shamirPolynomial is a degree-(threshold-1) polynomial over the secp256k1
// scalar field, generated by one dealer during round 1. This mirrors
// tuneinsight/lattigo's multiparty.ShamirPolynomial, reduced from an RLWE
// ring element per coefficient down to a single scalar per coefficient —
// the field this scheme needs is Z_n (n the curve order), not a
// polynomial ring.
type shamirPolynomial struct {
	coeffs []*big.Int // coeffs[0] is the dealer's secret
}

func newShamirPolynomial(secret *big.Int, threshold int, rand RandReader) (*shamirPolynomial, error) {
	coeffs := make([]*big.Int, threshold)
	coeffs[0] = mod(secret)
	for i := 1; i < threshold; i++ {
		c, err := randomScalar(rand)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return &shamirPolynomial{coeffs: coeffs}, nil
}

func (p *shamirPolynomial) evaluate(x *big.Int) *big.Int {
	// Horner's method.
	acc := new(big.Int).Set(p.coeffs[len(p.coeffs)-1])
	for i := len(p.coeffs) - 2; i >= 0; i-- {
		acc = mod(new(big.Int).Add(new(big.Int).Mul(acc, x), p.coeffs[i]))
	}
	return acc
}

// commitments returns Feldman VSS commitments coeffs[i]*G, letting any
// recipient of a share verify it against the dealer's polynomial without
// learning the polynomial itself.
func (p *shamirPolynomial) commitments() []Point {
	out := make([]Point, len(p.coeffs))
	for i, c := range p.coeffs {
		out[i] = scalarBaseMul(c)
	}
	return out
}

// verifyShare checks that share = f(x) for the polynomial committed to by
// commitments, using the Feldman identity f(x)*G == sum_i commitments[i] *
// x^i.
func verifyShare(share *big.Int, x *big.Int, commitments []Point) bool {
	lhs := scalarBaseMul(share)
	rhs := Point{}
	xPow := big.NewInt(1)
	for i, c := range commitments {
		term := c.ScalarMul(xPow)
		if i == 0 {
			rhs = term
		} else {
			rhs = rhs.Add(term)
		}
		xPow = mod(new(big.Int).Mul(xPow, x))
	}
	return lhs.Equal(rhs)
}

// Transcript is the round-1 output of one dealer: a Feldman-committed
// polynomial plus the encrypted shares it owes every other participant.
// Analogous to a Ferveo PVSS transcript; here a direct Shamir/Feldman
// scheme stands in since no pairing-friendly curve is available in the
// dependency corpus (see DESIGN.md).
type Transcript struct {
	RitualID    uint32
	Dealer      NodeID
	Commitments []Point
	// EncryptedShares[j] is the share owed to participant j, ECIES-sealed
	// under that participant's public key so only they can read it.
	EncryptedShares map[NodeID][]byte
}

// GenerateTranscript runs the round-1 dealing step for participant me: it
// draws a fresh degree-(threshold-1) polynomial, computes every other
// participant's share, and seals each one for its recipient.
func GenerateTranscript(ritualID uint32, me NodeID, nodes map[NodeID]PublicKey, threshold int, rand RandReader) (Transcript, error) {
	if threshold < 1 || threshold > len(nodes) {
		return Transcript{}, fmt.Errorf("%w: threshold %d out of range for %d nodes", ErrMalformedShare, threshold, len(nodes))
	}
	secret, err := randomScalar(rand)
	if err != nil {
		return Transcript{}, err
	}
	poly, err := newShamirPolynomial(secret, threshold, rand)
	if err != nil {
		return Transcript{}, err
	}
	shares := make(map[NodeID][]byte, len(nodes))
	for id, pk := range nodes {
		s := poly.evaluate(id.x())
		b := make([]byte, 32)
		s.FillBytes(b)
		sealed, err := eciesEncrypt(pk, b, rand)
		if err != nil {
			return Transcript{}, err
		}
		shares[id] = sealed
	}
	return Transcript{
		RitualID:        ritualID,
		Dealer:          me,
		Commitments:     poly.commitments(),
		EncryptedShares: shares,
	}, nil
}

// AggregatedTranscript is the round-2 output: the combined public key and
// commitments from every dealer's transcript, enough for any participant to
// later verify their own combined share and any decryption share produced
// under this ritual.
type AggregatedTranscript struct {
	RitualID    uint32
	Dealers     []NodeID
	Commitments map[NodeID][]Point // per-dealer commitment vector, preserved for audit/verification
	PublicKey   Point              // sum of each dealer's constant-term commitment
}

// AggregateTranscripts validates every transcript (decrypting and
// Feldman-verifying this participant's own share from each) and combines
// them into the ritual's aggregated transcript, the ritual's DKG public
// key, and this participant's combined private share.
//
// The combined share is this participant's point on the sum of all
// dealers' polynomials, i.e. f(x) = sum_d f_d(x) evaluated at x = me+1 —
// the standard joint-Feldman-VSS combination, matching the additive
// combination tuneinsight/lattigo's multiparty.Combiner performs over RLWE
// shares, here over Z_n.
func AggregateTranscripts(ritualID uint32, me NodeID, mySK PrivateKey, threshold int, transcripts map[NodeID]Transcript) (AggregatedTranscript, *big.Int, error) {
	if len(transcripts) < threshold {
		return AggregatedTranscript{}, nil, ErrThresholdNotMet
	}
	combinedShare := big.NewInt(0)
	commitments := make(map[NodeID][]Point, len(transcripts))
	dealers := make([]NodeID, 0, len(transcripts))
	publicKey := Point{}
	first := true

	for dealer, t := range transcripts {
		if t.RitualID != ritualID {
			return AggregatedTranscript{}, nil, fmt.Errorf("%w: ritual id mismatch in transcript from dealer %d", ErrMalformedShare, dealer)
		}
		sealed, ok := t.EncryptedShares[me]
		if !ok {
			return AggregatedTranscript{}, nil, fmt.Errorf("%w: no share from dealer %d for participant %d", ErrMalformedShare, dealer, me)
		}
		plain, err := eciesDecrypt(mySK, sealed)
		if err != nil {
			return AggregatedTranscript{}, nil, fmt.Errorf("%w: %v", ErrMalformedShare, err)
		}
		share := mod(new(big.Int).SetBytes(plain))
		if !verifyShare(share, me.x(), t.Commitments) {
			return AggregatedTranscript{}, nil, fmt.Errorf("%w: share from dealer %d failed verification", ErrMalformedShare, dealer)
		}
		combinedShare = mod(new(big.Int).Add(combinedShare, share))
		commitments[dealer] = t.Commitments
		dealers = append(dealers, dealer)
		if first {
			publicKey = t.Commitments[0]
			first = false
		} else {
			publicKey = publicKey.Add(t.Commitments[0])
		}
	}

	return AggregatedTranscript{
		RitualID:    ritualID,
		Dealers:     dealers,
		Commitments: commitments,
		PublicKey:   publicKey,
	}, combinedShare, nil
}

// lagrangeCoeff computes the Lagrange basis coefficient for node id's
// x-coordinate over the set present, evaluated at x=0 (secret recovery
// point), matching the derivation in tuneinsight/lattigo's
// multiparty.lagrangeCoeff but reduced to the secp256k1 scalar field
// instead of an RNS ring.
func lagrangeCoeff(id NodeID, present []NodeID) *big.Int {
	xi := id.x()
	num := big.NewInt(1)
	den := big.NewInt(1)
	for _, j := range present {
		if j == id {
			continue
		}
		xj := j.x()
		num = mod(new(big.Int).Mul(num, xj))
		diff := mod(new(big.Int).Sub(xj, xi))
		den = mod(new(big.Int).Mul(den, diff))
	}
	denInv := new(big.Int).ModInverse(den, order())
	return mod(new(big.Int).Mul(num, denInv))
}

// DecryptionShare is one participant's contribution to decrypting a
// ciphertext under a ritual's aggregated public key. Combining at least
// threshold shares (via CombineDecryptionShares) recovers the symmetric key
// without any single participant learning the ritual's private key.
type DecryptionShare struct {
	RitualID uint32
	Node     NodeID
	// Share is combinedShare * ciphertextPoint, the participant's
	// exponentiated contribution.
	Share Point
}

// DeriveDecryptionShare computes this participant's decryption share for
// ciphertextPoint (the capsule-like point the threshold scheme is
// decrypting), given the combined private share AggregateTranscripts
// produced. Callers are responsible for having already evaluated the
// ritual's access conditions before calling this — this function performs
// no condition evaluation of its own.
func DeriveDecryptionShare(ritualID uint32, me NodeID, combinedShare *big.Int, ciphertextPoint Point) DecryptionShare {
	return DecryptionShare{
		RitualID: ritualID,
		Node:     me,
		Share:    ciphertextPoint.ScalarMul(combinedShare),
	}
}

// CombineDecryptionShares reconstructs sum-of-shares * ciphertextPoint
// (i.e. the ritual private key's action on ciphertextPoint) from at least
// threshold valid shares, via Lagrange interpolation at x=0.
func CombineDecryptionShares(shares []DecryptionShare, threshold int) (Point, error) {
	if len(shares) < threshold {
		return Point{}, ErrThresholdNotMet
	}
	present := make([]NodeID, len(shares))
	for i, s := range shares {
		present[i] = s.Node
	}
	result := Point{}
	for i, s := range shares {
		coeff := lagrangeCoeff(s.Node, present)
		term := s.Share.ScalarMul(coeff)
		if i == 0 {
			result = term
		} else {
			result = result.Add(term)
		}
	}
	return result, nil
}
