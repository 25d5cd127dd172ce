package primitives

import "errors"

// Sentinel errors returned by this package. reencryption.StatusCode maps
// these to the HTTP status codes in spec §7.
var (
	// ErrDecryptionFailed is returned by DecryptKeyFrag when the MAC or
	// padding on the encrypted key fragment does not check out.
	ErrDecryptionFailed = errors.New("primitives: decryption failed")
	// ErrInvalidSignature is returned whenever a signature verification
	// fails, including the publisher signature embedded in a key fragment.
	ErrInvalidSignature = errors.New("primitives: invalid signature")
	// ErrWrongPolicy is returned by DecryptKeyFrag when the HRAC bound into
	// the encrypted key fragment does not match the HRAC supplied by the
	// caller.
	ErrWrongPolicy = errors.New("primitives: wrong policy")
	// ErrMalformedPoint is returned when a byte string does not decode to a
	// valid point on the curve.
	ErrMalformedPoint = errors.New("primitives: malformed curve point")
	// ErrMalformedShare is returned when a DKG share or transcript fails a
	// structural or verifiable-secret-sharing check.
	ErrMalformedShare = errors.New("primitives: malformed share")
	// ErrThresholdNotMet is returned when fewer than threshold contributions
	// are available to combine.
	ErrThresholdNotMet = errors.New("primitives: threshold not met")
)
