package reencryption

import (
	"errors"
	"fmt"

	"github.com/KPrasch/nucypher/chain"
	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/primitives"
)

// ErrPolicyRevoked is returned when the request's HRAC is in the local
// revocation set.
var ErrPolicyRevoked = errors.New("reencryption: policy revoked")

// ErrInvalidRequestSignature is returned when the request body's signature
// does not verify against the claimed Bob verifying key.
var ErrInvalidRequestSignature = errors.New("reencryption: invalid request signature")

// StatusCode maps an error returned by Service.Reencrypt to the HTTP status
// the operator's server should respond with, matching the error-kind table
// the rest of the system's error handling design follows.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrPolicyRevoked):
		return 401
	case errors.Is(err, ErrInvalidRequestSignature), errors.Is(err, primitives.ErrInvalidSignature):
		return 401
	case errors.Is(err, primitives.ErrDecryptionFailed):
		return 403
	case isConditionsFailure(err):
		return 403
	case errors.Is(err, primitives.ErrWrongPolicy):
		return 400
	case errors.Is(err, conditions.ErrInvalidCondition):
		return 400
	case isNoConnectionForChain(err):
		return 400
	case errors.Is(err, chain.ErrRpcTimeout), errors.Is(err, chain.ErrRpcError):
		return 502
	default:
		return 500
	}
}

func isNoConnectionForChain(err error) bool {
	var e *chain.ErrNoConnectionForChain
	return errors.As(err, &e)
}

func isConditionsFailure(err error) bool {
	var failed *conditions.FailedError
	if errors.As(err, &failed) {
		return true
	}
	var required *conditions.ErrRequiredInput
	return errors.As(err, &required)
}

func wrapDecodeError(context string, err error) error {
	return fmt.Errorf("reencryption: %s: %w", context, err)
}
