package reencryption

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/chain"
	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/primitives"
)

// Service implements the operator-side reencrypt pipeline. It is
// stateless apart from the shared revocation set (read-mostly) and the
// audit log (append-only); multiple requests may be served concurrently.
type Service struct {
	logger        *zap.SugaredLogger
	decryptingKey primitives.PrivateKey
	signingKey    primitives.PrivateKey
	revoked       *RevocationSet
	audit         *AuditLog
	chain         chain.Chain
	rand          primitives.RandReader
}

// NewService wires together one operator's reencryption pipeline.
func NewService(logger *zap.SugaredLogger, decryptingKey, signingKey primitives.PrivateKey, revoked *RevocationSet, audit *AuditLog, c chain.Chain, rand primitives.RandReader) *Service {
	return &Service{
		logger:        logger,
		decryptingKey: decryptingKey,
		signingKey:    signingKey,
		revoked:       revoked,
		audit:         audit,
		chain:         c,
		rand:          rand,
	}
}

// Reencrypt runs the full pipeline described by the reencryption service's
// design: revocation check, kfrag decryption, request authentication,
// per-capsule condition evaluation, reencryption, response signing, and a
// best-effort audit log write.
func (s *Service) Reencrypt(ctx context.Context, req Request) (Response, error) {
	if s.revoked.IsRevoked(req.HRAC) {
		return Response{}, fmt.Errorf("reencryption: hrac %s: %w", req.HRAC, ErrPolicyRevoked)
	}

	kfrag, err := primitives.DecryptKeyFrag(req.EncryptedKeyFrag, s.decryptingKey, [32]byte(req.HRAC), req.PublisherVerifyingKey)
	if err != nil {
		return Response{}, err
	}

	if !req.Authenticate() {
		return Response{}, ErrInvalidRequestSignature
	}

	if len(req.Conditions) != 0 && len(req.Conditions) != len(req.Capsules) {
		return Response{}, fmt.Errorf("reencryption: %d condition trees for %d capsules", len(req.Conditions), len(req.Capsules))
	}
	for i := range req.Capsules {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		if i >= len(req.Conditions) || req.Conditions[i] == nil {
			continue
		}
		if err := conditions.Evaluate(ctx, req.Conditions[i], s.chain, req.Context); err != nil {
			s.logger.Infow("reencryption rejected by conditions", "hrac", req.HRAC.String(), "capsule_index", i, "error", err)
			return Response{}, err
		}
	}

	cfrags := make([]primitives.CapsuleFragment, len(req.Capsules))
	for i, capsule := range req.Capsules {
		cfrag, err := primitives.Reencrypt(kfrag, capsule, s.signingKey, s.rand)
		if err != nil {
			return Response{}, fmt.Errorf("reencryption: reencrypting capsule %d: %w", i, err)
		}
		cfrags[i] = cfrag
	}

	resp, err := signResponse(s.signingKey, req.Capsules, cfrags)
	if err != nil {
		return Response{}, err
	}

	requestID := uuid.New()
	if err := s.audit.Record(requestID, req.BobVerifyingKey.Bytes(), req.HRAC, time.Now()); err != nil {
		s.logger.Warnw("audit log write failed, continuing", "request_id", requestID, "error", err)
	}

	return resp, nil
}
