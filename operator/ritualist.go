package operator

import (
	"context"

	"github.com/KPrasch/nucypher/chain"
	"github.com/KPrasch/nucypher/conditions"
	"github.com/KPrasch/nucypher/primitives"
	"github.com/KPrasch/nucypher/rituals"
)

// Ritualist is the capability wrapping this node's participation in DKG
// rituals: round 1/round 2 event handling and on-demand decryption share
// derivation, all delegated to the underlying engine.
type Ritualist struct {
	engine *rituals.Engine
}

// NewRitualist wraps an already-constructed ritual engine.
func NewRitualist(engine *rituals.Engine) *Ritualist {
	return &Ritualist{engine: engine}
}

// HandleStartRitual reacts to a StartRitual coordinator event.
func (r *Ritualist) HandleStartRitual(ctx context.Context, ritualID uint32) error {
	return r.engine.HandleStartRitual(ctx, ritualID)
}

// HandleStartAggregationRound reacts to a StartAggregationRound event.
func (r *Ritualist) HandleStartAggregationRound(ctx context.Context, ritualID uint32) error {
	return r.engine.HandleStartAggregationRound(ctx, ritualID)
}

// DeriveDecryptionShare serves one threshold-decryption request.
func (r *Ritualist) DeriveDecryptionShare(ctx context.Context, ritualID uint32, ciphertextPoint primitives.Point, tree *conditions.Lingo, c chain.Chain, vars conditions.Context) (primitives.DecryptionShare, error) {
	return r.engine.DeriveDecryptionShare(ctx, ritualID, ciphertextPoint, tree, c, vars)
}
