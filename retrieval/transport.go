// Package retrieval implements the client-side retrieval planner (C7): it
// schedules reencryption requests across the operators named in a treasure
// map, collecting and verifying capsule fragments until every capsule has
// at least as many as the policy's threshold.
package retrieval

import (
	"context"

	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

// WorkOrder is the set of capsules (and their condition payloads) the
// planner asks one operator to reencrypt in a single request.
type WorkOrder struct {
	Operator   policy.OperatorAddr
	Capsules   []primitives.Capsule
	Conditions [][]byte
}

// WorkOrderResult is one operator's response to a WorkOrder: a cfrag per
// capsule it was asked about, in the same order, or an error if the whole
// request failed.
type WorkOrderResult struct {
	CFrags []primitives.CapsuleFragment
	Err    error
}

// OperatorTransport is the network boundary the planner calls through;
// production code backs it with HTTP requests to each operator's
// /reencrypt endpoint, tests back it with an in-memory fake.
type OperatorTransport interface {
	SendReencryptionRequest(ctx context.Context, order WorkOrder) WorkOrderResult
}
