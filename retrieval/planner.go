package retrieval

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

// Planner is the client-side retrieval scheduler: given a treasure map and
// one retrieval kit per capsule, it contacts operators until every capsule
// has collected at least threshold verified capsule fragments, contacting
// each operator at most once.
type Planner struct {
	transport OperatorTransport
}

// NewPlanner builds a Planner that sends work orders through transport.
func NewPlanner(transport OperatorTransport) *Planner {
	return &Planner{transport: transport}
}

// planState is the ephemeral per-invocation bookkeeping the algorithm in
// the design notes describes: per-capsule queried addresses, per-operator
// processed capsules, and the results/errors accumulated so far.
type planState struct {
	queriedByCapsule   []map[policy.OperatorAddr]struct{}
	processedByAddr    map[policy.OperatorAddr]map[int]struct{}
	results            []map[policy.OperatorAddr]primitives.CapsuleFragment
	errs               []map[policy.OperatorAddr]string
}

// Retrieve runs the planner to completion. operatorVKs supplies each
// destination operator's signing key (obtained out of band via node
// metadata) so returned cfrags can be verified; bobVK is the retriever's
// own verifying key.
func (p *Planner) Retrieve(ctx context.Context, tm *policy.TreasureMap, kits []policy.RetrievalKit, operatorVKs map[policy.OperatorAddr]primitives.PublicKey, bobVK primitives.PublicKey) ([]map[policy.OperatorAddr]primitives.CapsuleFragment, []map[policy.OperatorAddr]string) {
	st := &planState{
		queriedByCapsule: make([]map[policy.OperatorAddr]struct{}, len(kits)),
		processedByAddr:  map[policy.OperatorAddr]map[int]struct{}{},
		results:          make([]map[policy.OperatorAddr]primitives.CapsuleFragment, len(kits)),
		errs:             make([]map[policy.OperatorAddr]string, len(kits)),
	}
	queriedAnywhere := map[policy.OperatorAddr]struct{}{}
	for i, kit := range kits {
		st.queriedByCapsule[i] = map[policy.OperatorAddr]struct{}{}
		st.results[i] = map[policy.OperatorAddr]primitives.CapsuleFragment{}
		st.errs[i] = map[policy.OperatorAddr]string{}
		for addr := range kit.QueriedAddresses {
			st.queriedByCapsule[i][addr] = struct{}{}
			queriedAnywhere[addr] = struct{}{}
			if st.processedByAddr[addr] == nil {
				st.processedByAddr[addr] = map[int]struct{}{}
			}
			st.processedByAddr[addr][i] = struct{}{}
		}
	}

	pickOrder := buildPickOrder(tm.Destinations, queriedAnywhere)

	for len(pickOrder) > 0 {
		if isComplete(pickOrder, st.results, tm.Threshold) {
			break
		}
		addr := pickOrder[0]
		pickOrder = pickOrder[1:]

		var capsuleIdx []int
		var capsules []primitives.Capsule
		var condPayloads [][]byte
		for i, kit := range kits {
			if _, done := st.processedByAddr[addr][i]; done {
				continue
			}
			if len(st.results[i]) >= tm.Threshold {
				continue
			}
			capsuleIdx = append(capsuleIdx, i)
			capsules = append(capsules, kit.Capsule)
			condPayloads = append(condPayloads, kit.Conditions)
		}
		if len(capsuleIdx) == 0 {
			continue
		}

		res := p.transport.SendReencryptionRequest(ctx, WorkOrder{Operator: addr, Capsules: capsules, Conditions: condPayloads})
		if res.Err != nil {
			for _, i := range capsuleIdx {
				st.errs[i][addr] = res.Err.Error()
			}
			continue
		}
		if len(res.CFrags) != len(capsuleIdx) {
			for _, i := range capsuleIdx {
				st.errs[i][addr] = fmt.Sprintf("operator returned %d cfrags for %d requested capsules", len(res.CFrags), len(capsuleIdx))
			}
			continue
		}

		operatorVK := operatorVKs[addr]
		for j, i := range capsuleIdx {
			cfrag := res.CFrags[j]
			if !primitives.VerifyCFrag(cfrag, kits[i].Capsule, tm.PublisherVerifyingKey, operatorVK, tm.PolicyEncryptingKey, bobVK) {
				st.errs[i][addr] = "cfrag failed verification"
				continue
			}
			st.results[i][addr] = cfrag
		}

		if st.processedByAddr[addr] == nil {
			st.processedByAddr[addr] = map[int]struct{}{}
		}
		for _, i := range capsuleIdx {
			st.processedByAddr[addr][i] = struct{}{}
			st.queriedByCapsule[i][addr] = struct{}{}
		}
	}

	return st.results, st.errs
}

// RetrieveOrError runs Retrieve and collapses its per-capsule error maps
// into a single combined error when any capsule fell short of threshold,
// for callers that just want a pass/fail outcome.
func (p *Planner) RetrieveOrError(ctx context.Context, tm *policy.TreasureMap, kits []policy.RetrievalKit, operatorVKs map[policy.OperatorAddr]primitives.PublicKey, bobVK primitives.PublicKey) ([]map[policy.OperatorAddr]primitives.CapsuleFragment, error) {
	results, errs := p.Retrieve(ctx, tm, kits, operatorVKs, bobVK)
	return results, SummarizeFailures(results, errs, tm.Threshold)
}

// buildPickOrder returns a random permutation of destinations' addresses
// with any address present in alreadyQueried demoted to the tail (still in
// random order within the tail), matching the fairness rule that an
// operator is never contacted twice within one plan.
func buildPickOrder(destinations map[policy.OperatorAddr]primitives.EncryptedKeyFrag, alreadyQueried map[policy.OperatorAddr]struct{}) []policy.OperatorAddr {
	var head, tail []policy.OperatorAddr
	for addr := range destinations {
		if _, queried := alreadyQueried[addr]; queried {
			tail = append(tail, addr)
		} else {
			head = append(head, addr)
		}
	}
	rand.Shuffle(len(head), func(i, j int) { head[i], head[j] = head[j], head[i] })
	rand.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
	return append(head, tail...)
}

func isComplete(pickOrder []policy.OperatorAddr, results []map[policy.OperatorAddr]primitives.CapsuleFragment, threshold int) bool {
	if len(pickOrder) == 0 {
		return true
	}
	for _, r := range results {
		if len(r) < threshold {
			return false
		}
	}
	return true
}
