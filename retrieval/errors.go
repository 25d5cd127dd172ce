package retrieval

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/KPrasch/nucypher/policy"
	"github.com/KPrasch/nucypher/primitives"
)

// SummarizeFailures collects one combined error per capsule that never
// reached threshold verified cfrags, each wrapping every operator error the
// planner recorded against that capsule. Callers that only need a yes/no
// retrieval outcome (rather than the raw per-operator error maps Retrieve
// returns) can use this instead of walking results/errs themselves.
func SummarizeFailures(results []map[policy.OperatorAddr]primitives.CapsuleFragment, errs []map[policy.OperatorAddr]string, threshold int) error {
	var combined *multierror.Error
	for i, r := range results {
		if len(r) >= threshold {
			continue
		}
		var perCapsule *multierror.Error
		for addr, msg := range errs[i] {
			perCapsule = multierror.Append(perCapsule, fmt.Errorf("operator %x: %s", addr, msg))
		}
		summary := fmt.Sprintf("capsule %d: only %d/%d cfrags recovered", i, len(r), threshold)
		if err := perCapsule.ErrorOrNil(); err != nil {
			combined = multierror.Append(combined, fmt.Errorf("%s: %w", summary, err))
		} else {
			combined = multierror.Append(combined, fmt.Errorf("%s", summary))
		}
	}
	return combined.ErrorOrNil()
}
