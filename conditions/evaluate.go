package conditions

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/KPrasch/nucypher/chain"
)

// Context is the request-scoped variable bindings substitution resolves
// ":name" references against. Values may themselves be slices.
type Context map[string]interface{}

func resolve(v interface{}, ctx Context) (interface{}, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, ":") {
		return v, nil
	}
	name := s[1:]
	resolved, ok := ctx[name]
	if !ok {
		return nil, &ErrRequiredInput{Name: name}
	}
	// Substitution does not recurse: a resolved value is used as-is even if
	// it happens to look like another variable reference.
	return resolved, nil
}

func resolveAll(vs []interface{}, ctx Context) ([]interface{}, error) {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		r, err := resolve(v, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// leafCounter assigns each leaf a stable left-to-right index across a tree,
// matching the order Parse builds leaves in.
type leafCounter struct{ n int }

func (lc *leafCounter) next() int {
	i := lc.n
	lc.n++
	return i
}

// skip advances lc past every leaf in l without evaluating any of them, so a
// leaf in a short-circuited subtree still keeps the index it would have had
// if every leaf had been evaluated left to right.
func (lc *leafCounter) skip(l *Lingo) {
	if l.Leaf != nil {
		lc.n++
		return
	}
	lc.skip(l.Left)
	lc.skip(l.Right)
}

// Evaluate walks l against live chain state and ctx, short-circuiting
// and/or in left-to-right order. It returns nil on success, or a
// *FailedError / *ErrRequiredInput / chain error on failure.
func Evaluate(ctx context.Context, l *Lingo, c chain.Chain, vars Context) error {
	lc := &leafCounter{}
	return evaluate(ctx, l, c, vars, lc)
}

func evaluate(ctx context.Context, l *Lingo, c chain.Chain, vars Context, lc *leafCounter) error {
	if l.Leaf != nil {
		idx := lc.next()
		ok, err := evaluateLeaf(ctx, *l.Leaf, c, vars)
		if err != nil {
			return err
		}
		if !ok {
			return &FailedError{Leaf: idx}
		}
		return nil
	}

	leftErr := evaluate(ctx, l.Left, c, vars, lc)
	switch l.Op {
	case And:
		if leftErr != nil {
			// Still advance past the right subtree's leaves so later leaves
			// keep a stable index even though they are not evaluated.
			lc.skip(l.Right)
			return leftErr
		}
		return evaluate(ctx, l.Right, c, vars, lc)
	case Or:
		if leftErr == nil {
			lc.skip(l.Right)
			return nil
		}
		rightErr := evaluate(ctx, l.Right, c, vars, lc)
		if rightErr == nil {
			return nil
		}
		return rightErr
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, l.Op)
	}
}

func evaluateLeaf(ctx context.Context, cond Condition, c chain.Chain, vars Context) (bool, error) {
	if !c.ChainIDSupported(cond.Chain) {
		return false, &chain.ErrNoConnectionForChain{ChainID: cond.Chain}
	}

	var decoded interface{}
	switch cond.Kind {
	case KindTime:
		ts, err := c.BlockTimestamp(ctx, cond.Chain)
		if err != nil {
			return false, err
		}
		decoded = ts
	case KindRpc:
		params, err := resolveAll(cond.Params, vars)
		if err != nil {
			return false, err
		}
		decoded, err = evaluateRpc(ctx, c, cond, params)
		if err != nil {
			return false, err
		}
	case KindContract:
		params, err := resolveAll(cond.Params, vars)
		if err != nil {
			return false, err
		}
		decoded, err = evaluateContract(ctx, c, cond, params)
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("%w: unknown leaf kind %q", ErrInvalidCondition, cond.Kind)
	}

	if cond.ReturnValueTest.Index != nil {
		seq, ok := decoded.([]interface{})
		if !ok || *cond.ReturnValueTest.Index >= len(seq) {
			return false, fmt.Errorf("%w: return value index out of range", ErrInvalidCondition)
		}
		decoded = seq[*cond.ReturnValueTest.Index]
	}

	expected, err := resolve(cond.ReturnValueTest.Value, vars)
	if err != nil {
		return false, err
	}
	return compare(decoded, expected, cond.ReturnValueTest.Comparator)
}

// evaluateRpc supports the one JSON-RPC method the node's own condition set
// exercises in practice, eth_getBalance, served through chain.Chain's
// EthCall; any other method is rejected with ErrInvalidCondition.
func evaluateRpc(ctx context.Context, c chain.Chain, cond Condition, params []interface{}) (interface{}, error) {
	switch cond.Method {
	case "eth_getBalance":
		if len(params) < 1 {
			return nil, fmt.Errorf("%w: eth_getBalance requires an address parameter", ErrInvalidCondition)
		}
		addrStr, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: eth_getBalance address parameter must be a string", ErrInvalidCondition)
		}
		addr := common.HexToAddress(addrStr)
		out, err := c.EthCall(ctx, cond.Chain, [20]byte(addr), nil)
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetBytes(out), nil
	default:
		return nil, fmt.Errorf("%w: unsupported rpc method %q", ErrInvalidCondition, cond.Method)
	}
}

func evaluateContract(ctx context.Context, c chain.Chain, cond Condition, params []interface{}) (interface{}, error) {
	var method abi.Method
	if cond.StandardContractType != "" {
		m, err := standardMethod(cond.StandardContractType, cond.Method)
		if err != nil {
			return nil, err
		}
		method = m
	} else {
		parsedABI, err := abi.JSON(strings.NewReader(wrapABI(cond.FunctionABI)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
		m, ok := parsedABI.Methods[cond.Method]
		if !ok {
			return nil, fmt.Errorf("%w: method %q not in abi", ErrInvalidCondition, cond.Method)
		}
		method = m
	}

	data, err := method.Inputs.Pack(params...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode params: %v", ErrInvalidCondition, err)
	}
	calldata := append(append([]byte{}, method.ID...), data...)

	addr := common.HexToAddress(cond.ContractAddress)
	out, err := c.EthCall(ctx, cond.Chain, [20]byte(addr), calldata)
	if err != nil {
		return nil, err
	}

	values, err := method.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("internal error decoding contract output: %v", err)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	asSeq := make([]interface{}, len(values))
	copy(asSeq, values)
	return asSeq, nil
}

func wrapABI(fragment json.RawMessage) string {
	return "[" + string(fragment) + "]"
}
