// Package conditions implements the access-condition DSL ("condition
// lingo"): a small boolean expression tree over time and on-chain RPC/
// contract-call predicates, evaluated against live chain state and a
// request-scoped context at decryption time.
package conditions

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCondition is returned by Parse and the leaf constructors when a
// condition fails static validation.
var ErrInvalidCondition = errors.New("conditions: invalid condition")

// ErrRequiredInput is returned during evaluation when a context variable
// reference cannot be resolved. Name is the unresolved variable.
type ErrRequiredInput struct {
	Name string
}

func (e *ErrRequiredInput) Error() string {
	return fmt.Sprintf("conditions: required input %q not supplied", e.Name)
}

// FailedError is returned when a leaf's comparison evaluates to false. Leaf
// is the index of the failing leaf in the tree's left-to-right leaf order.
type FailedError struct {
	Leaf int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("conditions: leaf %d evaluated false", e.Leaf)
}

// Comparator is one of the six relational operators a ReturnValueTest may
// use.
type Comparator string

const (
	Eq  Comparator = "=="
	Neq Comparator = "!="
	Gt  Comparator = ">"
	Lt  Comparator = "<"
	Gte Comparator = ">="
	Lte Comparator = "<="
)

func (c Comparator) valid() bool {
	switch c {
	case Eq, Neq, Gt, Lt, Gte, Lte:
		return true
	}
	return false
}

// ReturnValueTest compares a decoded on-chain value to an expected value,
// optionally projecting one positional component out of a tuple return
// first.
type ReturnValueTest struct {
	Comparator Comparator  `json:"comparator"`
	Value      interface{} `json:"value"`
	Index      *int        `json:"index,omitempty"`
}

func (t ReturnValueTest) validate() error {
	if !t.Comparator.valid() {
		return fmt.Errorf("%w: unknown comparator %q", ErrInvalidCondition, t.Comparator)
	}
	return nil
}

// Kind discriminates the leaf variants of Condition.
type Kind string

const (
	KindTime     Kind = "time"
	KindRpc      Kind = "rpc"
	KindContract Kind = "contract"
)

// StandardContractType is one of the closed set of preset ABIs a
// ContractCondition may reference instead of supplying function_abi.
type StandardContractType string

const (
	ERC20  StandardContractType = "ERC20"
	ERC721 StandardContractType = "ERC721"
)

func (s StandardContractType) valid() bool {
	switch s {
	case ERC20, ERC721:
		return true
	}
	return false
}

// Condition is one leaf of the condition tree: exactly one of Time, Rpc, or
// Contract is populated, selected by Kind.
type Condition struct {
	Kind Kind

	// Time fields.
	Chain           uint64          `json:"chain,omitempty"`
	ReturnValueTest ReturnValueTest `json:"returnValueTest,omitempty"`

	// Rpc fields.
	Method string        `json:"method,omitempty"`
	Params []interface{} `json:"parameters,omitempty"`

	// Contract fields (in addition to Chain, Method, Params, ReturnValueTest).
	ContractAddress      string               `json:"contractAddress,omitempty"`
	StandardContractType StandardContractType `json:"standardContractType,omitempty"`
	FunctionABI          json.RawMessage      `json:"functionAbi,omitempty"`
}

// NewTimeCondition builds and validates a blocktime condition.
func NewTimeCondition(chain uint64, test ReturnValueTest) (Condition, error) {
	if err := test.validate(); err != nil {
		return Condition{}, err
	}
	return Condition{Kind: KindTime, Chain: chain, Method: "blocktime", ReturnValueTest: test}, nil
}

// NewRpcCondition builds and validates an eth_* JSON-RPC condition. method
// MUST begin with "eth_". Construction accepts any eth_* method name, but
// evaluateRpc currently only dispatches eth_getBalance; other methods fail
// evaluation with ErrInvalidCondition until chain.Chain grows a generic
// json-rpc passthrough.
func NewRpcCondition(chain uint64, method string, params []interface{}, test ReturnValueTest) (Condition, error) {
	if len(method) < 4 || method[:4] != "eth_" {
		return Condition{}, fmt.Errorf("%w: rpc method %q must start with eth_", ErrInvalidCondition, method)
	}
	if err := test.validate(); err != nil {
		return Condition{}, err
	}
	return Condition{Kind: KindRpc, Chain: chain, Method: method, Params: params, ReturnValueTest: test}, nil
}

// NewContractCondition builds and validates a contract-call condition.
// Exactly one of standardContractType or functionABI must be supplied.
func NewContractCondition(chain uint64, address, method string, params []interface{}, standardContractType StandardContractType, functionABI json.RawMessage, test ReturnValueTest) (Condition, error) {
	hasStandard := standardContractType != ""
	hasABI := len(functionABI) > 0
	if hasStandard == hasABI {
		return Condition{}, fmt.Errorf("%w: contract condition needs exactly one of standard_contract_type or function_abi", ErrInvalidCondition)
	}
	if hasStandard && !standardContractType.valid() {
		return Condition{}, fmt.Errorf("%w: unknown standard contract type %q", ErrInvalidCondition, standardContractType)
	}
	if err := test.validate(); err != nil {
		return Condition{}, err
	}
	if test.Index != nil {
		n, err := abiOutputCount(standardContractType, functionABI, method)
		if err == nil && *test.Index >= n {
			return Condition{}, fmt.Errorf("%w: return value index %d out of range for %d outputs", ErrInvalidCondition, *test.Index, n)
		}
	}
	return Condition{
		Kind:                 KindContract,
		Chain:                chain,
		ContractAddress:      address,
		Method:               method,
		Params:               params,
		StandardContractType: standardContractType,
		FunctionABI:          functionABI,
		ReturnValueTest:      test,
	}, nil
}

// Operator is a boolean combinator joining two subtrees of a Lingo.
type Operator string

const (
	And Operator = "and"
	Or  Operator = "or"
)

// Lingo is the parsed tree form of a condition expression: either a single
// leaf, or an operator joining a left and right subtree. The wire format is
// a flat, odd-length list alternating leaf/operator/leaf/... which Parse
// folds into a left-leaning tree of this shape.
type Lingo struct {
	Leaf        *Condition
	Op          Operator
	Left, Right *Lingo
}

func leaf(c Condition) *Lingo {
	cc := c
	return &Lingo{Leaf: &cc}
}

// Parse folds the flat wire representation (alternating leaves and
// operators, always odd length) into a left-leaning Lingo tree.
func Parse(items []interface{}) (*Lingo, error) {
	if len(items) == 0 || len(items)%2 == 0 {
		return nil, fmt.Errorf("%w: condition list must have odd length, got %d", ErrInvalidCondition, len(items))
	}
	first, ok := items[0].(Condition)
	if !ok {
		return nil, fmt.Errorf("%w: element 0 is not a condition leaf", ErrInvalidCondition)
	}
	tree := leaf(first)
	for i := 1; i < len(items); i += 2 {
		op, ok := items[i].(Operator)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an operator", ErrInvalidCondition, i)
		}
		cond, ok := items[i+1].(Condition)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not a condition leaf", ErrInvalidCondition, i+1)
		}
		tree = &Lingo{Op: op, Left: tree, Right: leaf(cond)}
	}
	return tree, nil
}

// abiOutputCount is a best-effort static check used only to reject an
// out-of-range index at construction time. A standard contract type always
// counts as one output (every ERC20/ERC721 view method here returns a single
// value). abi may be a single function fragment or an array of them; an
// error (silently skipped by callers) is returned when it cannot be parsed
// or does not name method.
func abiOutputCount(std StandardContractType, abi json.RawMessage, method string) (int, error) {
	if std != "" {
		return 1, nil
	}
	type abiEntry struct {
		Name    string `json:"name"`
		Outputs []struct {
			Type string `json:"type"`
		} `json:"outputs"`
	}
	var entries []abiEntry
	if err := json.Unmarshal(abi, &entries); err != nil {
		var single abiEntry
		if err2 := json.Unmarshal(abi, &single); err2 != nil {
			return 0, err
		}
		entries = []abiEntry{single}
	}
	for _, e := range entries {
		if e.Name == method {
			return len(e.Outputs), nil
		}
	}
	return 0, fmt.Errorf("method %q not found in abi", method)
}
