package conditions

import (
	"encoding/json"
	"fmt"
)

// jsonCondition is the wire envelope for a single Condition leaf: all leaf
// variants share it, discriminated by Kind, mirroring how the rest of this
// module's wire formats (MessageKit, RetrievalKit) carry a small tagged
// header rather than one struct per variant.
type jsonCondition struct {
	Kind                  Kind                 `json:"kind"`
	Chain                 uint64               `json:"chain,omitempty"`
	Method                string               `json:"method,omitempty"`
	Params                []interface{}        `json:"parameters,omitempty"`
	ContractAddress       string               `json:"contractAddress,omitempty"`
	StandardContractType  StandardContractType `json:"standardContractType,omitempty"`
	FunctionABI           json.RawMessage      `json:"functionAbi,omitempty"`
	ReturnValueTest       ReturnValueTest      `json:"returnValueTest"`
}

// MarshalJSON implements json.Marshaler for Condition.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCondition{
		Kind:                 c.Kind,
		Chain:                c.Chain,
		Method:               c.Method,
		Params:               c.Params,
		ContractAddress:      c.ContractAddress,
		StandardContractType: c.StandardContractType,
		FunctionABI:          c.FunctionABI,
		ReturnValueTest:      c.ReturnValueTest,
	})
}

// UnmarshalJSON implements json.Unmarshaler for Condition.
func (c *Condition) UnmarshalJSON(b []byte) error {
	var jc jsonCondition
	if err := json.Unmarshal(b, &jc); err != nil {
		return err
	}
	*c = Condition{
		Kind:                 jc.Kind,
		Chain:                jc.Chain,
		Method:               jc.Method,
		Params:               jc.Params,
		ContractAddress:      jc.ContractAddress,
		StandardContractType: jc.StandardContractType,
		FunctionABI:          jc.FunctionABI,
		ReturnValueTest:      jc.ReturnValueTest,
	}
	return nil
}

// jsonItem is one element of the flat wire list: either a condition leaf
// or an operator, discriminated by which field is set.
type jsonItem struct {
	Condition *Condition `json:"condition,omitempty"`
	Operator  Operator   `json:"operator,omitempty"`
}

// Flatten is the inverse of Parse: it walks l back into the flat,
// odd-length alternating leaf/operator/leaf/... list Parse builds a tree
// from.
func Flatten(l *Lingo) []interface{} {
	if l.Leaf != nil {
		return []interface{}{*l.Leaf}
	}
	left := Flatten(l.Left)
	right := Flatten(l.Right)
	out := make([]interface{}, 0, len(left)+1+len(right))
	out = append(out, left...)
	out = append(out, l.Op)
	out = append(out, right...)
	return out
}

// MarshalLingo encodes l as the JSON array form used on the wire.
func MarshalLingo(l *Lingo) ([]byte, error) {
	if l == nil {
		return json.Marshal([]jsonItem{})
	}
	flat := Flatten(l)
	items := make([]jsonItem, len(flat))
	for i, v := range flat {
		switch x := v.(type) {
		case Condition:
			cc := x
			items[i] = jsonItem{Condition: &cc}
		case Operator:
			items[i] = jsonItem{Operator: x}
		default:
			return nil, fmt.Errorf("conditions: unexpected flattened element type %T", v)
		}
	}
	return json.Marshal(items)
}

// UnmarshalLingo decodes the JSON array form MarshalLingo produces. An
// empty array decodes to a nil *Lingo.
func UnmarshalLingo(b []byte) (*Lingo, error) {
	var items []jsonItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	flat := make([]interface{}, len(items))
	for i, it := range items {
		if it.Condition != nil {
			flat[i] = *it.Condition
		} else {
			flat[i] = it.Operator
		}
	}
	return Parse(flat)
}
