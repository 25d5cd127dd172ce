package conditions

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"
)

// compare applies comparator to (decoded, expected). decoded comes from a
// chain call (bool, *big.Int, common.Address, []byte, or a slice of these
// for tuple returns); expected comes from JSON (bool, float64/string, or a
// []interface{}) or from context substitution. Sequences only support ==
// and !=, compared element-wise.
func compare(decoded, expected interface{}, cmp Comparator) (bool, error) {
	if isSequence(decoded) || isSequence(expected) {
		if cmp != Eq && cmp != Neq {
			return false, fmt.Errorf("%w: comparator %q not valid for sequences", ErrInvalidCondition, cmp)
		}
		eq, err := sequencesEqual(decoded, expected)
		if err != nil {
			return false, err
		}
		if cmp == Neq {
			return !eq, nil
		}
		return eq, nil
	}

	if b, ok := decoded.(bool); ok {
		eb, err := toBool(expected)
		if err != nil {
			return false, err
		}
		switch cmp {
		case Eq:
			return b == eb, nil
		case Neq:
			return b != eb, nil
		default:
			return false, fmt.Errorf("%w: comparator %q not valid for booleans", ErrInvalidCondition, cmp)
		}
	}

	dNum, dIsNum := toBigInt(decoded)
	eNum, eIsNum := toBigInt(expected)
	if dIsNum && eIsNum {
		c := dNum.Cmp(eNum)
		return applyOrdering(c, cmp)
	}

	// Fall back to hex/string comparison (addresses, raw bytes).
	dStr, ok1 := toComparableString(decoded)
	eStr, ok2 := toComparableString(expected)
	if ok1 && ok2 {
		switch cmp {
		case Eq:
			return strings.EqualFold(dStr, eStr), nil
		case Neq:
			return !strings.EqualFold(dStr, eStr), nil
		default:
			return false, fmt.Errorf("%w: comparator %q not valid for string/address/bytes values", ErrInvalidCondition, cmp)
		}
	}

	return false, fmt.Errorf("%w: incomparable values %T and %T", ErrInvalidCondition, decoded, expected)
}

func applyOrdering(c int, cmp Comparator) (bool, error) {
	switch cmp {
	case Eq:
		return c == 0, nil
	case Neq:
		return c != 0, nil
	case Gt:
		return c > 0, nil
	case Lt:
		return c < 0, nil
	case Gte:
		return c >= 0, nil
	case Lte:
		return c <= 0, nil
	default:
		return false, fmt.Errorf("%w: unknown comparator %q", ErrInvalidCondition, cmp)
	}
}

func isSequence(v interface{}) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

func sequencesEqual(a, b interface{}) (bool, error) {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Kind() != reflect.Slice && av.Kind() != reflect.Array {
		return false, fmt.Errorf("%w: expected a sequence", ErrInvalidCondition)
	}
	if bv.Kind() != reflect.Slice && bv.Kind() != reflect.Array {
		return false, fmt.Errorf("%w: expected a sequence", ErrInvalidCondition)
	}
	if av.Len() != bv.Len() {
		return false, nil
	}
	for i := 0; i < av.Len(); i++ {
		eq, err := compare(av.Index(i).Interface(), bv.Index(i).Interface(), Eq)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func toBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected a boolean, got %T", ErrInvalidCondition, v)
	}
	return b, nil
}

func toBigInt(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case int64:
		return big.NewInt(n), true
	case int:
		return big.NewInt(int64(n)), true
	case float64:
		bi, _ := big.NewFloat(n).Int(nil)
		return bi, true
	}
	return nil, false
}

func toComparableString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return fmt.Sprintf("0x%x", x), true
	case [20]byte:
		return fmt.Sprintf("0x%x", x), true
	}
	if s, ok := toAddressLike(v); ok {
		return s, true
	}
	return "", false
}

// toAddressLike covers go-ethereum's common.Address, which is a named
// [20]byte array the type switch above does not match directly.
func toAddressLike(v interface{}) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array || rv.Type().Elem().Kind() != reflect.Uint8 {
		return "", false
	}
	b := make([]byte, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		b[i] = byte(rv.Index(i).Uint())
	}
	return fmt.Sprintf("0x%x", b), true
}
