package conditions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	timestamp uint64
	supported map[uint64]bool
	calls     map[string][]byte
}

func (f *fakeChain) EthCall(ctx context.Context, chainID uint64, to [20]byte, data []byte) ([]byte, error) {
	return f.calls["default"], nil
}

func (f *fakeChain) BlockTimestamp(ctx context.Context, chainID uint64) (uint64, error) {
	return f.timestamp, nil
}

func (f *fakeChain) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	return 1, nil
}

func (f *fakeChain) ChainIDSupported(chainID uint64) bool {
	if f.supported == nil {
		return true
	}
	return f.supported[chainID]
}

func TestTimeConditionTrue(t *testing.T) {
	idx := 0
	_ = idx
	test := ReturnValueTest{Comparator: Lt, Value: float64(1_700_000_001)}
	cond, err := NewTimeCondition(1, test)
	require.NoError(t, err)

	tree, err := Parse([]interface{}{cond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 1_700_000_000}
	err = Evaluate(context.Background(), tree, c, nil)
	require.NoError(t, err)
}

func TestTimeConditionFalse(t *testing.T) {
	test := ReturnValueTest{Comparator: Lt, Value: float64(0)}
	cond, err := NewTimeCondition(1, test)
	require.NoError(t, err)
	tree, err := Parse([]interface{}{cond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 1_700_000_000}
	err = Evaluate(context.Background(), tree, c, nil)
	require.Error(t, err)
	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 0, failed.Leaf)
}

func TestRpcConditionRequiresEthPrefix(t *testing.T) {
	_, err := NewRpcCondition(1, "getBalance", nil, ReturnValueTest{Comparator: Eq, Value: float64(1)})
	require.ErrorIs(t, err, ErrInvalidCondition)
}

func TestContractConditionRequiresExactlyOneABISource(t *testing.T) {
	_, err := NewContractCondition(1, "0xabc", "balanceOf", nil, "", nil, ReturnValueTest{Comparator: Eq, Value: float64(1)})
	require.ErrorIs(t, err, ErrInvalidCondition)

	_, err = NewContractCondition(1, "0xabc", "balanceOf", nil, ERC20, []byte(`{}`), ReturnValueTest{Comparator: Eq, Value: float64(1)})
	require.ErrorIs(t, err, ErrInvalidCondition)
}

func TestAndShortCircuitsLeftToRight(t *testing.T) {
	trueCond, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(1_700_000_001)})
	require.NoError(t, err)
	falseCond, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(0)})
	require.NoError(t, err)

	tree, err := Parse([]interface{}{trueCond, And, falseCond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 1_700_000_000}
	err = Evaluate(context.Background(), tree, c, nil)
	require.Error(t, err)
	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 1, failed.Leaf)
}

func TestShortCircuitedSubtreeStillAdvancesLeafIndex(t *testing.T) {
	// (A and B) or C, with A false: B is short-circuited but must still
	// consume leaf index 1, so a failing C is reported as leaf 2.
	falseA, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(0)})
	require.NoError(t, err)
	anyB, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(1_700_000_001)})
	require.NoError(t, err)
	falseC, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(0)})
	require.NoError(t, err)

	tree, err := Parse([]interface{}{falseA, And, anyB, Or, falseC})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 1_700_000_000}
	err = Evaluate(context.Background(), tree, c, nil)
	require.Error(t, err)
	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 2, failed.Leaf)
}

func TestOrSucceedsOnSecondLeaf(t *testing.T) {
	falseCond, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(0)})
	require.NoError(t, err)
	trueCond, err := NewTimeCondition(1, ReturnValueTest{Comparator: Lt, Value: float64(1_700_000_001)})
	require.NoError(t, err)

	tree, err := Parse([]interface{}{falseCond, Or, trueCond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 1_700_000_000}
	err = Evaluate(context.Background(), tree, c, nil)
	require.NoError(t, err)
}

func TestContextVariableSubstitution(t *testing.T) {
	test := ReturnValueTest{Comparator: Eq, Value: ":expected"}
	cond, err := NewTimeCondition(1, test)
	require.NoError(t, err)
	tree, err := Parse([]interface{}{cond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 42}
	err = Evaluate(context.Background(), tree, c, Context{"expected": uint64(42)})
	require.NoError(t, err)
}

func TestMissingContextVariableYieldsRequiredInput(t *testing.T) {
	test := ReturnValueTest{Comparator: Eq, Value: ":missing"}
	cond, err := NewTimeCondition(1, test)
	require.NoError(t, err)
	tree, err := Parse([]interface{}{cond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 42}
	err = Evaluate(context.Background(), tree, c, Context{})
	var reqErr *ErrRequiredInput
	require.True(t, errors.As(err, &reqErr))
	require.Equal(t, "missing", reqErr.Name)
}

func TestParseRejectsEvenLength(t *testing.T) {
	cond, err := NewTimeCondition(1, ReturnValueTest{Comparator: Eq, Value: float64(1)})
	require.NoError(t, err)
	_, err = Parse([]interface{}{cond, And})
	require.ErrorIs(t, err, ErrInvalidCondition)
}

func TestUnsupportedChainID(t *testing.T) {
	cond, err := NewTimeCondition(99, ReturnValueTest{Comparator: Eq, Value: float64(1)})
	require.NoError(t, err)
	tree, err := Parse([]interface{}{cond})
	require.NoError(t, err)

	c := &fakeChain{timestamp: 1, supported: map[uint64]bool{1: true}}
	err = Evaluate(context.Background(), tree, c, nil)
	require.Error(t, err)
}
