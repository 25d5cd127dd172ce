package conditions

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// standardERC20ABI and standardERC721ABI cover the handful of read-only
// methods a ContractCondition is realistically written against; this is
// not a full token interface, only the view methods condition lingo needs.
const standardERC20ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"totalSupply","type":"function","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const standardERC721ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"ownerOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

func standardMethod(kind StandardContractType, method string) (abi.Method, error) {
	var raw string
	switch kind {
	case ERC20:
		raw = standardERC20ABI
	case ERC721:
		raw = standardERC721ABI
	default:
		return abi.Method{}, fmt.Errorf("%w: unknown standard contract type %q", ErrInvalidCondition, kind)
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.Method{}, fmt.Errorf("internal error parsing standard abi: %v", err)
	}
	m, ok := parsed.Methods[method]
	if !ok {
		return abi.Method{}, fmt.Errorf("%w: method %q not available on standard contract type %q", ErrInvalidCondition, method, kind)
	}
	return m, nil
}
