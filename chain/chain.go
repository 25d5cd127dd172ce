// Package chain defines the read-only view of blockchain state the
// condition evaluator depends on, and the errors it can raise. Nothing in
// this package sends transactions; write access (posting transcripts and
// aggregations) lives behind the separate Coordinator interface used by
// the rituals package.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SoftTimeout and HardTimeout bound a single Chain call: callers should
// apply SoftTimeout via context and may retry once up to HardTimeout.
const (
	SoftTimeout = 5 * time.Second
	HardTimeout = 20 * time.Second
)

// ErrNoConnectionForChain is returned when a call names a chain id this
// node has no configured backend for.
type ErrNoConnectionForChain struct {
	ChainID uint64
}

func (e *ErrNoConnectionForChain) Error() string {
	return fmt.Sprintf("chain: no connection configured for chain id %d", e.ChainID)
}

// ErrRpcTimeout and ErrRpcError are transient and safe for a caller to
// retry the surrounding evaluation once.
var (
	ErrRpcTimeout = errors.New("chain: rpc timeout")
	ErrRpcError   = errors.New("chain: rpc error")
)

// ErrChainReorg is surfaced by an implementation that caches per-block
// results when a retry detects the cached block hash no longer matches the
// canonical chain; callers must invalidate any cache and re-evaluate.
var ErrChainReorg = errors.New("chain: reorg detected, cached result invalid")

// Chain is the read-only blockchain access surface the condition evaluator
// requires. Implementations are expected to wrap a JSON-RPC client per
// configured chain id; this package only defines the contract.
type Chain interface {
	// EthCall performs a read-only contract call against to, with the
	// already-ABI-encoded calldata in data, returning the raw return bytes.
	EthCall(ctx context.Context, chainID uint64, to [20]byte, data []byte) ([]byte, error)
	// BlockTimestamp returns the current block's unix timestamp.
	BlockTimestamp(ctx context.Context, chainID uint64) (uint64, error)
	// BlockNumber returns the current block height.
	BlockNumber(ctx context.Context, chainID uint64) (uint64, error)
	// ChainIDSupported reports whether this node has a configured backend
	// for chainID.
	ChainIDSupported(chainID uint64) bool
}
