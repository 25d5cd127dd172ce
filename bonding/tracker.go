// Package bonding implements the work tracker (C8): a periodic task that
// ensures the operator's on-chain bonding commitment transaction is
// confirmed, firing replacement transactions when confirmation stalls.
package bonding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// MinInterval and MaxInterval bound the tracker's randomized sleep between
// ticks; MinInterval is also the floor the interval is pinned to while any
// transaction is outstanding.
const (
	MinInterval = 60 * time.Second
	MaxInterval = 30 * time.Minute
)

// TxHash identifies a submitted transaction.
type TxHash [32]byte

// PendingTx is one transaction the tracker is watching for confirmation.
type PendingTx struct {
	Hash        TxHash
	SubmittedAt time.Time
	// ExpectedConfirmBy is set to MinInterval after submission (and again
	// after each replacement); no gas-strategy confirmation estimate or
	// grace factor is applied.
	ExpectedConfirmBy time.Time
	BlockNumber       uint64
}

// Chain is the minimal on-chain view the tracker needs: mempool
// visibility, receipt lookups, and transaction submission.
type Chain interface {
	PendingTransactionCount(ctx context.Context, operator [20]byte) (int, error)
	TransactionReceipt(ctx context.Context, hash TxHash) (confirmed bool, blockNumber uint64, err error)
	ConfirmOperatorAddress(ctx context.Context, gasPriceBump int) (TxHash, error)
	ReplaceTransaction(ctx context.Context, original TxHash, gasPriceBump int) (TxHash, error)
	CurrentBlockNumber(ctx context.Context) (uint64, error)
}

// TerminationReason is returned when Run exits, for the supervisor to
// decide restart-vs-abort.
type TerminationReason int

const (
	ReasonContextCanceled TerminationReason = iota
	ReasonError
)

// Supervisor decides whether a terminated tracker should be restarted or
// should abort the process, matching the "supervised tasks on a scheduler"
// design used throughout this node's periodic work.
type Supervisor interface {
	OnTerminate(reason TerminationReason, err error) (restart bool)
}

// Tracker runs the periodic bonding-confirmation task described by the
// work tracker design: reconcile pending transactions against the mempool,
// replace stalled ones, and fire a fresh commitment transaction when none
// is outstanding and Requirement() says one is due.
type Tracker struct {
	logger      *zap.SugaredLogger
	chain       Chain
	operator    [20]byte
	requirement func(ctx context.Context) (bool, error)
	abortOnError bool

	pending []PendingTx
}

// NewTracker builds a Tracker. requirement is the external predicate
// deciding whether a fresh commitment transaction is due; abortOnError
// decides restart-vs-abort on an error when Run is given a nil Supervisor.
func NewTracker(logger *zap.SugaredLogger, chain Chain, operator [20]byte, requirement func(ctx context.Context) (bool, error), abortOnError bool) *Tracker {
	return &Tracker{logger: logger, chain: chain, operator: operator, requirement: requirement, abortOnError: abortOnError}
}

// Run drives the tracker until ctx is canceled or an unrecoverable error
// occurs and the supervisor declines to restart. A nil supervisor restarts
// unless the tracker was built with abortOnError.
func (t *Tracker) Run(ctx context.Context, supervisor Supervisor) {
	for {
		err := t.runUntilError(ctx)
		if ctx.Err() != nil {
			return
		}
		reason := ReasonError
		if err == nil {
			reason = ReasonContextCanceled
		}
		restart := !t.abortOnError
		if supervisor != nil {
			restart = supervisor.OnTerminate(reason, err)
		}
		if !restart {
			t.logger.Errorw("work tracker aborting", "error", err)
			return
		}
		t.logger.Warnw("work tracker restarting after error", "error", err)
	}
}

func (t *Tracker) runUntilError(ctx context.Context) error {
	for {
		if err := t.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.nextInterval()):
		}
	}
}

// nextInterval is a random duration in [MinInterval, MaxInterval), pinned
// to MinInterval while any transaction is outstanding.
func (t *Tracker) nextInterval() time.Duration {
	if len(t.pending) > 0 {
		return MinInterval
	}
	span := int64(MaxInterval - MinInterval)
	return MinInterval + time.Duration(rand.Int63n(span))
}

// tick runs one iteration of the tracker's reconciliation logic.
func (t *Tracker) tick(ctx context.Context) error {
	if err := t.reconcileMempool(ctx); err != nil {
		return fmt.Errorf("bonding: reconciling mempool: %w", err)
	}
	if err := t.checkPending(ctx); err != nil {
		return fmt.Errorf("bonding: checking pending transactions: %w", err)
	}
	if len(t.pending) == 0 {
		due, err := t.requirement(ctx)
		if err != nil {
			return fmt.Errorf("bonding: evaluating requirement: %w", err)
		}
		if due {
			if err := t.fireCommitment(ctx); err != nil {
				return fmt.Errorf("bonding: firing commitment transaction: %w", err)
			}
		}
	}
	return nil
}

// reconcileMempool injects a synthetic pending marker if the chain reports
// more mempool entries for this operator than the tracker has recorded,
// e.g. because a previous process restart lost in-memory tracking state.
func (t *Tracker) reconcileMempool(ctx context.Context) error {
	count, err := t.chain.PendingTransactionCount(ctx, t.operator)
	if err != nil {
		return err
	}
	for len(t.pending) < count {
		t.logger.Warnw("mempool count exceeds tracked pending transactions, injecting synthetic marker", "tracked", len(t.pending), "mempool", count)
		t.pending = append(t.pending, PendingTx{SubmittedAt: time.Now(), ExpectedConfirmBy: time.Now().Add(MinInterval)})
	}
	return nil
}

func (t *Tracker) checkPending(ctx context.Context) error {
	var still []PendingTx
	for _, p := range t.pending {
		confirmed, blockNumber, err := t.chain.TransactionReceipt(ctx, p.Hash)
		if err != nil {
			return err
		}
		if confirmed {
			t.logger.Infow("bonding transaction confirmed", "tx_hash", fmt.Sprintf("%x", p.Hash), "block_number", blockNumber)
			continue
		}
		if time.Now().After(p.ExpectedConfirmBy) {
			replacement, err := t.chain.ReplaceTransaction(ctx, p.Hash, bumpedGasPercent(p))
			if err != nil {
				return err
			}
			t.logger.Warnw("replacing stalled bonding transaction", "original", fmt.Sprintf("%x", p.Hash), "replacement", fmt.Sprintf("%x", replacement))
			p.Hash = replacement
			p.SubmittedAt = time.Now()
			p.ExpectedConfirmBy = time.Now().Add(MinInterval)
		}
		still = append(still, p)
	}
	t.pending = still
	return nil
}

func (t *Tracker) fireCommitment(ctx context.Context) error {
	hash, err := t.chain.ConfirmOperatorAddress(ctx, 0)
	if err != nil {
		return err
	}
	blockNumber, err := t.chain.CurrentBlockNumber(ctx)
	if err != nil {
		return err
	}
	t.logger.Infow("fired commitment transaction", "tx_hash", fmt.Sprintf("%x", hash), "block_number", blockNumber)
	t.pending = append(t.pending, PendingTx{
		Hash:              hash,
		SubmittedAt:       time.Now(),
		ExpectedConfirmBy: time.Now().Add(MinInterval),
		BlockNumber:       blockNumber,
	})
	return nil
}

func bumpedGasPercent(p PendingTx) int {
	return 10
}
