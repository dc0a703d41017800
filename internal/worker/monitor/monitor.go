// Package monitor polls the chain for a submitted transaction until it
// reaches the required number of confirmations, reverts, or times out.
package monitor

import (
	"context"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/common"
	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/chain"
	"github.com/dmitrijs2005/absnotary/internal/worker/retry"
)

// Config bounds one confirmation wait. Both limits apply: the wait fails
// with a TimeoutError when either MaxAttempts polls have been spent or
// MaxWait wall-clock time has elapsed, whichever happens first.
type Config struct {
	RequiredConfirmations int
	PollInterval          time.Duration
	MaxAttempts           int
	MaxWait               time.Duration
}

// Monitor awaits transaction finality against a chain.Client. It carries no
// document state, so it can also be used for ad-hoc transaction inspection.
type Monitor struct {
	client chain.Client
	cfg    Config
	logger logging.Logger
}

func New(client chain.Client, cfg Config, logger logging.Logger) *Monitor {
	return &Monitor{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "tx-monitor"),
	}
}

// WaitForConfirmation polls the receipt of txHash until the transaction has
// RequiredConfirmations blocks on top of it and returns the receipt.
//
// A receipt with a failed status fails immediately with a RevertedError and
// no further polling: a revert is a terminal on-chain outcome. Transient
// lookup errors are logged and swallowed so a flaky node does not abort the
// wait; non-transient errors propagate immediately. Every poll counts as
// one attempt whether or not the transaction is mined yet.
func (m *Monitor) WaitForConfirmation(ctx context.Context, txHash string) (*chain.Receipt, error) {
	log := m.logger.With("tx_hash", txHash)
	start := time.Now()

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if elapsed := time.Since(start); elapsed > m.cfg.MaxWait {
			return nil, &common.TimeoutError{TxHash: txHash, Attempts: attempt - 1, Elapsed: elapsed}
		}

		receipt, err := m.observe(ctx, txHash, log)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			log.Info(ctx, "transaction confirmed", "block", receipt.BlockNumber, "attempts", attempt)
			return receipt, nil
		}

		select {
		case <-time.After(m.cfg.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &common.TimeoutError{TxHash: txHash, Attempts: m.cfg.MaxAttempts, Elapsed: time.Since(start)}
}

// observe performs a single poll. It returns (receipt, nil) when confirmed,
// (nil, nil) when the wait should continue, and an error for terminal
// outcomes.
func (m *Monitor) observe(ctx context.Context, txHash string, log logging.Logger) (*chain.Receipt, error) {
	receipt, err := m.client.GetReceipt(ctx, txHash)
	if err != nil {
		if !retry.IsRetryable(err) {
			return nil, err
		}
		log.Warn(ctx, "transient error checking transaction", "error", err.Error())
		return nil, nil
	}

	if receipt == nil {
		log.Debug(ctx, "transaction not yet mined")
		return nil, nil
	}

	if !receipt.Succeeded() {
		return nil, &common.RevertedError{TxHash: txHash}
	}

	latest, err := m.client.GetLatestBlockNumber(ctx)
	if err != nil {
		if !retry.IsRetryable(err) {
			return nil, err
		}
		log.Warn(ctx, "transient error fetching latest block", "error", err.Error())
		return nil, nil
	}

	confirmations := latest - receipt.BlockNumber
	if confirmations >= int64(m.cfg.RequiredConfirmations) {
		return receipt, nil
	}

	log.Debug(ctx, "awaiting confirmations",
		"confirmations", confirmations, "required", m.cfg.RequiredConfirmations)
	return nil, nil
}

// TxState is a coarse transaction state for ad-hoc inspection.
type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxReverted  TxState = "reverted"
)

// Status is a point-in-time answer about a transaction.
type Status struct {
	State         TxState
	Confirmations int64
	Receipt       *chain.Receipt
}

// CheckStatus reports the current state of a transaction with a single
// lookup round trip; it never waits.
func (m *Monitor) CheckStatus(ctx context.Context, txHash string) (*Status, error) {
	receipt, err := m.client.GetReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return &Status{State: TxPending}, nil
	}
	if !receipt.Succeeded() {
		return &Status{State: TxReverted, Receipt: receipt}, nil
	}

	latest, err := m.client.GetLatestBlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		State:         TxConfirmed,
		Confirmations: latest - receipt.BlockNumber,
		Receipt:       receipt,
	}, nil
}
