// Package chain defines the blockchain client contract the worker depends
// on, plus a JSON-RPC implementation for Ethereum-compatible nodes.
package chain

import "context"

// Receipt is the mined outcome of a transaction.
type Receipt struct {
	TxHash      string
	BlockNumber int64
	// Status is 1 for successful execution, 0 for a revert.
	Status uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool { return r.Status == 1 }

// SubmitResult is returned by submission calls once the node accepts the
// transaction into its pool.
type SubmitResult struct {
	TxHash string
}

// Client is the subset of chain operations the worker needs.
//
// GetReceipt returns (nil, nil) while the transaction is not yet mined.
type Client interface {
	// SubmitHashRecord records a file hash on chain and returns the
	// transaction hash.
	SubmitHashRecord(ctx context.Context, fileHash string, metadata map[string]string) (*SubmitResult, error)

	// SubmitMint mints a token for an already-uploaded asset.
	SubmitMint(ctx context.Context, ownerAddress string, tokenID int64, metadataURL string) (*SubmitResult, error)

	// GetReceipt fetches the receipt for a transaction, or nil when the
	// transaction is still pending.
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// GetLatestBlockNumber returns the current chain head.
	GetLatestBlockNumber(ctx context.Context) (int64, error)
}
