package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/logging"
)

// RPCClient talks to an Ethereum-compatible node over JSON-RPC 2.0. The
// node is expected to manage the worker's account, so submissions go
// through eth_sendTransaction.
type RPCClient struct {
	endpoint string
	contract string
	account  string
	http     *http.Client
	logger   logging.Logger
	reqID    atomic.Int64
}

// NewRPCClient constructs a client for the given endpoint. contract is the
// notary contract address, account the node-managed sender.
func NewRPCClient(endpoint, contract, account string, logger logging.Logger) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		contract: contract,
		account:  account,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "chain-rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.reqID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rpc %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var r rpcResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("rpc %s: decode response: %w", method, err)
	}
	if r.Error != nil {
		// The node's message text feeds the retry classifier, keep it intact.
		return fmt.Errorf("rpc %s: %s (code %d)", method, r.Error.Message, r.Error.Code)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(r.Result, result)
}

func (c *RPCClient) sendTransaction(ctx context.Context, calldata []byte) (*SubmitResult, error) {
	tx := map[string]string{
		"from": c.account,
		"to":   c.contract,
		"data": "0x" + hex.EncodeToString(calldata),
	}

	var txHash string
	if err := c.call(ctx, "eth_sendTransaction", []any{tx}, &txHash); err != nil {
		return nil, err
	}
	return &SubmitResult{TxHash: txHash}, nil
}

// SubmitHashRecord records fileHash on chain via the notary contract.
// Metadata is advisory and only logged; the chain stores the hash alone.
func (c *RPCClient) SubmitHashRecord(ctx context.Context, fileHash string, metadata map[string]string) (*SubmitResult, error) {
	calldata, err := recordHashCalldata(fileHash)
	if err != nil {
		return nil, err
	}

	res, err := c.sendTransaction(ctx, calldata)
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "hash record submitted", "tx_hash", res.TxHash, "file_name", metadata["file_name"])
	return res, nil
}

// SubmitMint mints tokenID for ownerAddress pointing at metadataURL.
func (c *RPCClient) SubmitMint(ctx context.Context, ownerAddress string, tokenID int64, metadataURL string) (*SubmitResult, error) {
	calldata, err := mintCalldata(ownerAddress, tokenID, metadataURL)
	if err != nil {
		return nil, err
	}

	res, err := c.sendTransaction(ctx, calldata)
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "mint submitted", "tx_hash", res.TxHash, "token_id", tokenID)
	return res, nil
}

type rpcReceipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
}

// GetReceipt returns the receipt for txHash, or (nil, nil) while pending.
func (c *RPCClient) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var r rpcReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	block, err := parseHexInt(r.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("receipt block number: %w", err)
	}
	status, err := parseHexInt(r.Status)
	if err != nil {
		return nil, fmt.Errorf("receipt status: %w", err)
	}

	return &Receipt{
		TxHash:      r.TransactionHash,
		BlockNumber: block,
		Status:      uint64(status),
	}, nil
}

// GetLatestBlockNumber returns the node's current head block.
func (c *RPCClient) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	var hexNum string
	if err := c.call(ctx, "eth_blockNumber", nil, &hexNum); err != nil {
		return 0, err
	}
	return parseHexInt(hexNum)
}

func parseHexInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(s, "0x"), 16, 64)
}
