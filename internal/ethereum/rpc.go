// Package ethereum provides minimal Ethereum JSON-RPC clients used to
// broadcast contract-creation transactions and follow the chain head.
package ethereum

import (
	"context"
	"math/big"
)

// RPCClient defines Ethereum JSON-RPC HTTP interface.
type RPCClient interface {
	// ChainID returns the chain ID reported by the node (eth_chainId).
	ChainID(ctx context.Context) (uint64, error)

	// BlockNumber returns the current head block number (eth_blockNumber).
	BlockNumber(ctx context.Context) (uint64, error)

	// SendTransaction submits a transaction signed by a node-managed account
	// and returns its hash (eth_sendTransaction).
	SendTransaction(ctx context.Context, tx *TxRequest) (string, error)

	// GetTransactionReceipt returns the receipt of a mined transaction.
	// Returns nil, nil while the transaction is pending.
	GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// EstimateGas estimates gas required by tx (eth_estimateGas).
	EstimateGas(ctx context.Context, tx *TxRequest) (uint64, error)
}

// TxRequest is a transaction to be signed by the node.
// An empty To creates a contract from Data.
type TxRequest struct {
	From  string
	To    string
	Data  []byte
	Gas   uint64   // 0 lets the node pick
	Value *big.Int // nil means zero
}

// Receipt is a mined transaction receipt.
type Receipt struct {
	TxHash          string
	BlockNumber     uint64
	ContractAddress string // checksummed; empty for non-creation transactions
	GasUsed         uint64
	Status          uint64 // 1 success, 0 reverted
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}
