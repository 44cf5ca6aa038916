// Package stub provides an in-memory ethereum.RPCClient that mines every
// transaction instantly.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"token-deploy/internal/ethereum"
)

// RPCClient implements ethereum.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	ChainIDValue uint64
	Head         uint64

	// MineOnPoll advances Head by one on every BlockNumber call.
	MineOnPoll bool
	// PendingPolls is how many receipt lookups return nil before a tx is mined.
	PendingPolls int
	// GasEstimate is returned by EstimateGas.
	GasEstimate uint64

	// Failure injection.
	SendErr     error
	ReceiptErr  error
	EstimateErr error
	// Revert marks every new transaction as reverted.
	Revert bool

	Sent     []ethereum.TxRequest
	receipts map[string]*ethereum.Receipt
	polls    map[string]int
}

// Compile-time interface check.
var _ ethereum.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a stub with chain ID 1337 at block 0.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		ChainIDValue: 1337,
		GasEstimate:  1_500_000,
		receipts:     make(map[string]*ethereum.Receipt),
		polls:        make(map[string]int),
	}
}

func (c *RPCClient) ChainID(_ context.Context) (uint64, error) {
	return c.ChainIDValue, nil
}

func (c *RPCClient) BlockNumber(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MineOnPoll {
		c.Head++
	}
	return c.Head, nil
}

// SendTransaction records tx and mines it into the next block.
func (c *RPCClient) SendTransaction(_ context.Context, tx *ethereum.TxRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return "", c.SendErr
	}

	n := len(c.Sent) + 1
	c.Sent = append(c.Sent, *tx)
	c.Head++

	hash := fmt.Sprintf("0x%064x", n)
	receipt := &ethereum.Receipt{
		TxHash:      hash,
		BlockNumber: c.Head,
		GasUsed:     21_000 + uint64(len(tx.Data))*16,
		Status:      1,
	}
	if tx.To == "" {
		receipt.ContractAddress = ContractAddress(n)
	}
	if c.Revert {
		receipt.Status = 0
	}
	c.receipts[hash] = receipt
	return hash, nil
}

func (c *RPCClient) GetTransactionReceipt(_ context.Context, txHash string) (*ethereum.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	if c.polls[txHash] < c.PendingPolls {
		c.polls[txHash]++
		return nil, nil
	}
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (c *RPCClient) EstimateGas(_ context.Context, _ *ethereum.TxRequest) (uint64, error) {
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return c.GasEstimate, nil
}

// Transactions returns a copy of the transactions sent so far.
func (c *RPCClient) Transactions() []ethereum.TxRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.TxRequest(nil), c.Sent...)
}

// ContractAddress is the checksummed address the stub assigns to the n-th
// (1-based) contract creation.
func ContractAddress(n int) string {
	return common.BigToAddress(new(big.Int).SetInt64(int64(0xC0DE0000 + n))).Hex()
}
