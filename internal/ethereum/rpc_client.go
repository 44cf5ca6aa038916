package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"token-deploy/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Ethereum RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by the node.
// Execution reverts during gas estimation surface here.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// singleAttempt lists methods that are never resent: the node signs each
// eth_sendTransaction with a fresh nonce, so a resend is a second transaction.
var singleAttempt = map[string]bool{
	"eth_sendTransaction": true,
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures, 429 and non-200 responses are retried; RPC errors are not.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds(), err)
	}()

	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	maxRetries := c.maxRetries
	if singleAttempt[method] {
		maxRetries = 0
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		respBody, status, err := c.post(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", status, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) post(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// ChainID returns the chain ID reported by the node.
func (c *HTTPClient) ChainID(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, "eth_chainId", nil, &result); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// BlockNumber returns the current head block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// SendTransaction submits tx for signing by the node and returns its hash.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx *TxRequest) (string, error) {
	var hash string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{txArgs(tx)}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// EstimateGas estimates gas required by tx.
func (c *HTTPClient) EstimateGas(ctx context.Context, tx *TxRequest) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, "eth_estimateGas", []interface{}{txArgs(tx)}, &result); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// txArgs converts a TxRequest into the JSON-RPC transaction object.
func txArgs(tx *TxRequest) map[string]interface{} {
	args := map[string]interface{}{
		"from": tx.From,
		"data": hexutil.Encode(tx.Data),
	}
	if tx.To != "" {
		args["to"] = tx.To
	}
	if tx.Gas > 0 {
		args["gas"] = hexutil.EncodeUint64(tx.Gas)
	}
	if tx.Value != nil {
		args["value"] = (*hexutil.Big)(tx.Value)
	}
	return args
}

// GetTransactionReceipt returns the receipt of a mined transaction, or nil while pending.
func (c *HTTPClient) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var result *getReceiptResult
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &result); err != nil {
		return nil, err
	}

	if result == nil {
		return nil, nil
	}

	receipt := &Receipt{
		TxHash:      result.TransactionHash,
		BlockNumber: uint64(result.BlockNumber),
		GasUsed:     uint64(result.GasUsed),
		Status:      uint64(result.Status),
	}
	if result.ContractAddress != nil && *result.ContractAddress != "" {
		receipt.ContractAddress = common.HexToAddress(*result.ContractAddress).Hex()
	}

	return receipt, nil
}

// getReceiptResult is the raw RPC response for eth_getTransactionReceipt.
type getReceiptResult struct {
	TransactionHash string         `json:"transactionHash"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	ContractAddress *string        `json:"contractAddress"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}
