package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"token-deploy/internal/artifact"
	"token-deploy/internal/domain"
	"token-deploy/internal/ethereum"
	"token-deploy/internal/observability"
)

// ErrReverted is returned when the creation transaction was mined with status 0.
var ErrReverted = errors.New("contract creation reverted")

// Config holds transaction and confirmation settings for RPCDeployer.
type Config struct {
	// From is the node-managed account that signs and pays.
	From string
	// Gas is the gas limit; 0 uses eth_estimateGas.
	Gas uint64
	// Confirmations is the number of blocks, including the inclusion block,
	// to wait for. Values below 1 are treated as 1.
	Confirmations uint64
	// PollInterval is the receipt and block-number polling period.
	PollInterval time.Duration
	// Timeout bounds one deployment from send to final confirmation.
	Timeout time.Duration
}

// DefaultConfig returns settings suited to a local development chain.
func DefaultConfig() Config {
	return Config{
		Confirmations: 1,
		PollInterval:  time.Second,
		Timeout:       5 * time.Minute,
	}
}

// Option configures an RPCDeployer.
type Option func(*RPCDeployer)

// WithWSClient waits for confirmations on a newHeads subscription instead of polling.
func WithWSClient(ws ethereum.WSClient) Option {
	return func(d *RPCDeployer) {
		d.ws = ws
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *RPCDeployer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// RPCDeployer deploys contracts through a node's eth_sendTransaction.
// The send is never retried: a resent creation would deploy a second contract.
type RPCDeployer struct {
	rpc    ethereum.RPCClient
	ws     ethereum.WSClient
	cfg    Config
	logger *zap.Logger
}

// NewRPCDeployer creates a deployer sending from cfg.From.
func NewRPCDeployer(rpc ethereum.RPCClient, cfg Config, opts ...Option) *RPCDeployer {
	if cfg.Confirmations < 1 {
		cfg.Confirmations = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	d := &RPCDeployer{
		rpc:    rpc,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy creates a from artifact a with constructor args and waits for it to be confirmed.
func (d *RPCDeployer) Deploy(ctx context.Context, a *artifact.Artifact, args ...any) (_ *domain.Deployment, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDeployment(a.Name, time.Since(start).Seconds(), err)
	}()

	data, err := EncodeConstructor(a, args)
	if err != nil {
		return nil, err
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	tx := &ethereum.TxRequest{
		From: d.cfg.From,
		Data: data,
		Gas:  d.cfg.Gas,
	}
	if tx.Gas == 0 {
		gas, err := d.rpc.EstimateGas(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("estimate gas for %s: %w", a.Name, err)
		}
		tx.Gas = gas
	}

	log := d.logger.With(zap.String("artifact", a.Name))
	log.Info("deploying", zap.Uint64("gas", tx.Gas), zap.Int("args", len(args)))

	txHash, err := d.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send %s creation: %w", a.Name, err)
	}
	log = log.With(zap.String("tx", txHash))
	log.Debug("transaction sent")

	receipt, err := d.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("wait receipt for %s: %w", a.Name, err)
	}
	if !receipt.Succeeded() {
		return nil, fmt.Errorf("%s tx %s in block %d: %w", a.Name, txHash, receipt.BlockNumber, ErrReverted)
	}
	if receipt.ContractAddress == "" {
		return nil, fmt.Errorf("%s tx %s: receipt has no contract address", a.Name, txHash)
	}

	waitStart := time.Now()
	if err := d.waitConfirmations(ctx, receipt.BlockNumber); err != nil {
		return nil, fmt.Errorf("confirm %s: %w", a.Name, err)
	}
	observability.RecordConfirmationWait(time.Since(waitStart).Seconds())

	log.Info("deployed",
		zap.String("address", receipt.ContractAddress),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed),
	)

	return &domain.Deployment{
		Artifact:    a.Name,
		Address:     receipt.ContractAddress,
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// waitReceipt polls until the transaction is mined.
func (d *RPCDeployer) waitReceipt(ctx context.Context, txHash string) (*ethereum.Receipt, error) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.rpc.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitConfirmations blocks until the head reaches the last required block.
func (d *RPCDeployer) waitConfirmations(ctx context.Context, included uint64) error {
	target := included + d.cfg.Confirmations - 1

	head, err := d.rpc.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head >= target {
		return nil
	}

	if d.ws != nil {
		done, err := d.waitHeads(ctx, target)
		if err != nil || done {
			return err
		}
		d.logger.Warn("head subscription ended, polling block number", zap.Uint64("target", target))
	}

	return d.pollBlocks(ctx, target)
}

// waitHeads follows newHeads until target. done is false when the
// subscription could not be used and the caller should fall back to polling.
func (d *RPCDeployer) waitHeads(ctx context.Context, target uint64) (done bool, err error) {
	sub, err := d.ws.SubscribeNewHeads(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		d.logger.Warn("subscribe newHeads failed", zap.Error(err))
		return false, nil
	}
	defer sub.Unsubscribe()

	// The head may have moved between the first check and the subscription
	if head, err := d.rpc.BlockNumber(ctx); err == nil && head >= target {
		return true, nil
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case head, ok := <-sub.C:
			if !ok {
				return false, nil
			}
			if head.Number >= target {
				return true, nil
			}
		}
	}
}

func (d *RPCDeployer) pollBlocks(ctx context.Context, target uint64) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		head, err := d.rpc.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if head >= target {
			return nil
		}
	}
}
