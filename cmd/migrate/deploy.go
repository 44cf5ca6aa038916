package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"token-deploy/internal/artifact"
	"token-deploy/internal/config"
	"token-deploy/internal/deployer"
	"token-deploy/internal/ethereum"
	"token-deploy/internal/migration"
	"token-deploy/internal/observability"
)

type deployFlags struct {
	rpcURL        string
	wsURL         string
	from          string
	gas           uint64
	confirmations uint64
	dryRun        bool
	nonce         uint64
}

func newDeployCmd(root *rootFlags, s *session) *cobra.Command {
	flags := &deployFlags{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy Manager and Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.cfg
			network, err := cfg.Network(root.network)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("rpc-url") {
				network.RPCURL = flags.rpcURL
			}
			if fs.Changed("ws-url") {
				network.WSURL = flags.wsURL
			}
			if fs.Changed("from") {
				network.From = flags.from
			}
			if fs.Changed("gas") {
				network.Gas = flags.gas
			}
			if fs.Changed("confirmations") {
				network.Confirmations = flags.confirmations
			}
			cfg.Networks[root.network] = network

			if err := cfg.Validate(root.network); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDeploy(ctx, cmd, cfg, root.network, flags, s.logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.rpcURL, "rpc-url", "", "JSON-RPC HTTP endpoint (overrides config)")
	f.StringVar(&flags.wsURL, "ws-url", "", "WebSocket endpoint for newHeads (overrides config)")
	f.StringVar(&flags.from, "from", "", "node-managed sender account (overrides config)")
	f.Uint64Var(&flags.gas, "gas", 0, "gas limit per deployment, 0 estimates (overrides config)")
	f.Uint64Var(&flags.confirmations, "confirmations", 0, "blocks to wait for (overrides config)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "encode and simulate without contacting a node")
	f.Uint64Var(&flags.nonce, "nonce", 0, "sender nonce used to predict addresses in a dry run")

	return cmd
}

func runDeploy(ctx context.Context, cmd *cobra.Command, cfg *config.Config, networkName string, flags *deployFlags, logger *zap.Logger) error {
	network, err := cfg.Network(networkName)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var (
		d     migration.Deployer
		store = cfg.Storage
	)
	if flags.dryRun {
		logger.Info("dry run: nothing is sent", zap.String("from", network.From), zap.Uint64("nonce", flags.nonce))
		d = deployer.NewSimulated(network.From, flags.nonce)
		store.Driver = config.DriverMemory
	} else {
		rpcDeployer, closeWS, err := newRPCDeployer(ctx, network, logger)
		if err != nil {
			return err
		}
		defer closeWS()
		d = rpcDeployer
	}

	records, closeStore, err := openStore(ctx, store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := migration.New(migration.Options{
		Deployer: d,
		Registry: artifact.NewDirRegistry(cfg.BuildDir),
		Store:    records,
		Network:  networkName,
		Logger:   logger,
	})

	res, err := runner.Run(ctx)
	if res != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s on %s\n", res.RunID, res.Network)
		for _, dep := range res.Deployments {
			fmt.Fprintf(out, "%-8s %s tx %s block %d\n", dep.Artifact, dep.Address, dep.TxHash, dep.BlockNumber)
		}
	}
	return err
}

// newRPCDeployer connects to the network's node and checks its chain ID.
func newRPCDeployer(ctx context.Context, network config.NetworkConfig, logger *zap.Logger) (*deployer.RPCDeployer, func(), error) {
	pollInterval, err := network.PollIntervalDuration()
	if err != nil {
		return nil, nil, err
	}
	timeout, err := network.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	rpc := ethereum.NewHTTPClient(network.RPCURL)

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("query chain id: %w", err)
	}
	if network.ChainID != 0 && chainID != network.ChainID {
		return nil, nil, fmt.Errorf("node reports chain id %d, config expects %d", chainID, network.ChainID)
	}
	logger.Info("connected", zap.String("rpc", network.RPCURL), zap.Uint64("chain_id", chainID))

	opts := []deployer.Option{deployer.WithLogger(logger)}
	closeWS := func() {}
	if network.WSURL != "" {
		wsCfg := ethereum.DefaultWSConfig()
		wsCfg.Logger = logger
		ws, err := ethereum.NewWSClient(ctx, network.WSURL, &wsCfg)
		if err != nil {
			// Polling still works without the subscription
			logger.Warn("websocket unavailable, polling for confirmations", zap.Error(err))
		} else {
			opts = append(opts, deployer.WithWSClient(ws))
			closeWS = func() { _ = ws.Close() }
		}
	}

	return deployer.NewRPCDeployer(rpc, deployer.Config{
		From:          network.From,
		Gas:           network.Gas,
		Confirmations: network.Confirmations,
		PollInterval:  pollInterval,
		Timeout:       timeout,
	}, opts...), closeWS, nil
}

func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return srv
}
