package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"token-deploy/internal/config"
	"token-deploy/internal/logging"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	network    string
	verbose    bool

	buildDir    string
	storage     string
	metricsAddr string
}

// session holds what PersistentPreRunE prepares for the subcommands.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&session{})
}

func buildRootCmd(s *session) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Deploy the Manager and Token contracts",
		Long: `migrate deploys the Manager contract and then the Token contract with
fixed constructor arguments, through a node that manages the sending account.

Deployments are recorded in the configured store (memory, postgres or clickhouse).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, err := logging.New(flags.verbose || cfg.Logging.Verbose)
			if err != nil {
				return err
			}
			s.cfg, s.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.logger != nil {
				_ = s.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "migrate.yaml", "config file (defaults apply when missing)")
	pf.StringVarP(&flags.network, "network", "n", config.DefaultNetwork, "network from the config file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&flags.buildDir, "build-dir", "", "contract build directory (overrides config)")
	pf.StringVar(&flags.storage, "storage", "", "record store: memory, postgres, clickhouse (overrides config)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")

	root.AddCommand(
		newDeployCmd(flags, s),
		newPlanCmd(),
		newHistoryCmd(flags, s),
	)
	return root
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.buildDir != "" {
		cfg.BuildDir = flags.buildDir
	}
	if flags.storage != "" {
		cfg.Storage.Driver = flags.storage
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Addr = flags.metricsAddr
	}
	return cfg, nil
}

// shortArgs renders constructor arguments on one line.
func shortArgs(args []any) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		if str, ok := a.(string); ok {
			s += fmt.Sprintf("%q", str)
		} else {
			s += fmt.Sprint(a)
		}
	}
	return s
}
