// Package config loads the deployment tool configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Storage drivers.
const (
	DriverMemory     = "memory"
	DriverPostgres   = "postgres"
	DriverClickhouse = "clickhouse"
)

// Config is the root configuration.
type Config struct {
	// Directory holding <Contract>.json build artifacts
	BuildDir string `yaml:"build_dir"`

	Networks map[string]NetworkConfig `yaml:"networks"`
	Storage  StorageConfig            `yaml:"storage"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// NetworkConfig describes one target chain.
type NetworkConfig struct {
	RPCURL string `yaml:"rpc_url"`
	WSURL  string `yaml:"ws_url"` // optional, enables newHeads confirmations

	// Node-managed account used as sender
	From string `yaml:"from"`

	ChainID       uint64 `yaml:"chain_id"` // 0 skips the chain ID check
	Gas           uint64 `yaml:"gas"`      // 0 estimates per deployment
	Confirmations uint64 `yaml:"confirmations"`
	PollInterval  string `yaml:"poll_interval"`
	Timeout       string `yaml:"timeout"`
}

// StorageConfig selects where deployment records are kept.
type StorageConfig struct {
	Driver        string `yaml:"driver"` // memory, postgres, clickhouse
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	// Apply embedded schema migrations on startup
	Migrate bool `yaml:"migrate"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultNetwork is the network used when none is selected.
const DefaultNetwork = "development"

// Default returns the default configuration: a local development chain and
// in-memory storage.
func Default() *Config {
	return &Config{
		BuildDir: "build/contracts",
		Networks: map[string]NetworkConfig{
			DefaultNetwork: defaultNetwork(),
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
		},
	}
}

func defaultNetwork() NetworkConfig {
	return NetworkConfig{
		RPCURL:        "http://127.0.0.1:8545",
		From:          "0x627306090abaB3A6e1400e9345bC60c78a8BEf57",
		Gas:           6721975,
		Confirmations: 1,
		PollInterval:  "1s",
		Timeout:       "5m",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.fillNetworkDefaults()
	cfg.applyEnvOverrides()

	return cfg, nil
}

// fillNetworkDefaults completes partially specified networks.
func (c *Config) fillNetworkDefaults() {
	def := defaultNetwork()
	for name, n := range c.Networks {
		if n.Confirmations == 0 {
			n.Confirmations = def.Confirmations
		}
		if n.PollInterval == "" {
			n.PollInterval = def.PollInterval
		}
		if n.Timeout == "" {
			n.Timeout = def.Timeout
		}
		c.Networks[name] = n
	}
}

func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		c.Storage.PostgresDSN = dsn
	}
	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		c.Storage.ClickhouseDSN = dsn
	}
}

// Network returns the named network.
func (c *Config) Network(name string) (NetworkConfig, error) {
	n, ok := c.Networks[name]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("unknown network %q (have %v): %w", name, c.NetworkNames(), ErrInvalidConfig)
	}
	return n, nil
}

// NetworkNames returns configured network names, sorted.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the settings needed to deploy to network.
func (c *Config) Validate(network string) error {
	n, err := c.Network(network)
	if err != nil {
		return err
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("network %s: %w", network, err)
	}

	if c.BuildDir == "" {
		return fmt.Errorf("build_dir is empty: %w", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres driver needs postgres_dsn: %w", ErrInvalidConfig)
		}
	case DriverClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("clickhouse driver needs clickhouse_dsn: %w", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown storage driver %q: %w", c.Storage.Driver, ErrInvalidConfig)
	}

	return nil
}

// Validate checks a single network.
func (n NetworkConfig) Validate() error {
	if n.RPCURL == "" {
		return fmt.Errorf("rpc_url is empty: %w", ErrInvalidConfig)
	}
	if !common.IsHexAddress(n.From) {
		return fmt.Errorf("from %q is not an address: %w", n.From, ErrInvalidConfig)
	}
	if n.Confirmations == 0 {
		return fmt.Errorf("confirmations must be at least 1: %w", ErrInvalidConfig)
	}
	if _, err := n.PollIntervalDuration(); err != nil {
		return err
	}
	if _, err := n.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// PollIntervalDuration parses PollInterval.
func (n NetworkConfig) PollIntervalDuration() (time.Duration, error) {
	return parsePositive("poll_interval", n.PollInterval)
}

// TimeoutDuration parses Timeout.
func (n NetworkConfig) TimeoutDuration() (time.Duration, error) {
	return parsePositive("timeout", n.Timeout)
}

func parsePositive(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %v: %w", field, value, err, ErrInvalidConfig)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive: %w", field, ErrInvalidConfig)
	}
	return d, nil
}
