package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the static configuration consumed at construction time.
// Runtime changes go through the owning component's setters between
// scan cycles, never through this struct.
type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`
	BundlerURL  string `json:"bundler_url"`
	OneInchURL  string `json:"oneinch_url"`

	// Contract addresses
	EntryPoint       common.Address `json:"entry_point"`
	Paymaster        common.Address `json:"paymaster"`
	SmartAccount     common.Address `json:"smart_account"`
	ExecutorContract common.Address `json:"executor_contract"`
	UniswapQuoter    common.Address `json:"uniswap_quoter"`
	Recipient        common.Address `json:"recipient"`

	// Scanning parameters
	MinProfitThreshold float64       `json:"min_profit_threshold"` // percent
	AmountIn           *big.Int      `json:"amount_in"`
	ScanInterval       time.Duration `json:"scan_interval"`
	UniswapFeeTier     int64         `json:"uniswap_fee_tier"`
	PairsFile          string        `json:"pairs_file"`

	// Cost model
	GasPrice          *big.Int `json:"gas_price"`
	MaxGasPrice       *big.Int `json:"max_gas_price"`
	FlashLoanFeeRate  float64  `json:"flash_loan_fee_rate"`
	SlippageTolerance float64  `json:"slippage_tolerance"` // percent

	// Relay polling
	PollInterval    time.Duration `json:"poll_interval"`
	MaxPollAttempts int           `json:"max_poll_attempts"`

	// Off-chain API rate limit
	OneInchRateLimit RateLimitConfig `json:"oneinch_rate_limit"`

	// Execution
	AutoExecute bool `json:"auto_execute"`
}

// RateLimitConfig bounds outgoing requests to one API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	return nil
}

// ValidateConfig checks the configuration and reports every violation
// at once.
func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.BundlerURL == "" {
		errors = append(errors, "bundler_url must be specified")
	}
	if c.EntryPoint == (common.Address{}) {
		errors = append(errors, "entry_point must be specified")
	}
	if c.MinProfitThreshold < 0 {
		errors = append(errors, "min_profit_threshold must not be negative")
	}
	if c.AmountIn == nil || c.AmountIn.Sign() <= 0 {
		errors = append(errors, "amount_in must be positive")
	}
	if c.GasPrice == nil || c.GasPrice.Sign() <= 0 {
		errors = append(errors, "gas_price must be positive")
	}
	if c.MaxGasPrice == nil || c.MaxGasPrice.Sign() <= 0 {
		errors = append(errors, "max_gas_price must be positive")
	}
	if c.FlashLoanFeeRate < 0 || c.FlashLoanFeeRate >= 1 {
		errors = append(errors, "flash_loan_fee_rate must be in [0, 1)")
	}
	if c.ScanInterval <= 0 {
		errors = append(errors, "scan_interval must be positive")
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "poll_interval must be positive")
	}
	if c.MaxPollAttempts <= 0 {
		errors = append(errors, "max_poll_attempts must be positive")
	}
	if err := c.OneInchRateLimit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("oneinch rate limit error: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// LoadConfig loads and validates the JSON configuration file. An empty
// path falls back to $HOME/.arbbot.json.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".arbbot.json")
	}

	file, err := os.Open(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return &config, nil
}
