package config

import (
	"fmt"
	"os"

	"github.com/michaelpento.lv/arbbot/types"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// Base mainnet token addresses used by the default pair set.
var (
	BaseWETH = common.HexToAddress("0x4200000000000000000000000000000000000006")
	BaseUSDC = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	BaseDAI  = common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb")
)

// PairEntry is one tracked pair in the YAML pairs file.
type PairEntry struct {
	TokenA    string `yaml:"token_a"`
	TokenB    string `yaml:"token_b"`
	SymbolA   string `yaml:"symbol_a"`
	SymbolB   string `yaml:"symbol_b"`
	DecimalsA uint8  `yaml:"decimals_a"`
	DecimalsB uint8  `yaml:"decimals_b"`
}

type pairsFile struct {
	Pairs []PairEntry `yaml:"pairs"`
}

// LoadPairs reads the tracked-pair list from a YAML file. An empty
// path returns the default Base mainnet set.
func LoadPairs(path string) ([]types.TokenPair, error) {
	if path == "" {
		return DefaultPairs(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs file: %w", err)
	}

	var file pairsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pairs file: %w", err)
	}
	if len(file.Pairs) == 0 {
		return nil, fmt.Errorf("pairs file %s lists no pairs", path)
	}

	pairs := make([]types.TokenPair, 0, len(file.Pairs))
	for i, entry := range file.Pairs {
		if !common.IsHexAddress(entry.TokenA) || !common.IsHexAddress(entry.TokenB) {
			return nil, fmt.Errorf("pair %d has an invalid token address", i)
		}
		pairs = append(pairs, types.TokenPair{
			TokenA:    common.HexToAddress(entry.TokenA),
			TokenB:    common.HexToAddress(entry.TokenB),
			SymbolA:   entry.SymbolA,
			SymbolB:   entry.SymbolB,
			DecimalsA: entry.DecimalsA,
			DecimalsB: entry.DecimalsB,
		})
	}

	return pairs, nil
}

// DefaultPairs returns the Base mainnet pairs tracked out of the box.
func DefaultPairs() []types.TokenPair {
	return []types.TokenPair{
		{
			TokenA:    BaseWETH,
			TokenB:    BaseUSDC,
			SymbolA:   "WETH",
			SymbolB:   "USDC",
			DecimalsA: 18,
			DecimalsB: 6,
		},
		{
			TokenA:    BaseUSDC,
			TokenB:    BaseDAI,
			SymbolA:   "USDC",
			SymbolB:   "DAI",
			DecimalsA: 6,
			DecimalsB: 18,
		},
	}
}
