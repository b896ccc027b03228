package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/michaelpento.lv/arbbot/dex"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Default QuoterV3 deployment on Base mainnet.
var BaseQuoter = common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a")

// DefaultFeeTier is the 0.3% pool fee tier.
const DefaultFeeTier = 3000

const quoterABIJson = `[{"inputs":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"name":"quoteExactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}]`

// ContractCaller is the subset of the eth client the quoter needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Quoter implements dex.PriceSource against the Uniswap V3 quoter
// contract. quoteExactInputSingle is state-mutating on chain but is
// only ever executed through eth_call here.
type Quoter struct {
	client    ContractCaller
	quoter    common.Address
	feeTier   *big.Int
	quoterABI abi.ABI
}

// NewQuoter creates a quoter price source. feeTier selects the pool
// fee tier in hundredths of a bip (3000 = 0.3%).
func NewQuoter(client ContractCaller, quoterAddr common.Address, feeTier int64) (*Quoter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(quoterABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	return &Quoter{
		client:    client,
		quoter:    quoterAddr,
		feeTier:   big.NewInt(feeTier),
		quoterABI: parsedABI,
	}, nil
}

// Name returns the source name.
func (q *Quoter) Name() string {
	return "uniswap"
}

// QuoteExactInput quotes the swap output via the on-chain quoter.
func (q *Quoter) QuoteExactInput(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	input, err := q.quoterABI.Pack("quoteExactInputSingle", tokenIn, tokenOut, q.feeTier, amountIn, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("failed to pack quote call: %w", err)
	}

	out, err := q.client.CallContract(ctx, ethereum.CallMsg{
		To:   &q.quoter,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("quoter call failed: %w", err)
	}

	results, err := q.quoterABI.Unpack("quoteExactInputSingle", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack quote result: %w", err)
	}

	amountOut, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected quote result type %T", results[0])
	}

	return &dex.Quote{AmountOut: amountOut}, nil
}
