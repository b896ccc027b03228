package aa

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrGasEstimationFailed is returned when the node cannot estimate gas
// for the encoded call. The operation is never submitted with an
// unbounded gas limit.
var ErrGasEstimationFailed = errors.New("gas estimation failed")

// Default gas fields, matching the entry point's verification overhead
// for a single-owner account.
var (
	defaultVerificationGasLimit = big.NewInt(150000)
	defaultPreVerificationGas   = big.NewInt(21000)
)

const smartAccountABIJson = `[{"inputs":[{"internalType":"address","name":"dest","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"},{"internalType":"bytes","name":"func","type":"bytes"}],"name":"execute","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// ChainBackend is the subset of the eth client the builder reads.
// *ethclient.Client satisfies it.
type ChainBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// PaymasterDataFunc produces the paymasterAndData field. The layout
// beyond the leading paymaster address is relay-specific, so it is
// pluggable rather than hard-coded.
type PaymasterDataFunc func(paymaster common.Address) []byte

// DefaultPaymasterData concatenates the paymaster address with 20 zero
// bytes of placeholder validation data.
func DefaultPaymasterData(paymaster common.Address) []byte {
	return append(paymaster.Bytes(), make([]byte, 20)...)
}

// Builder assembles unsigned user operations for a smart account.
type Builder struct {
	backend       ChainBackend
	paymaster     common.Address
	paymasterData PaymasterDataFunc
	accountABI    abi.ABI
	logger        *zap.Logger
}

// NewBuilder creates a builder. paymasterData may be nil, in which
// case DefaultPaymasterData is used.
func NewBuilder(backend ChainBackend, paymaster common.Address, paymasterData PaymasterDataFunc, logger *zap.Logger) (*Builder, error) {
	parsedABI, err := abi.JSON(strings.NewReader(smartAccountABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse smart account ABI: %w", err)
	}
	if paymasterData == nil {
		paymasterData = DefaultPaymasterData
	}

	return &Builder{
		backend:       backend,
		paymaster:     paymaster,
		paymasterData: paymasterData,
		accountABI:    parsedABI,
		logger:        logger,
	}, nil
}

// Build assembles an unsigned operation that makes smartAccount call
// target with value and data. The nonce is read fresh on every build;
// relays reject replayed nonces, so a cached one is never acceptable.
func (b *Builder) Build(ctx context.Context, smartAccount, target common.Address, value *big.Int, data []byte) (*UserOperation, error) {
	nonce, err := b.backend.PendingNonceAt(ctx, smartAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to read account nonce: %w", err)
	}

	callData, err := b.accountABI.Pack("execute", target, value, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute call: %w", err)
	}

	gasLimit, err := b.backend.EstimateGas(ctx, ethereum.CallMsg{
		To:   &smartAccount,
		Data: callData,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGasEstimationFailed, err)
	}

	// Missing fee data is a degraded mode, not a build failure: the
	// operation goes out with zero fees and the relay decides.
	maxFeePerGas := big.NewInt(0)
	maxPriorityFeePerGas := big.NewInt(0)
	if gasPrice, err := b.backend.SuggestGasPrice(ctx); err != nil {
		b.logger.Warn("Fee data unavailable, building with zero fees", zap.Error(err))
	} else {
		maxFeePerGas = gasPrice
		if tip, err := b.backend.SuggestGasTipCap(ctx); err != nil {
			b.logger.Warn("Tip cap unavailable, building with zero priority fee", zap.Error(err))
		} else {
			maxPriorityFeePerGas = tip
		}
	}

	return &UserOperation{
		Sender:               smartAccount,
		Nonce:                new(big.Int).SetUint64(nonce),
		InitCode:             []byte{},
		CallData:             callData,
		CallGasLimit:         new(big.Int).SetUint64(gasLimit),
		VerificationGasLimit: new(big.Int).Set(defaultVerificationGasLimit),
		PreVerificationGas:   new(big.Int).Set(defaultPreVerificationGas),
		MaxFeePerGas:         maxFeePerGas,
		MaxPriorityFeePerGas: maxPriorityFeePerGas,
		PaymasterAndData:     b.paymasterData(b.paymaster),
		Signature:            []byte{},
	}, nil
}
