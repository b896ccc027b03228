package aa

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrHashComputationFailed is returned when the entry-point
	// getUserOpHash call errors.
	ErrHashComputationFailed = errors.New("user operation hash computation failed")

	// ErrSigningFailed is returned when the key refuses to sign.
	ErrSigningFailed = errors.New("user operation signing failed")
)

const entryPointABIJson = `[{"inputs":[{"components":[{"internalType":"address","name":"sender","type":"address"},{"internalType":"uint256","name":"nonce","type":"uint256"},{"internalType":"bytes","name":"initCode","type":"bytes"},{"internalType":"bytes","name":"callData","type":"bytes"},{"internalType":"uint256","name":"callGasLimit","type":"uint256"},{"internalType":"uint256","name":"verificationGasLimit","type":"uint256"},{"internalType":"uint256","name":"preVerificationGas","type":"uint256"},{"internalType":"uint256","name":"maxFeePerGas","type":"uint256"},{"internalType":"uint256","name":"maxPriorityFeePerGas","type":"uint256"},{"internalType":"bytes","name":"paymasterAndData","type":"bytes"},{"internalType":"bytes","name":"signature","type":"bytes"}],"internalType":"struct UserOperation","name":"userOp","type":"tuple"}],"name":"getUserOpHash","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}]`

// ContractCaller is the read-only client surface the signer needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// userOpTuple mirrors the entry point's fixed tuple order for ABI
// packing. Field order matters; the signature is empty at hash time.
type userOpTuple struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// Signer authorizes user operations with the owner key of the smart
// account, over the canonical hash reported by the entry point.
type Signer struct {
	client        ContractCaller
	entryPoint    common.Address
	key           *ecdsa.PrivateKey
	entryPointABI abi.ABI
}

// NewSigner creates a signer bound to one entry point and owner key.
func NewSigner(client ContractCaller, entryPoint common.Address, key *ecdsa.PrivateKey) (*Signer, error) {
	parsedABI, err := abi.JSON(strings.NewReader(entryPointABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry point ABI: %w", err)
	}

	return &Signer{
		client:        client,
		entryPoint:    entryPoint,
		key:           key,
		entryPointABI: parsedABI,
	}, nil
}

// Sign computes the operation hash via the entry point and returns a
// signed copy. The input operation is not modified.
func (s *Signer) Sign(ctx context.Context, op *UserOperation) (*UserOperation, error) {
	hash, err := s.OpHash(ctx, op)
	if err != nil {
		return nil, err
	}

	// EIP-191 personal-message signature over the raw operation hash,
	// with the recovery id shifted to the 27/28 convention the account
	// contract verifies against.
	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return op.WithSignature(sig), nil
}

// OpHash asks the entry point for the canonical hash of op.
func (s *Signer) OpHash(ctx context.Context, op *UserOperation) (common.Hash, error) {
	input, err := s.entryPointABI.Pack("getUserOpHash", userOpTuple{
		Sender:               op.Sender,
		Nonce:                op.Nonce,
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         op.CallGasLimit,
		VerificationGasLimit: op.VerificationGasLimit,
		PreVerificationGas:   op.PreVerificationGas,
		MaxFeePerGas:         op.MaxFeePerGas,
		MaxPriorityFeePerGas: op.MaxPriorityFeePerGas,
		PaymasterAndData:     op.PaymasterAndData,
		Signature:            op.Signature,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack getUserOpHash call: %w", err)
	}

	out, err := s.client.CallContract(ctx, ethereum.CallMsg{
		To:   &s.entryPoint,
		Data: input,
	}, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrHashComputationFailed, err)
	}
	if len(out) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: unexpected return length %d", ErrHashComputationFailed, len(out))
	}

	return common.BytesToHash(out), nil
}

// Address returns the signing key's address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}
