package aa

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// stubCaller returns a fixed entry-point response and records the call.
type stubCaller struct {
	out      []byte
	err      error
	lastCall ethereum.CallMsg
}

func (c *stubCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.lastCall = call
	return c.out, c.err
}

func sampleOp() *UserOperation {
	return &UserOperation{
		Sender:               testAccount,
		Nonce:                big.NewInt(3),
		InitCode:             []byte{},
		CallData:             []byte{0x01, 0x02, 0x03},
		CallGasLimit:         big.NewInt(500000),
		VerificationGasLimit: big.NewInt(150000),
		PreVerificationGas:   big.NewInt(21000),
		MaxFeePerGas:         big.NewInt(100),
		MaxPriorityFeePerGas: big.NewInt(2),
		PaymasterAndData:     DefaultPaymasterData(testPaymaster),
		Signature:            []byte{},
	}
}

func TestSignRecoversToOwner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	opHash := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	caller := &stubCaller{out: opHash.Bytes()}
	signer, err := NewSigner(caller, testEntryPoint, key)
	require.NoError(t, err)

	op := sampleOp()
	signed, err := signer.Sign(context.Background(), op)
	require.NoError(t, err)

	require.Len(t, signed.Signature, 65)
	v := signed.Signature[64]
	assert.True(t, v == 27 || v == 28)

	// Recover under the EIP-191 prefix; the account contract does the same.
	sig := append([]byte(nil), signed.Signature...)
	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(opHash.Bytes()), sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestSignLeavesInputUnchanged(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	caller := &stubCaller{out: common.HexToHash("0x01").Bytes()}
	signer, err := NewSigner(caller, testEntryPoint, key)
	require.NoError(t, err)

	op := sampleOp()
	signed, err := signer.Sign(context.Background(), op)
	require.NoError(t, err)

	assert.Empty(t, op.Signature)
	assert.NotEmpty(t, signed.Signature)
	assert.Equal(t, op.CallData, signed.CallData)
	assert.Equal(t, op.Nonce.String(), signed.Nonce.String())
}

func TestOpHashCallsEntryPoint(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	opHash := common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller := &stubCaller{out: opHash.Bytes()}
	signer, err := NewSigner(caller, testEntryPoint, key)
	require.NoError(t, err)

	hash, err := signer.OpHash(context.Background(), sampleOp())
	require.NoError(t, err)
	assert.Equal(t, opHash, hash)

	require.NotNil(t, caller.lastCall.To)
	assert.Equal(t, testEntryPoint, *caller.lastCall.To)

	selector := crypto.Keccak256([]byte("getUserOpHash((address,uint256,bytes,bytes,uint256,uint256,uint256,uint256,uint256,bytes,bytes))"))[:4]
	assert.Equal(t, selector, caller.lastCall.Data[:4])
}

func TestOpHashCallFailure(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	caller := &stubCaller{err: errors.New("entry point unreachable")}
	signer, err := NewSigner(caller, testEntryPoint, key)
	require.NoError(t, err)

	_, err = signer.OpHash(context.Background(), sampleOp())
	assert.ErrorIs(t, err, ErrHashComputationFailed)

	_, err = signer.Sign(context.Background(), sampleOp())
	assert.ErrorIs(t, err, ErrHashComputationFailed)
}

func TestOpHashBadReturnLength(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	caller := &stubCaller{out: []byte{0x01, 0x02}}
	signer, err := NewSigner(caller, testEntryPoint, key)
	require.NoError(t, err)

	_, err = signer.OpHash(context.Background(), sampleOp())
	assert.ErrorIs(t, err, ErrHashComputationFailed)
}
