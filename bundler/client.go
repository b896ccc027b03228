// Package bundler speaks JSON-RPC 2.0 to an ERC-4337 bundler: it
// submits signed user operations and polls for terminal receipts.
package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/michaelpento.lv/arbbot/aa"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

const (
	contentTypeJSON = "application/json"

	methodSendUserOperation        = "eth_sendUserOperation"
	methodGetUserOperationReceipt  = "eth_getUserOperationReceipt"
	methodGetUserOperationByHash   = "eth_getUserOperationByHash"
	methodEstimateUserOperationGas = "eth_estimateUserOperationGas"
	methodSupportedEntryPoints     = "eth_supportedEntryPoints"
	methodChainID                  = "eth_chainId"
)

// Polling defaults: 60 attempts at 5s covers about five minutes.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 60
)

// seenCacheSize bounds the duplicate-submission guard.
const seenCacheSize = 4096

var (
	// ErrTimedOut is returned when receipt polling exhausts its
	// attempts without observing a receipt. The operation may still
	// settle later; this is NOT a confirmed failure.
	ErrTimedOut = errors.New("user operation receipt timed out")

	// ErrAlreadySubmitted is returned when the same signed operation
	// is handed to SendUserOperation twice. Submission is not
	// idempotent and is never retried.
	ErrAlreadySubmitted = errors.New("user operation already submitted")
)

// RelayError is an RPC-level error returned by the bundler. It is a
// hard failure for the attempt that triggered it.
type RelayError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("bundler error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RelayError     `json:"error"`
}

// Receipt is the bundler's terminal record for a user operation. The
// Success flag is reported as-is; judging it is the executor's job.
type Receipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Paymaster     common.Address `json:"paymaster"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// GasEstimate is the bundler's gas estimation for an operation.
type GasEstimate struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

// Client is an ERC-4337 bundler RPC client.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	entryPoint common.Address
	seen       *lru.Cache
	reqID      atomic.Uint64
	logger     *zap.Logger
}

// NewClient creates a bundler client bound to one entry point. apiKey
// may be empty for bundlers without bearer auth.
func NewClient(url, apiKey string, entryPoint common.Address, logger *zap.Logger) (*Client, error) {
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission cache: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		url:        url,
		apiKey:     apiKey,
		entryPoint: entryPoint,
		seen:       seen,
		logger:     logger,
	}, nil
}

// call performs one JSON-RPC round trip. A non-2xx transport response
// or an RPC error field is a hard failure.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(&rpcRequest{
		Jsonrpc: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned HTTP %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// SendUserOperation submits a signed operation and returns its hash.
// The same signed operation is rejected on a second call; submission
// is never retried by this client.
func (c *Client) SendUserOperation(ctx context.Context, op *aa.UserOperation) (common.Hash, error) {
	key := xxhash.Sum64(op.Signature)
	if _, dup := c.seen.Get(key); dup {
		return common.Hash{}, ErrAlreadySubmitted
	}

	result, err := c.call(ctx, methodSendUserOperation, []interface{}{op, c.entryPoint})
	if err != nil {
		return common.Hash{}, err
	}
	c.seen.Add(key, struct{}{})

	var opHash common.Hash
	if err := json.Unmarshal(result, &opHash); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode operation hash: %w", err)
	}

	c.logger.Info("User operation submitted", zap.String("op_hash", opHash.Hex()))
	return opHash, nil
}

// GetUserOperationReceipt looks up the receipt for opHash. A nil
// receipt with nil error means the operation is still pending.
func (c *Client) GetUserOperationReceipt(ctx context.Context, opHash common.Hash) (*Receipt, error) {
	result, err := c.call(ctx, methodGetUserOperationReceipt, []interface{}{opHash})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, nil
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &receipt, nil
}

// WaitForReceipt polls for a receipt every pollInterval, up to
// maxAttempts. Individual poll failures are swallowed and retried;
// only exhausting the budget without a receipt returns ErrTimedOut.
func (c *Client) WaitForReceipt(ctx context.Context, opHash common.Hash, pollInterval time.Duration, maxAttempts int) (*Receipt, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(pollInterval)
		}

		receipt, err := c.GetUserOperationReceipt(ctx, opHash)
		if err != nil {
			c.logger.Debug("Receipt poll failed",
				zap.String("op_hash", opHash.Hex()),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		if receipt != nil {
			return receipt, nil
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrTimedOut, maxAttempts)
}

// GetUserOperationByHash returns the raw operation lookup result, or
// nil while the bundler has not yet indexed it.
func (c *Client) GetUserOperationByHash(ctx context.Context, opHash common.Hash) (json.RawMessage, error) {
	result, err := c.call(ctx, methodGetUserOperationByHash, []interface{}{opHash})
	if err != nil {
		return nil, err
	}
	if bytes.Equal(result, []byte("null")) {
		return nil, nil
	}
	return result, nil
}

// EstimateUserOperationGas asks the bundler to size the gas fields.
func (c *Client) EstimateUserOperationGas(ctx context.Context, op *aa.UserOperation) (*GasEstimate, error) {
	result, err := c.call(ctx, methodEstimateUserOperationGas, []interface{}{op, c.entryPoint})
	if err != nil {
		return nil, err
	}

	var estimate GasEstimate
	if err := json.Unmarshal(result, &estimate); err != nil {
		return nil, fmt.Errorf("failed to decode gas estimate: %w", err)
	}
	return &estimate, nil
}

// SupportedEntryPoints lists the entry points the bundler serves.
func (c *Client) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	result, err := c.call(ctx, methodSupportedEntryPoints, []interface{}{})
	if err != nil {
		return nil, err
	}

	var entryPoints []common.Address
	if err := json.Unmarshal(result, &entryPoints); err != nil {
		return nil, fmt.Errorf("failed to decode entry points: %w", err)
	}
	return entryPoints, nil
}

// ChainID returns the bundler's chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	result, err := c.call(ctx, methodChainID, []interface{}{})
	if err != nil {
		return nil, err
	}

	var id hexutil.Big
	if err := json.Unmarshal(result, &id); err != nil {
		return nil, fmt.Errorf("failed to decode chain id: %w", err)
	}
	return id.ToInt(), nil
}
