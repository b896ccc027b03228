package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/michaelpento.lv/arbbot/dex"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// DefaultBaseURL targets the 1inch swap API v5.2 for Base mainnet
// (chain id 8453).
const DefaultBaseURL = "https://api.1inch.dev/swap/v5.2/8453"

const contentTypeJSON = "application/json"

// Client implements dex.PriceSource against the 1inch swap-quote API.
// The returned quote carries the router call data for the quoted
// route, which the executor reuses for the 1inch leg of the trade.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	slippage   float64
	limiter    *rate.Limiter
}

// NewClient creates a 1inch client. rps bounds outgoing requests; the
// free API tier enforces 1 rps, so scans wait on the limiter rather
// than burn the quota.
func NewClient(baseURL, apiKey string, slippage float64, rps float64, burst int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		baseURL:  baseURL,
		apiKey:   apiKey,
		slippage: slippage,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return "1inch"
}

type swapResponse struct {
	ToAmount string `json:"toAmount"`
	Tx       struct {
		Data string `json:"data"`
	} `json:"tx"`
}

// QuoteExactInput quotes a swap and returns the routed output amount
// together with the router call data.
func (c *Client) QuoteExactInput(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	query := url.Values{}
	query.Set("src", tokenIn.Hex())
	query.Set("dst", tokenOut.Hex())
	query.Set("amount", amountIn.String())
	query.Set("from", common.Address{}.Hex())
	query.Set("slippage", fmt.Sprintf("%g", c.slippage))
	query.Set("disableEstimate", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("swap quote returned %d: %s", resp.StatusCode, string(body))
	}

	var swap swapResponse
	if err := json.NewDecoder(resp.Body).Decode(&swap); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}

	amountOut, ok := new(big.Int).SetString(swap.ToAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid toAmount %q", swap.ToAmount)
	}

	return &dex.Quote{
		AmountOut: amountOut,
		CallData:  common.FromHex(swap.Tx.Data),
	}, nil
}
