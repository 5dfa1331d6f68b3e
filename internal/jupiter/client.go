// Package jupiter talks to the Jupiter swap aggregator: quotes, swap transactions
// and USD prices. It also provides the live and paper swappers used by execution.
package jupiter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/upstream"
)

// DefaultBaseURL is the public Jupiter API.
const DefaultBaseURL = "https://lite-api.jup.ag"

// ErrNoRoute is returned when Jupiter has no route or price for a mint.
var ErrNoRoute = errors.New("jupiter: no route")

// Quote is the subset of /swap/v1/quote used here. Raw keeps the full response,
// which the swap endpoint expects back verbatim.
type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`

	Raw map[string]interface{} `json:"-"`
}

// PriceImpactPercent returns the quoted price impact in percent.
func (q *Quote) PriceImpactPercent() float64 {
	v, err := strconv.ParseFloat(q.PriceImpactPct, 64)
	if err != nil {
		return 0
	}
	return v * 100
}

// SwapTx is an unsigned swap transaction built by Jupiter.
type SwapTx struct {
	SwapTransaction      string `json:"swapTransaction"` // base64
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// Client is a Jupiter API client.
type Client struct {
	http *upstream.Client
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	RPS     float64
	Logger  zerolog.Logger
}

// NewClient creates a Jupiter client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["x-api-key"] = cfg.APIKey
	}
	return &Client{
		http: upstream.New(upstream.Config{
			Provider: "jupiter",
			BaseURL:  cfg.BaseURL,
			Headers:  headers,
			RPS:      cfg.RPS,
			Logger:   cfg.Logger,
		}),
	}
}

// Quote requests a swap quote for amount base units of inputMint.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	var raw map[string]interface{}
	if err := c.http.GetJSON(ctx, "/swap/v1/quote", q, &raw); err != nil {
		return nil, fmt.Errorf("quote %s->%s: %w", inputMint, outputMint, err)
	}
	if msg, ok := raw["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, msg)
	}

	quote := &Quote{Raw: raw}
	quote.InputMint, _ = raw["inputMint"].(string)
	quote.OutputMint, _ = raw["outputMint"].(string)
	quote.InAmount, _ = raw["inAmount"].(string)
	quote.OutAmount, _ = raw["outAmount"].(string)
	quote.PriceImpactPct, _ = raw["priceImpactPct"].(string)
	if v, ok := raw["slippageBps"].(float64); ok {
		quote.SlippageBps = int(v)
	}
	if quote.OutAmount == "" {
		return nil, fmt.Errorf("%w: empty quote for %s", ErrNoRoute, outputMint)
	}
	return quote, nil
}

type swapRequest struct {
	QuoteResponse                 map[string]interface{} `json:"quoteResponse"`
	UserPublicKey                 string                 `json:"userPublicKey"`
	WrapAndUnwrapSol              bool                   `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit       bool                   `json:"dynamicComputeUnitLimit"`
	ComputeUnitPriceMicroLamports int64                  `json:"computeUnitPriceMicroLamports,omitempty"`
}

// SwapTransaction builds the swap transaction for a quote, to be signed by user.
func (c *Client) SwapTransaction(ctx context.Context, quote *Quote, user string, priorityFeeMicroLamports int64) (*SwapTx, error) {
	req := swapRequest{
		QuoteResponse:                 quote.Raw,
		UserPublicKey:                 user,
		WrapAndUnwrapSol:              true,
		DynamicComputeUnitLimit:       true,
		ComputeUnitPriceMicroLamports: priorityFeeMicroLamports,
	}

	var tx SwapTx
	if err := c.http.PostJSON(ctx, "/swap/v1/swap", req, &tx); err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}
	if tx.SwapTransaction == "" {
		return nil, fmt.Errorf("build swap: empty transaction")
	}
	return &tx, nil
}

type priceResponse struct {
	Data map[string]*struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}

// Prices returns USD prices by mint. Mints without a price are omitted.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}

	var resp priceResponse
	q := url.Values{"ids": {strings.Join(mints, ",")}}
	if err := c.http.GetJSON(ctx, "/price/v2", q, &resp); err != nil {
		return nil, fmt.Errorf("prices: %w", err)
	}

	out := make(map[string]float64, len(resp.Data))
	for mint, entry := range resp.Data {
		if entry == nil {
			continue
		}
		p, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil || p <= 0 {
			continue
		}
		out[mint] = p
	}
	return out, nil
}

// Price returns the USD price of one mint.
func (c *Client) Price(ctx context.Context, mint string) (float64, error) {
	prices, err := c.Prices(ctx, []string{mint})
	if err != nil {
		return 0, err
	}
	p, ok := prices[mint]
	if !ok {
		return 0, fmt.Errorf("%w: no price for %s", ErrNoRoute, mint)
	}
	return p, nil
}

// PriceImpact10k quotes 10,000 USDC into mint and returns the price impact in percent.
func (c *Client) PriceImpact10k(ctx context.Context, mint string) (float64, error) {
	const tenThousandUSDC = 10_000 * 1_000_000
	quote, err := c.Quote(ctx, solana.USDCMint, mint, tenThousandUSDC, 100)
	if err != nil {
		return 0, err
	}
	return quote.PriceImpactPercent(), nil
}
