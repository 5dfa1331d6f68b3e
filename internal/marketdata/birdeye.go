package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/upstream"
)

// DefaultBirdeyeURL is the public Birdeye API.
const DefaultBirdeyeURL = "https://public-api.birdeye.so"

// ClientConfig configures a market data client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	RPS     float64
	Logger  zerolog.Logger
}

// BirdeyeClient reads prices, token overviews, OHLCV and wallet balances from Birdeye.
type BirdeyeClient struct {
	http *upstream.Client
}

// NewBirdeyeClient creates a Birdeye client.
func NewBirdeyeClient(cfg ClientConfig) *BirdeyeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBirdeyeURL
	}
	headers := map[string]string{"x-chain": "solana"}
	if cfg.APIKey != "" {
		headers["X-API-KEY"] = cfg.APIKey
	}
	return &BirdeyeClient{
		http: upstream.New(upstream.Config{
			Provider: "birdeye",
			BaseURL:  cfg.BaseURL,
			Headers:  headers,
			RPS:      cfg.RPS,
			Logger:   cfg.Logger,
		}),
	}
}

type birdeyeEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *BirdeyeClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	var env birdeyeEnvelope
	if err := c.http.GetJSON(ctx, path, q, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("birdeye %s: %s", path, env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("birdeye %s: %w", path, domain.ErrDataUnavailable)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("birdeye %s: decode data: %w", path, err)
	}
	return nil
}

// PriceQuote is one entry of the multi-price endpoint.
type PriceQuote struct {
	Value          float64 `json:"value"`
	PriceChange24h float64 `json:"priceChange24h"`
	UpdateUnixTime int64   `json:"updateUnixTime"`
}

// Price returns the USD price of one token.
func (c *BirdeyeClient) Price(ctx context.Context, address string) (float64, error) {
	var data PriceQuote
	if err := c.get(ctx, "/defi/price", url.Values{"address": {address}}, &data); err != nil {
		return 0, err
	}
	return data.Value, nil
}

// MultiPrice returns prices for many tokens in one request. Tokens Birdeye does
// not know are absent from the result.
func (c *BirdeyeClient) MultiPrice(ctx context.Context, addresses []string) (map[string]PriceQuote, error) {
	if len(addresses) == 0 {
		return map[string]PriceQuote{}, nil
	}
	var data map[string]*PriceQuote
	q := url.Values{"list_address": {strings.Join(addresses, ",")}}
	if err := c.get(ctx, "/defi/multi_price", q, &data); err != nil {
		return nil, err
	}

	out := make(map[string]PriceQuote, len(data))
	for addr, p := range data {
		if p != nil && p.Value > 0 {
			out[addr] = *p
		}
	}
	return out, nil
}

// TokenOverview is the subset of /defi/token_overview used for snapshots.
type TokenOverview struct {
	Address               string  `json:"address"`
	Symbol                string  `json:"symbol"`
	Name                  string  `json:"name"`
	Decimals              int     `json:"decimals"`
	Price                 float64 `json:"price"`
	Liquidity             float64 `json:"liquidity"`
	MarketCap             float64 `json:"marketCap"`
	MC                    float64 `json:"mc"`
	Holder                int64   `json:"holder"`
	PriceChange24hPercent float64 `json:"priceChange24hPercent"`
	V24hUSD               float64 `json:"v24hUSD"`
	V24hChangePercent     float64 `json:"v24hChangePercent"`
	Buy24h                float64 `json:"buy24h"`
	Sell24h               float64 `json:"sell24h"`
}

// MarketCapUSD returns whichever market cap field Birdeye filled.
func (o *TokenOverview) MarketCapUSD() float64 {
	if o.MarketCap > 0 {
		return o.MarketCap
	}
	return o.MC
}

// BuySellRatio returns buys over sells in the last 24h, or 1 when unknown.
func (o *TokenOverview) BuySellRatio() float64 {
	if o.Sell24h <= 0 {
		if o.Buy24h > 0 {
			return o.Buy24h
		}
		return 1
	}
	return o.Buy24h / o.Sell24h
}

// TokenOverview returns market statistics for a token.
func (c *BirdeyeClient) TokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	var data TokenOverview
	if err := c.get(ctx, "/defi/token_overview", url.Values{"address": {address}}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

type birdeyeOHLCV struct {
	Items []struct {
		UnixTime int64   `json:"unixTime"`
		O        float64 `json:"o"`
		H        float64 `json:"h"`
		L        float64 `json:"l"`
		C        float64 `json:"c"`
		V        float64 `json:"v"`
	} `json:"items"`
}

// OHLCV returns candles of the given interval ("1m", "15m", "1H", "1D", ...) between from and to.
func (c *BirdeyeClient) OHLCV(ctx context.Context, address, interval string, from, to time.Time) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("type", interval)
	q.Set("time_from", strconv.FormatInt(from.Unix(), 10))
	q.Set("time_to", strconv.FormatInt(to.Unix(), 10))

	var data birdeyeOHLCV
	if err := c.get(ctx, "/defi/ohlcv", q, &data); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(data.Items))
	for _, it := range data.Items {
		candles = append(candles, domain.Candle{
			Time:   time.Unix(it.UnixTime, 0).UTC(),
			Open:   it.O,
			High:   it.H,
			Low:    it.L,
			Close:  it.C,
			Volume: it.V,
		})
	}
	return candles, nil
}

// WalletToken is one holding in a wallet.
type WalletToken struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
	PriceUSD float64 `json:"priceUsd"`
	ValueUSD float64 `json:"valueUsd"`
}

// WalletPortfolio is the token list of a wallet.
type WalletPortfolio struct {
	Wallet   string        `json:"wallet"`
	TotalUSD float64       `json:"totalUsd"`
	Items    []WalletToken `json:"items"`
}

// WalletTokens returns the token holdings of a wallet.
func (c *BirdeyeClient) WalletTokens(ctx context.Context, wallet string) (*WalletPortfolio, error) {
	var data WalletPortfolio
	if err := c.get(ctx, "/v1/wallet/token_list", url.Values{"wallet": {wallet}}, &data); err != nil {
		return nil, err
	}
	if data.Wallet == "" {
		data.Wallet = wallet
	}
	return &data, nil
}
