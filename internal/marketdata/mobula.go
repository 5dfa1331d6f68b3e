package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/upstream"
)

const (
	// DefaultMobulaURL is the Mobula REST API.
	DefaultMobulaURL = "https://api.mobula.io/api/1"
	// DefaultPulseURL is the Mobula new-listings endpoint.
	DefaultPulseURL = "https://pulse-v2-api.mobula.io/api/2/pulse"

	mobulaBlockchain = "solana"
	pulseChainID     = "solana:solana"

	// MaxListings is the largest page the pulse endpoint serves.
	MaxListings = 100
)

// MobulaConfig configures a Mobula client.
type MobulaConfig struct {
	ClientConfig
	PulseURL string
}

// MobulaClient reads market data, OHLCV and new listings from Mobula.
type MobulaClient struct {
	http     *upstream.Client
	pulseURL string
}

// NewMobulaClient creates a Mobula client.
func NewMobulaClient(cfg MobulaConfig) *MobulaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMobulaURL
	}
	if cfg.PulseURL == "" {
		cfg.PulseURL = DefaultPulseURL
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = cfg.APIKey
	}
	return &MobulaClient{
		http: upstream.New(upstream.Config{
			Provider: "mobula",
			BaseURL:  cfg.BaseURL,
			Headers:  headers,
			RPS:      cfg.RPS,
			Logger:   cfg.Logger,
		}),
		pulseURL: cfg.PulseURL,
	}
}

type mobulaEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (c *MobulaClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	var env mobulaEnvelope
	if err := c.http.GetJSON(ctx, path, q, &env); err != nil {
		return err
	}
	if env.Error != "" {
		return fmt.Errorf("mobula %s: %s", path, env.Error)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("mobula %s: %w", path, domain.ErrDataUnavailable)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("mobula %s: decode data: %w", path, err)
	}
	return nil
}

// MarketData is the subset of /market/data used by the assistant.
type MarketData struct {
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Volume         float64 `json:"volume"`
	Liquidity      float64 `json:"liquidity"`
	MarketCap      float64 `json:"market_cap"`
	PriceChange24h float64 `json:"price_change_24h"`
	ATH            float64 `json:"ath"`
	ATL            float64 `json:"atl"`
}

// ATHChange returns the distance from the all-time high in percent (<= 0).
func (m *MarketData) ATHChange() float64 {
	if m.ATH <= 0 || m.Price <= 0 {
		return 0
	}
	change := (m.Price - m.ATH) / m.ATH * 100
	if change > 0 {
		return 0
	}
	return change
}

// ATLChange returns the distance above the all-time low in percent (>= 0).
func (m *MarketData) ATLChange() float64 {
	if m.ATL <= 0 || m.Price <= 0 {
		return 0
	}
	change := (m.Price - m.ATL) / m.ATL * 100
	if change < 0 {
		return 0
	}
	return change
}

// MarketData returns price, volume and all-time extremes for an asset.
func (c *MobulaClient) MarketData(ctx context.Context, asset string) (*MarketData, error) {
	q := url.Values{"asset": {asset}, "blockchain": {mobulaBlockchain}}
	var data MarketData
	if err := c.get(ctx, "/market/data", q, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

type mobulaCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// OHLCV returns up to limit candles of the given timeframe ("1m", "15m", "1h", "1d", ...).
func (c *MobulaClient) OHLCV(ctx context.Context, asset, timeframe string, limit int) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("asset", asset)
	q.Set("blockchain", mobulaBlockchain)
	q.Set("timeframe", timeframe)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var rows []mobulaCandle
	if err := c.get(ctx, "/market/ohlcv", q, &rows); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, domain.Candle{
			Time:   time.UnixMilli(r.Time).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return candles, nil
}

// ListingQuery selects a page of new listings.
type ListingQuery struct {
	Limit     int
	Offset    int
	PoolTypes []string
}

type pulseToken struct {
	Address   string  `json:"address"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume_24h"`
	Holders   int64   `json:"holders_count"`
	PoolType  string  `json:"pool_type"`
	CreatedAt string  `json:"created_at"`
}

type pulseResponse struct {
	Data []pulseToken `json:"data"`
	New  struct {
		Data []pulseToken `json:"data"`
	} `json:"new"`
}

// NewListings returns recently listed Solana tokens from the pulse feed.
func (c *MobulaClient) NewListings(ctx context.Context, query ListingQuery) ([]domain.NewToken, error) {
	limit := query.Limit
	if limit <= 0 || limit > MaxListings {
		limit = MaxListings
	}
	q := url.Values{}
	q.Set("assetMode", "true")
	q.Set("chainId", pulseChainID)
	q.Set("limit", strconv.Itoa(limit))
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	if len(query.PoolTypes) > 0 {
		q.Set("poolTypes", strings.Join(query.PoolTypes, ","))
	}

	var resp pulseResponse
	if err := c.http.GetJSON(ctx, c.pulseURL, q, &resp); err != nil {
		return nil, err
	}

	rows := resp.Data
	if len(rows) == 0 {
		rows = resp.New.Data
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	tokens := make([]domain.NewToken, 0, len(rows))
	for _, r := range rows {
		if r.Address == "" {
			continue
		}
		created, _ := time.Parse(time.RFC3339, r.CreatedAt)
		tokens = append(tokens, domain.NewToken{
			Address:   r.Address,
			Name:      r.Name,
			Symbol:    r.Symbol,
			Price:     r.Price,
			MarketCap: r.MarketCap,
			Liquidity: r.Liquidity,
			Volume24h: r.Volume24h,
			Holders:   r.Holders,
			PoolType:  r.PoolType,
			CreatedAt: created,
		})
	}
	return tokens, nil
}
