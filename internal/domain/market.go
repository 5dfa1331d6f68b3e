package domain

import "time"

// MarketSnapshot holds per-token market metrics for one analysis cycle.
// Percentages are expressed in percent units (12 means 12%).
//
// PriceImpact10k is meaningful only when HasPriceImpact is set, and ATHChange
// and ATLChange only when HasATH is set. Consumers treat an unknown value
// as unfavourable, never as zero.
type MarketSnapshot struct {
	Address         string    `json:"address"`
	Symbol          string    `json:"symbol,omitempty"`
	Price           float64   `json:"price"`
	PriceChange24h  float64   `json:"price_change_24h"`
	Volume24h       float64   `json:"volume_24h"`
	VolumeChange24h float64   `json:"volume_change_24h"`
	Liquidity       float64   `json:"liquidity"`
	MarketCap       float64   `json:"market_cap"`
	Holders         int64     `json:"holders"`
	BuySellRatio    float64   `json:"buy_sell_ratio"`
	PriceImpact10k  float64   `json:"price_impact_10k"` // % impact of a $10k trade
	ATHChange       float64   `json:"ath_change"`       // % from all-time high, <= 0
	ATLChange       float64   `json:"atl_change"`       // % above all-time low, >= 0
	HasPriceImpact  bool      `json:"has_price_impact"`
	HasATH          bool      `json:"has_ath"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TechnicalIndicators holds indicators derived from OHLCV data for one token.
type TechnicalIndicators struct {
	RSI            float64 `json:"rsi"`
	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	MACDHistogram  float64 `json:"macd_histogram"`
	SMA20          float64 `json:"sma_20"`
	SMA50          float64 `json:"sma_50"`
	BollingerUpper float64 `json:"bollinger_upper"`
	BollingerLower float64 `json:"bollinger_lower"`
	Support        float64 `json:"support"`
	Resistance     float64 `json:"resistance"`
	Volatility     float64 `json:"volatility"`
}

// Candle is a single OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// NewToken is a newly listed token reported by a listing feed.
type NewToken struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	MarketCap float64   `json:"market_cap"`
	Liquidity float64   `json:"liquidity"`
	Volume24h float64   `json:"volume_24h"`
	Holders   int64     `json:"holders"`
	PoolType  string    `json:"pool_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
