package domain

import "time"

// DustThreshold is the residual amount below which a position is closed.
const DustThreshold = 0.001

// Position is an open holding in one token.
type Position struct {
	TokenAddress         string    `json:"token_address"`
	Symbol               string    `json:"symbol"`
	Amount               float64   `json:"amount"`
	EntryPrice           float64   `json:"entry_price"` // weighted average
	CurrentPrice         float64   `json:"current_price"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"`
	StopLoss             float64   `json:"stop_loss"`
	TakeProfit           float64   `json:"take_profit"`
	EntryTime            time.Time `json:"entry_time"`
	LastUpdated          time.Time `json:"last_updated"`
}

// Value returns the marked-to-market value of the position.
func (p Position) Value() float64 {
	return p.Amount * p.CurrentPrice
}

// LedgerSummary is a point-in-time view of the portfolio ledger.
type LedgerSummary struct {
	TotalPositions     int        `json:"total_positions"`
	TotalValueUSD      float64    `json:"total_value_usd"`
	TotalUnrealizedPnL float64    `json:"total_unrealized_pnl"`
	DailyPnL           float64    `json:"daily_pnl"`
	TotalPnL           float64    `json:"total_pnl"`
	PeakValue          float64    `json:"peak_value"`
	MaxDrawdown        float64    `json:"max_drawdown"`
	Positions          []Position `json:"positions"`
	Timestamp          time.Time  `json:"timestamp"`
}
