package domain

import "time"

// Action is the recommended trading action.
type Action string

// Trading actions.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskTier is a coarse risk classification.
type RiskTier string

// Risk tiers, ordered from lowest to highest.
const (
	RiskLow     RiskTier = "LOW"
	RiskMedium  RiskTier = "MEDIUM"
	RiskHigh    RiskTier = "HIGH"
	RiskExtreme RiskTier = "EXTREME"
)

// Rank returns the ordinal of the tier (LOW=0 ... EXTREME=3).
func (t RiskTier) Rank() int {
	switch t {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskExtreme:
		return 3
	default:
		return -1
	}
}

// TradingSignal is the scored recommendation for one token in one analysis cycle.
// Signals are values: once produced they are never mutated.
type TradingSignal struct {
	ID               string    `json:"id"`
	TokenAddress     string    `json:"token_address"`
	Action           Action    `json:"action"`
	Confidence       float64   `json:"confidence"`
	RiskTier         RiskTier  `json:"risk_level"`
	EntryPrice       float64   `json:"entry_price"`
	TargetPrice      float64   `json:"target_price"`
	StopLoss         float64   `json:"stop_loss"`
	PositionSize     float64   `json:"position_size"` // fraction of portfolio, 0..1
	Reasoning        string    `json:"reasoning"`
	TechnicalScore   float64   `json:"technical_score"`
	FundamentalScore float64   `json:"fundamental_score"`
	SentimentScore   float64   `json:"sentiment_score"`
	CreatedAt        time.Time `json:"timestamp"`
}
