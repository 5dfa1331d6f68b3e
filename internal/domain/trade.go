package domain

import "time"

// TradeStatus is the outcome of an execution attempt.
type TradeStatus string

// Trade statuses.
const (
	TradeStatusExecuted  TradeStatus = "EXECUTED"
	TradeStatusFailed    TradeStatus = "FAILED"
	TradeStatusRejected  TradeStatus = "REJECTED"
	TradeStatusValidated TradeStatus = "VALIDATED"
)

// TradeRecord is one entry of the execution journal.
// Corresponds to the trade_records table in PostgreSQL.
type TradeRecord struct {
	TradeID         string      `json:"trade_id"` // deterministic hash
	SignalID        string      `json:"signal_id"`
	TokenAddress    string      `json:"token_address"`
	Action          Action      `json:"action"`
	Status          TradeStatus `json:"status"`
	AmountUSD       float64     `json:"amount_usd"`
	AmountBaseUnits string      `json:"amount_base_units"` // lamports or token base units, decimal string
	Price           float64     `json:"price"`
	Confidence      float64     `json:"confidence"`
	RiskTier        RiskTier    `json:"risk_level"`
	PositionSize    float64     `json:"position_size"`
	RealizedPnL     float64     `json:"realized_pnl"` // sells only
	TxID            string      `json:"tx_id,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Paper           bool        `json:"paper"`
	CreatedAt       time.Time   `json:"created_at"`
}
