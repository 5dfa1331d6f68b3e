package domain

import "time"

// AlertType categorizes a risk alert.
type AlertType string

// Alert types.
const (
	AlertPortfolioValue AlertType = "PORTFOLIO_VALUE"
	AlertLiquidity      AlertType = "LIQUIDITY"
	AlertVolatility     AlertType = "VOLATILITY"
	AlertDailyLoss      AlertType = "DAILY_LOSS"
	AlertPriceImpact    AlertType = "PRICE_IMPACT"
)

// AlertSeverity ranks alert urgency.
type AlertSeverity string

// Alert severities.
const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// RiskAlert is raised when a monitored value crosses a threshold.
type RiskAlert struct {
	ID           string        `json:"id"`
	Type         AlertType     `json:"type"`
	Severity     AlertSeverity `json:"severity"`
	TokenAddress string        `json:"token_address,omitempty"`
	Message      string        `json:"message"`
	Value        float64       `json:"value"`
	Threshold    float64       `json:"threshold"`
	CreatedAt    time.Time     `json:"timestamp"`
}
