// Package execution gates trading signals with pre-trade risk checks and executes
// accepted signals through a swapper, updating the portfolio ledger.
package execution

import (
	"fmt"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/domain"
)

// MinTradeUSD is the smallest notional the validator accepts.
const MinTradeUSD = 10.0

// PortfolioState is the part of the ledger the validator reads.
type PortfolioState interface {
	Exposure() float64
	DailyPnL() float64
}

// Validator applies pre-trade risk checks. It never returns an error: a rejection
// is a false result with a reason, which is also logged.
type Validator struct {
	limits domain.RiskLimits
	log    zerolog.Logger
}

// NewValidator creates a validator for the given limits.
func NewValidator(limits domain.RiskLimits, logger zerolog.Logger) *Validator {
	return &Validator{
		limits: limits,
		log:    logger.With().Str("component", "validator").Logger(),
	}
}

// Limits returns the risk limits in use.
func (v *Validator) Limits() domain.RiskLimits {
	return v.limits
}

// Validate reports whether sig may be executed against a portfolio of balance USD.
// Checks run in order: confidence floor, action, minimum notional, daily loss, exposure cap.
func (v *Validator) Validate(sig domain.TradingSignal, balance float64, state PortfolioState) (bool, string) {
	ok, reason := v.check(sig, balance, state)
	if !ok {
		v.log.Warn().
			Str("token", sig.TokenAddress).
			Str("action", string(sig.Action)).
			Float64("confidence", sig.Confidence).
			Str("reason", reason).
			Msg("trade validation failed")
	}
	return ok, reason
}

func (v *Validator) check(sig domain.TradingSignal, balance float64, state PortfolioState) (bool, string) {
	if sig.Confidence < v.limits.MinConfidence {
		return false, fmt.Sprintf("signal confidence %.1f below minimum %.1f", sig.Confidence, v.limits.MinConfidence)
	}

	if sig.Action != domain.ActionBuy && sig.Action != domain.ActionSell {
		return false, "nothing to execute"
	}

	notional := balance * sig.PositionSize
	if notional < MinTradeUSD {
		return false, fmt.Sprintf("trade amount $%.2f too small", notional)
	}

	var exposure, dailyPnL float64
	if state != nil {
		exposure = state.Exposure()
		dailyPnL = state.DailyPnL()
	}

	if dailyPnL < -balance*v.limits.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit exceeded: %.2f < %.2f", dailyPnL, -balance*v.limits.MaxDailyLoss)
	}

	if exposure+notional > balance*v.limits.MaxTotalExposure {
		return false, fmt.Sprintf("total exposure limit would be exceeded: %.2f + %.2f > %.2f",
			exposure, notional, balance*v.limits.MaxTotalExposure)
	}

	return true, ""
}
