package scoring

import (
	"math"

	"solana-trading-assistant/internal/domain"
)

// lowLiquidityThreshold halves the position size below this liquidity (USD).
const lowLiquidityThreshold = 500_000

var riskMultiplier = map[domain.RiskTier]float64{
	domain.RiskLow:     1.0,
	domain.RiskMedium:  0.7,
	domain.RiskHigh:    0.4,
	domain.RiskExtreme: 0.2,
}

// Stop-loss multipliers per tier. Higher tiers sit closer to entry.
var (
	buyStopFactor = map[domain.RiskTier]float64{
		domain.RiskLow:     0.95,
		domain.RiskMedium:  0.97,
		domain.RiskHigh:    0.98,
		domain.RiskExtreme: 0.99,
	}
	sellStopFactor = map[domain.RiskTier]float64{
		domain.RiskLow:     1.05,
		domain.RiskMedium:  1.03,
		domain.RiskHigh:    1.02,
		domain.RiskExtreme: 1.01,
	}
)

// PositionSize returns the fraction of the portfolio to commit.
// The result is within [0, maxPositionSize].
func PositionSize(confidence float64, tier domain.RiskTier, liquidity, maxPositionSize float64) float64 {
	mult, ok := riskMultiplier[tier]
	if !ok {
		mult = riskMultiplier[domain.RiskExtreme]
	}

	size := confidence / 100 * maxPositionSize * mult
	if liquidity < lowLiquidityThreshold {
		size /= 2
	}

	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return math.Min(size, maxPositionSize)
}

// PriceTargets returns the target and stop-loss prices for an action.
// HOLD returns the entry price for both.
func PriceTargets(entry float64, action domain.Action, ind domain.TechnicalIndicators, tier domain.RiskTier) (target, stop float64) {
	switch action {
	case domain.ActionBuy:
		factor, ok := buyStopFactor[tier]
		if !ok {
			factor = buyStopFactor[domain.RiskExtreme]
		}
		target = math.Max(entry*1.05, ind.Resistance)
		stop = math.Min(entry*factor, ind.Support)
	case domain.ActionSell:
		factor, ok := sellStopFactor[tier]
		if !ok {
			factor = sellStopFactor[domain.RiskExtreme]
		}
		target = math.Min(entry*0.95, ind.Support)
		stop = math.Max(entry*factor, ind.Resistance)
	default:
		target, stop = entry, entry
	}
	return target, stop
}
