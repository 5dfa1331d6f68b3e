package scoring

import "solana-trading-assistant/internal/domain"

// RiskFactors counts risk points from liquidity, volatility, price impact and market cap.
// Each check contributes 0, 1 or 2. An unknown price impact counts as the worst case.
func RiskFactors(snap domain.MarketSnapshot, ind domain.TechnicalIndicators) int {
	factors := 0

	if snap.Liquidity < 100_000 {
		factors += 2
	} else if snap.Liquidity < 500_000 {
		factors++
	}

	if ind.Volatility > 20 {
		factors += 2
	} else if ind.Volatility > 10 {
		factors++
	}

	if !snap.HasPriceImpact || snap.PriceImpact10k > 5 {
		factors += 2
	} else if snap.PriceImpact10k > 2 {
		factors++
	}

	if snap.MarketCap < 1_000_000 {
		factors += 2
	} else if snap.MarketCap < 10_000_000 {
		factors++
	}

	return factors
}

// ClassifyRisk maps the risk factor count to a tier.
func ClassifyRisk(snap domain.MarketSnapshot, ind domain.TechnicalIndicators) domain.RiskTier {
	return TierForFactors(RiskFactors(snap, ind))
}

// TierForFactors maps a factor count to a tier: >=6 EXTREME, >=4 HIGH, >=2 MEDIUM.
func TierForFactors(factors int) domain.RiskTier {
	switch {
	case factors >= 6:
		return domain.RiskExtreme
	case factors >= 4:
		return domain.RiskHigh
	case factors >= 2:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
