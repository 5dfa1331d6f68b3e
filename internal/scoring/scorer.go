// Package scoring implements the heuristic signal scorer, risk classifier,
// position sizer and price target calculator.
package scoring

import (
	"math"

	"solana-trading-assistant/internal/domain"
)

// Score bounds and blend weights.
const (
	Neutral  = 50.0
	MinScore = 0.0
	MaxScore = 100.0

	TechnicalWeight   = 0.40
	FundamentalWeight = 0.35
	SentimentWeight   = 0.25

	BuyThreshold  = 70.0
	SellThreshold = 30.0
)

// TechnicalScore scores momentum and trend indicators.
func TechnicalScore(snap domain.MarketSnapshot, ind domain.TechnicalIndicators) float64 {
	score := Neutral

	switch {
	case ind.RSI < 30:
		score += 15 // oversold
	case ind.RSI > 70:
		score -= 15 // overbought
	case ind.RSI >= 40 && ind.RSI <= 60:
		score += 5
	}

	if ind.MACD > ind.MACDSignal && ind.MACDHistogram > 0 {
		score += 10
	} else if ind.MACD < ind.MACDSignal && ind.MACDHistogram < 0 {
		score -= 10
	}

	price := snap.Price
	if price > ind.SMA20 && ind.SMA20 > ind.SMA50 {
		score += 15
	} else if price < ind.SMA20 && ind.SMA20 < ind.SMA50 {
		score -= 15
	}

	if width := ind.BollingerUpper - ind.BollingerLower; width > 0 {
		pos := (price - ind.BollingerLower) / width
		if pos < 0.2 {
			score += 8
		} else if pos > 0.8 {
			score -= 8
		}
	}

	if snap.VolumeChange24h > 50 {
		score += 5
	} else if snap.VolumeChange24h < -30 {
		score -= 5
	}

	return clamp(score)
}

// FundamentalScore scores liquidity, volume, size and distribution.
func FundamentalScore(snap domain.MarketSnapshot) float64 {
	score := Neutral

	switch {
	case snap.Liquidity > 1_000_000:
		score += 15
	case snap.Liquidity > 500_000:
		score += 10
	case snap.Liquidity < 100_000:
		score -= 20
	}

	if snap.Volume24h > snap.Liquidity*0.5 {
		score += 10
	} else if snap.Volume24h < snap.Liquidity*0.1 {
		score -= 10
	}

	switch {
	case snap.MarketCap > 100_000_000:
		score += 8
	case snap.MarketCap > 10_000_000:
		score += 5
	case snap.MarketCap < 1_000_000:
		score -= 10
	}

	// An unquoted impact scores like a high one.
	switch {
	case !snap.HasPriceImpact || snap.PriceImpact10k > 5.0:
		score -= 15
	case snap.PriceImpact10k < 1.0:
		score += 10
	}

	switch {
	case snap.Holders > 10_000:
		score += 8
	case snap.Holders > 1_000:
		score += 5
	case snap.Holders < 100:
		score -= 10
	}

	return clamp(score)
}

// SentimentScore scores price momentum and order flow.
func SentimentScore(snap domain.MarketSnapshot) float64 {
	score := Neutral

	switch {
	case snap.PriceChange24h > 10:
		score += 15
	case snap.PriceChange24h > 5:
		score += 10
	case snap.PriceChange24h < -10:
		score -= 15
	case snap.PriceChange24h < -5:
		score -= 10
	}

	if snap.BuySellRatio > 1.5 {
		score += 10
	} else if snap.BuySellRatio < 0.7 {
		score -= 10
	}

	if snap.HasATH {
		if snap.ATHChange > -20 {
			score += 5
		} else if snap.ATHChange < -80 {
			score += 8
		}

		if snap.ATLChange > 500 {
			score += 10
		}
	}

	return clamp(score)
}

// Blend combines the three sub-scores into the overall confidence.
func Blend(technical, fundamental, sentiment float64) float64 {
	return technical*TechnicalWeight + fundamental*FundamentalWeight + sentiment*SentimentWeight
}

// DecideAction maps a blended confidence to an action. Both thresholds are inclusive.
func DecideAction(confidence float64) domain.Action {
	switch {
	case confidence >= BuyThreshold:
		return domain.ActionBuy
	case confidence <= SellThreshold:
		return domain.ActionSell
	default:
		return domain.ActionHold
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Neutral
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}
