package metrics

import (
	"math"
	"sort"

	"solana-trading-assistant/internal/domain"
)

// Performance summarizes the execution journal.
// Percentages are expressed in percent units.
type Performance struct {
	// Counts
	TotalTrades      int `json:"total_trades"`      // swap attempts: executed + failed
	SuccessfulTrades int `json:"successful_trades"` // executed
	FailedTrades     int `json:"failed_trades"`
	RejectedTrades   int `json:"rejected_trades"`
	DryRuns          int `json:"dry_runs"`
	ClosedTrades     int `json:"closed_trades"` // executed sells
	Wins             int `json:"wins"`
	Losses           int `json:"losses"`
	TotalTokens      int `json:"total_tokens"`

	WinRate      float64 `json:"win_rate"`
	TokenWinRate float64 `json:"token_win_rate"`

	// Sizes
	TotalPnL      float64 `json:"total_pnl"`
	AvgTradeSize  float64 `json:"avg_trade_size"`
	AvgConfidence float64 `json:"avg_confidence"`

	// Realized P&L distribution over closed trades
	PnLMean    float64 `json:"pnl_mean"`
	PnLMedian  float64 `json:"pnl_median"`
	PnLStddev  float64 `json:"pnl_stddev"`
	BestTrade  float64 `json:"best_trade"`
	WorstTrade float64 `json:"worst_trade"`

	// Drawdown (order-dependent)
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// computeFromTrades calculates performance from journal records.
// Records are sorted by CreatedAt ASC, TradeID ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
func computeFromTrades(trades []*domain.TradeRecord) *Performance {
	perf := &Performance{}
	if len(trades) == 0 {
		return perf
	}

	sorted := make([]*domain.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	var (
		volume, confidence float64
		closed             []*domain.TradeRecord
	)
	for _, t := range sorted {
		switch t.Status {
		case domain.TradeStatusExecuted:
			perf.SuccessfulTrades++
			volume += t.AmountUSD
			if t.Action == domain.ActionSell {
				closed = append(closed, t)
			}
		case domain.TradeStatusFailed:
			perf.FailedTrades++
		case domain.TradeStatusRejected:
			perf.RejectedTrades++
			continue
		case domain.TradeStatusValidated:
			perf.DryRuns++
			continue
		}
		confidence += t.Confidence
	}
	perf.TotalTrades = perf.SuccessfulTrades + perf.FailedTrades
	if perf.TotalTrades > 0 {
		perf.AvgConfidence = confidence / float64(perf.TotalTrades)
	}
	if perf.SuccessfulTrades > 0 {
		perf.AvgTradeSize = volume / float64(perf.SuccessfulTrades)
	}

	perf.ClosedTrades = len(closed)
	if len(closed) == 0 {
		return perf
	}

	outcomes := make([]float64, len(closed))
	for i, t := range closed {
		outcomes[i] = t.RealizedPnL
		perf.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			perf.Wins++
		} else {
			perf.Losses++
		}
	}

	sortedOutcomes := make([]float64, len(outcomes))
	copy(sortedOutcomes, outcomes)
	sort.Float64s(sortedOutcomes)

	perf.WinRate = computeWinRate(perf.Wins, len(closed))
	perf.TotalTokens, perf.TokenWinRate = computeTokenWinRate(closed)
	perf.PnLMean = computeMean(outcomes)
	perf.PnLMedian = computePercentile(sortedOutcomes, 0.50)
	perf.PnLStddev = computeStddev(outcomes, perf.PnLMean)
	perf.WorstTrade = sortedOutcomes[0]
	perf.BestTrade = sortedOutcomes[len(sortedOutcomes)-1]
	perf.MaxDrawdown = computeMaxDrawdown(outcomes)
	perf.MaxConsecutiveLosses = computeMaxConsecutiveLosses(outcomes)

	return perf
}

// computeTokenWinRate groups closed trades by token and returns
// (totalTokens, percent of tokens with at least one profitable close).
func computeTokenWinRate(closed []*domain.TradeRecord) (int, float64) {
	if len(closed) == 0 {
		return 0, 0
	}

	won := make(map[string]bool)
	for _, t := range closed {
		won[t.TokenAddress] = won[t.TokenAddress] || t.RealizedPnL > 0
	}

	winning := 0
	for _, w := range won {
		if w {
			winning++
		}
	}
	return len(won), float64(winning) / float64(len(won)) * 100
}

// computeWinRate returns wins / total in percent.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// computeMean calculates arithmetic mean of outcomes.
func computeMean(outcomes []float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range outcomes {
		sum += o
	}
	return sum / float64(len(outcomes))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(outcomes []float64, mean float64) float64 {
	n := len(outcomes)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, o := range outcomes {
		diff := o - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative P&L.
// Outcomes must be in chronological order.
func computeMaxDrawdown(outcomes []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, o := range outcomes {
		cumulative += o
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of outcome <= 0.
// Outcomes must be in chronological order.
func computeMaxConsecutiveLosses(outcomes []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, o := range outcomes {
		if o <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
