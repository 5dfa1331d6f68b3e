// Package indicators computes technical indicators from OHLCV candles.
package indicators

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"

	"solana-trading-assistant/internal/domain"
)

// ErrInsufficientData is returned when there are too few candles.
var ErrInsufficientData = errors.New("insufficient candle data")

// Indicator parameters.
const (
	MinCandles      = 50
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	RangeLookback   = 20
)

// Compute derives TechnicalIndicators from candles. Candles may be unordered;
// they are sorted by time on a copy.
func Compute(candles []domain.Candle) (domain.TechnicalIndicators, error) {
	if len(candles) < MinCandles {
		return domain.TechnicalIndicators{}, fmt.Errorf("%w: %d candles, need %d", ErrInsufficientData, len(candles), MinCandles)
	}

	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	closes := make([]float64, len(sorted))
	for i, c := range sorted {
		closes[i] = c.Close
	}

	macd, signal, hist := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	upper, _, lower := Bollinger(closes, BollingerPeriod)
	support, resistance := SupportResistance(sorted, RangeLookback)

	return domain.TechnicalIndicators{
		RSI:            RSI(closes, RSIPeriod),
		MACD:           macd,
		MACDSignal:     signal,
		MACDHistogram:  hist,
		SMA20:          SMA(closes, 20),
		SMA50:          SMA(closes, 50),
		BollingerUpper: upper,
		BollingerLower: lower,
		Support:        support,
		Resistance:     resistance,
		Volatility:     Volatility(closes, RangeLookback),
	}, nil
}

// SMA returns the mean of the last period values, or of all values if fewer.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return last(helper.ChanToSlice(sma.Compute(helper.SliceToChan(values))), 0)
}

// RSI returns the relative strength index with Wilder smoothing.
// Returns 50 when there is no movement or too little data.
func RSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	v := last(helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes))), 50)
	if math.IsNaN(v) {
		// No gains and no losses.
		return 50
	}
	return math.Max(0, math.Min(100, v))
}

// MACD returns the latest MACD line, signal line and histogram. All three are
// zero when there are too few closes for the slow average.
func MACD(closes []float64, fast, slow, signal int) (float64, float64, float64) {
	if len(closes) < slow {
		return 0, 0, 0
	}
	m := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	lines, signals := m.Compute(helper.SliceToChan(closes))
	out := collect(lines, signals)

	if len(out[0]) == 0 {
		return 0, 0, 0
	}
	macd := last(out[0], 0)
	sig := last(out[1], macd)
	return macd, sig, macd - sig
}

// Bollinger returns the upper band, middle band and lower band at two standard
// deviations over the last period closes.
func Bollinger(closes []float64, period int) (float64, float64, float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	if period > len(closes) {
		period = len(closes)
	}
	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	upper, middle, lower := bb.Compute(helper.SliceToChan(closes))
	out := collect(upper, middle, lower)

	mid := last(out[1], SMA(closes, period))
	return finite(last(out[0], mid), mid), mid, finite(last(out[2], mid), mid)
}

// SupportResistance returns the lowest low and highest high of the last lookback candles.
func SupportResistance(candles []domain.Candle, lookback int) (float64, float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if lookback > len(candles) {
		lookback = len(candles)
	}
	window := candles[len(candles)-lookback:]
	support, resistance := window[0].Low, window[0].High
	for _, c := range window[1:] {
		support = math.Min(support, c.Low)
		resistance = math.Max(resistance, c.High)
	}
	return support, resistance
}

// Volatility returns the standard deviation, in percent, of the last lookback
// close-to-close returns.
func Volatility(closes []float64, lookback int) float64 {
	if len(closes) < 2 {
		return 0
	}
	start := len(closes) - lookback - 1
	if start < 0 {
		start = 0
	}

	returns := make([]float64, 0, lookback)
	for i := start + 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(returns) < 2 {
		return 0
	}

	std := volatility.NewMovingStdWithPeriod[float64](len(returns))
	return finite(last(helper.ChanToSlice(std.Compute(helper.SliceToChan(returns))), 0), 0)
}

// collect drains every channel concurrently. The outputs of one indicator
// share an upstream, so reading them one after another would block.
func collect(chans ...<-chan float64) [][]float64 {
	out := make([][]float64, len(chans))
	var wg sync.WaitGroup
	for i, c := range chans {
		wg.Add(1)
		go func(i int, c <-chan float64) {
			defer wg.Done()
			out[i] = helper.ChanToSlice(c)
		}(i, c)
	}
	wg.Wait()
	return out
}

func last(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}

// finite replaces NaN, e.g. the square root of a rounding-negative variance.
func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
