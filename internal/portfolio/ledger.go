// Package portfolio tracks open positions and P&L for executed trades.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"solana-trading-assistant/internal/domain"
)

// Ledger errors.
var (
	// ErrInvalidTrade is returned when a trade would break a position invariant.
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrPositionNotFound is returned when selling a token with no open position.
	ErrPositionNotFound = errors.New("position not found")
)

// SellResult describes the effect of a sell on the ledger.
type SellResult struct {
	SoldAmount  float64
	Remaining   float64
	RealizedPnL float64
	Closed      bool
}

// Ledger owns open positions and cumulative P&L.
// All methods are safe for concurrent use; readers never observe a half-applied trade.
type Ledger struct {
	mu          sync.RWMutex
	positions   map[string]*domain.Position
	dailyPnL    float64
	totalPnL    float64
	peakValue   float64
	maxDrawdown float64
	now         func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[string]*domain.Position),
		now:       time.Now,
	}
}

// WithClock sets a custom clock for position timestamps.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// ApplyBuy adds tradeAmountUSD worth of the signal's token at the signal entry price.
// An existing position gets a weighted-average entry price.
func (l *Ledger) ApplyBuy(sig domain.TradingSignal, tradeAmountUSD float64) (domain.Position, error) {
	if sig.TokenAddress == "" {
		return domain.Position{}, fmt.Errorf("%w: empty token", ErrInvalidTrade)
	}
	if !(sig.EntryPrice > 0) || math.IsInf(sig.EntryPrice, 0) {
		return domain.Position{}, fmt.Errorf("%w: entry price %v", ErrInvalidTrade, sig.EntryPrice)
	}
	if !(tradeAmountUSD > 0) || math.IsInf(tradeAmountUSD, 0) {
		return domain.Position{}, fmt.Errorf("%w: amount %v", ErrInvalidTrade, tradeAmountUSD)
	}

	units := tradeAmountUSD / sig.EntryPrice
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[sig.TokenAddress]
	if ok {
		totalValue := pos.Amount*pos.EntryPrice + tradeAmountUSD
		totalAmount := pos.Amount + units
		pos.EntryPrice = totalValue / totalAmount
		pos.Amount = totalAmount
	} else {
		pos = &domain.Position{
			TokenAddress: sig.TokenAddress,
			Symbol:       shortSymbol(sig.TokenAddress),
			Amount:       units,
			EntryPrice:   sig.EntryPrice,
			StopLoss:     sig.StopLoss,
			TakeProfit:   sig.TargetPrice,
			EntryTime:    now,
		}
		l.positions[sig.TokenAddress] = pos
	}

	pos.CurrentPrice = sig.EntryPrice
	pos.LastUpdated = now
	revalue(pos)
	l.peakValue += tradeAmountUSD
	l.trackDrawdownLocked()

	return *pos, nil
}

// ApplySell reduces the position by the signal's position size fraction.
// The remaining amount is amount × (1 − position_size); below the dust threshold
// the position is removed. Realized P&L on the sold part is added to daily and total P&L.
func (l *Ledger) ApplySell(sig domain.TradingSignal) (SellResult, error) {
	fraction := math.Max(0, math.Min(1, sig.PositionSize))
	if math.IsNaN(sig.PositionSize) {
		return SellResult{}, fmt.Errorf("%w: position size NaN", ErrInvalidTrade)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[sig.TokenAddress]
	if !ok {
		return SellResult{}, fmt.Errorf("%w: %s", ErrPositionNotFound, sig.TokenAddress)
	}

	remaining := pos.Amount * (1 - fraction)
	sold := pos.Amount - remaining

	if before := l.valueLocked(); before > 0 {
		l.peakValue *= 1 - sold*pos.CurrentPrice/before
	}

	exitPrice := sig.EntryPrice
	if !(exitPrice > 0) {
		exitPrice = pos.CurrentPrice
	}
	realized := sold * (exitPrice - pos.EntryPrice)
	l.dailyPnL += realized
	l.totalPnL += realized

	res := SellResult{SoldAmount: sold, Remaining: remaining, RealizedPnL: realized}

	if remaining < domain.DustThreshold {
		delete(l.positions, sig.TokenAddress)
		res.Remaining = 0
		res.Closed = true
	} else {
		pos.Amount = remaining
		pos.CurrentPrice = exitPrice
		pos.LastUpdated = l.now().UTC()
		revalue(pos)
	}
	l.trackDrawdownLocked()

	return res, nil
}

// MarkToMarket applies current prices and returns the number of positions updated.
// Unknown tokens and non-positive prices are ignored.
func (l *Ledger) MarkToMarket(prices map[string]float64) int {
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for token, price := range prices {
		pos, ok := l.positions[token]
		if !ok || !(price > 0) || math.IsInf(price, 0) {
			continue
		}
		pos.CurrentPrice = price
		pos.LastUpdated = now
		revalue(pos)
		updated++
	}
	if updated > 0 {
		l.trackDrawdownLocked()
	}
	return updated
}

// ResetDaily zeroes daily P&L. Total P&L is kept.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	l.dailyPnL = 0
	l.mu.Unlock()
}

// DailyPnL returns cumulative P&L since the last daily reset.
func (l *Ledger) DailyPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dailyPnL
}

// Exposure returns Σ amount × current price over open positions.
func (l *Ledger) Exposure() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.valueLocked()
}

// Position returns a copy of the position for token.
func (l *Ledger) Position(token string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[token]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Tokens returns the addresses of all open positions, sorted.
func (l *Ledger) Tokens() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tokens := make([]string, 0, len(l.positions))
	for token := range l.positions {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Summary returns a point-in-time copy of the ledger. It has no side effects.
func (l *Ledger) Summary() domain.LedgerSummary {
	now := l.now().UTC()

	l.mu.RLock()
	defer l.mu.RUnlock()

	s := domain.LedgerSummary{
		TotalPositions: len(l.positions),
		DailyPnL:       l.dailyPnL,
		TotalPnL:       l.totalPnL,
		PeakValue:      l.peakValue,
		MaxDrawdown:    l.maxDrawdown,
		Positions:      make([]domain.Position, 0, len(l.positions)),
		Timestamp:      now,
	}
	for _, pos := range l.positions {
		s.TotalValueUSD += pos.Amount * pos.CurrentPrice
		s.TotalUnrealizedPnL += (pos.CurrentPrice - pos.EntryPrice) * pos.Amount
		s.Positions = append(s.Positions, *pos)
	}
	sort.Slice(s.Positions, func(i, j int) bool {
		return s.Positions[i].TokenAddress < s.Positions[j].TokenAddress
	})
	return s
}

func (l *Ledger) valueLocked() float64 {
	var total float64
	for _, pos := range l.positions {
		total += pos.Amount * pos.CurrentPrice
	}
	return total
}

// trackDrawdownLocked updates peak value and max drawdown (as a fraction of peak).
// The peak follows capital flows: buys add their notional, sells scale it down.
func (l *Ledger) trackDrawdownLocked() {
	value := l.valueLocked()
	if value > l.peakValue {
		l.peakValue = value
	}
	if l.peakValue > 0 {
		if dd := (l.peakValue - value) / l.peakValue; dd > l.maxDrawdown {
			l.maxDrawdown = dd
		}
	}
}

func revalue(pos *domain.Position) {
	pos.UnrealizedPnL = (pos.CurrentPrice - pos.EntryPrice) * pos.Amount
	if pos.EntryPrice > 0 {
		pos.UnrealizedPnLPercent = (pos.CurrentPrice - pos.EntryPrice) / pos.EntryPrice * 100
	}
}

func shortSymbol(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
