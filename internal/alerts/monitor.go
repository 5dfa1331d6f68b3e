// Package alerts raises risk alerts from portfolio and market state and keeps
// a bounded buffer of recent alerts.
package alerts

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/idhash"
	"solana-trading-assistant/internal/observability"
)

// Thresholds. Liquidity and price impact come from the risk limits; the
// defaults apply when a limit is unset.
const (
	MinPortfolioValue     = 100.0
	DefaultMinLiquidity   = 50_000.0
	DefaultMaxPriceImpact = 2.0
	MaxPriceChange24h     = 50.0
	DefaultBufferSize = 100
	DefaultCooldown   = 5 * time.Minute
)

// Options configures a Monitor.
type Options struct {
	Limits     domain.RiskLimits
	BufferSize int
	// Cooldown suppresses the same alert type for the same token. Negative disables it.
	Cooldown time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

type entry struct {
	seq   uint64
	alert domain.RiskAlert
}

// Monitor evaluates alert rules. It is safe for concurrent use.
type Monitor struct {
	mu         sync.RWMutex
	buf        []entry // oldest first
	size       int
	seq        uint64
	lastRaised map[string]time.Time

	limits   domain.RiskLimits
	cooldown time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(opts Options) *Monitor {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limits.MinLiquidity <= 0 {
		opts.Limits.MinLiquidity = DefaultMinLiquidity
	}
	if opts.Limits.MaxPriceImpact <= 0 {
		opts.Limits.MaxPriceImpact = DefaultMaxPriceImpact
	}
	return &Monitor{
		size:       opts.BufferSize,
		lastRaised: make(map[string]time.Time),
		limits:     opts.Limits,
		cooldown:   opts.Cooldown,
		log:        opts.Logger.With().Str("component", "alerts").Logger(),
		now:        opts.Now,
	}
}

// Input is the state one check runs against.
type Input struct {
	PortfolioValue float64
	Balance        float64
	DailyPnL       float64
	Snapshots      []domain.MarketSnapshot
}

// Check applies every rule and returns the alerts raised by this call.
func (m *Monitor) Check(in Input) []domain.RiskAlert {
	var raised []domain.RiskAlert
	add := func(a domain.RiskAlert) {
		if stored, ok := m.Raise(a); ok {
			raised = append(raised, stored)
		}
	}

	if in.PortfolioValue < MinPortfolioValue {
		add(domain.RiskAlert{
			Type:      domain.AlertPortfolioValue,
			Severity:  domain.SeverityHigh,
			Message:   fmt.Sprintf("Portfolio value $%.2f below minimum threshold", in.PortfolioValue),
			Value:     in.PortfolioValue,
			Threshold: MinPortfolioValue,
		})
	}

	if limit := in.Balance * m.limits.MaxDailyLoss; limit > 0 && in.DailyPnL < -limit {
		add(domain.RiskAlert{
			Type:      domain.AlertDailyLoss,
			Severity:  domain.SeverityCritical,
			Message:   fmt.Sprintf("Daily loss $%.2f exceeds limit $%.2f", -in.DailyPnL, limit),
			Value:     in.DailyPnL,
			Threshold: -limit,
		})
	}

	for _, snap := range in.Snapshots {
		if snap.Liquidity < m.limits.MinLiquidity {
			add(domain.RiskAlert{
				Type:         domain.AlertLiquidity,
				Severity:     domain.SeverityMedium,
				TokenAddress: snap.Address,
				Message:      fmt.Sprintf("Low liquidity $%.0f for token", snap.Liquidity),
				Value:        snap.Liquidity,
				Threshold:    m.limits.MinLiquidity,
			})
		}
		if snap.HasPriceImpact && snap.PriceImpact10k > m.limits.MaxPriceImpact {
			add(domain.RiskAlert{
				Type:         domain.AlertPriceImpact,
				Severity:     domain.SeverityMedium,
				TokenAddress: snap.Address,
				Message:      fmt.Sprintf("Price impact %.2f%% for a $10k trade", snap.PriceImpact10k),
				Value:        snap.PriceImpact10k,
				Threshold:    m.limits.MaxPriceImpact,
			})
		}
		if change := math.Abs(snap.PriceChange24h); change > MaxPriceChange24h {
			add(domain.RiskAlert{
				Type:         domain.AlertVolatility,
				Severity:     domain.SeverityHigh,
				TokenAddress: snap.Address,
				Message:      fmt.Sprintf("High volatility %.1f%% in 24h", change),
				Value:        change,
				Threshold:    MaxPriceChange24h,
			})
		}
	}

	return raised
}

// Raise records an alert unless the same type for the same token was raised
// within the cooldown. It returns the stored alert with ID and CreatedAt filled in.
func (m *Monitor) Raise(a domain.RiskAlert) (domain.RiskAlert, bool) {
	now := m.now().UTC()
	key := string(a.Type) + "|" + a.TokenAddress

	m.mu.Lock()
	if last, ok := m.lastRaised[key]; ok && now.Sub(last) < m.cooldown {
		m.mu.Unlock()
		return domain.RiskAlert{}, false
	}
	m.lastRaised[key] = now

	a.CreatedAt = now
	a.ID = idhash.ComputeAlertID(string(a.Type), a.TokenAddress, now.UnixMilli())
	m.seq++
	m.buf = append(m.buf, entry{seq: m.seq, alert: a})
	if len(m.buf) > m.size {
		m.buf = append(m.buf[:0:0], m.buf[len(m.buf)-m.size:]...)
	}
	m.mu.Unlock()

	observability.RecordRiskAlert(string(a.Type), string(a.Severity))
	m.event(a).
		Str("type", string(a.Type)).
		Str("token", a.TokenAddress).
		Float64("value", a.Value).
		Float64("threshold", a.Threshold).
		Msg(a.Message)
	return a, true
}

func (m *Monitor) event(a domain.RiskAlert) *zerolog.Event {
	switch a.Severity {
	case domain.SeverityCritical:
		return m.log.Error()
	case domain.SeverityHigh, domain.SeverityMedium:
		return m.log.Warn()
	default:
		return m.log.Info()
	}
}

// Recent returns up to limit alerts, newest first. A non-positive limit returns all.
func (m *Monitor) Recent(limit int) []domain.RiskAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.buf)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.RiskAlert, 0, n)
	for i := len(m.buf) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.buf[i].alert)
	}
	return out
}

// Since returns alerts raised after cursor, oldest first, and the new cursor.
func (m *Monitor) Since(cursor uint64) ([]domain.RiskAlert, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.RiskAlert
	for _, e := range m.buf {
		if e.seq > cursor {
			out = append(out, e.alert)
		}
	}
	return out, m.seq
}

// Count returns the number of buffered alerts.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buf)
}
