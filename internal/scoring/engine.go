package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/idhash"
)

// ErrInvalidSnapshot is returned when a snapshot cannot be scored.
var ErrInvalidSnapshot = errors.New("invalid market snapshot")

// Engine produces trading signals from snapshots and indicators.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	limits domain.RiskLimits
	now    func() time.Time
}

// NewEngine creates a new Engine.
func NewEngine(limits domain.RiskLimits) *Engine {
	return &Engine{limits: limits, now: time.Now}
}

// WithClock sets a custom clock for deterministic signals.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Limits returns the risk limits used for sizing.
func (e *Engine) Limits() domain.RiskLimits {
	return e.limits
}

// Analyze scores one token and packages the result as a TradingSignal.
func (e *Engine) Analyze(token string, snap domain.MarketSnapshot, ind domain.TechnicalIndicators) (domain.TradingSignal, error) {
	if token == "" {
		return domain.TradingSignal{}, fmt.Errorf("%w: empty token", ErrInvalidSnapshot)
	}
	if !(snap.Price > 0) || math.IsInf(snap.Price, 0) {
		return domain.TradingSignal{}, fmt.Errorf("%w: price %v for %s", ErrInvalidSnapshot, snap.Price, token)
	}

	technical := TechnicalScore(snap, ind)
	fundamental := FundamentalScore(snap)
	sentiment := SentimentScore(snap)
	confidence := Blend(technical, fundamental, sentiment)
	action := DecideAction(confidence)

	tier := ClassifyRisk(snap, ind)
	size := PositionSize(confidence, tier, snap.Liquidity, e.limits.MaxPositionSize)
	target, stop := PriceTargets(snap.Price, action, ind, tier)

	createdAt := e.now().UTC()

	return domain.TradingSignal{
		ID:               idhash.ComputeSignalID(token, createdAt.UnixMilli()),
		TokenAddress:     token,
		Action:           action,
		Confidence:       confidence,
		RiskTier:         tier,
		EntryPrice:       snap.Price,
		TargetPrice:      target,
		StopLoss:         stop,
		PositionSize:     size,
		Reasoning:        Reasoning(action, technical, fundamental, sentiment, snap),
		TechnicalScore:   technical,
		FundamentalScore: fundamental,
		SentimentScore:   sentiment,
		CreatedAt:        createdAt,
	}, nil
}
