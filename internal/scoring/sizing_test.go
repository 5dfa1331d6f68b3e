package scoring

import (
	"math"
	"testing"

	"solana-trading-assistant/internal/domain"
)

var allTiers = []domain.RiskTier{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskExtreme}

func TestPositionSize(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		tier       domain.RiskTier
		liquidity  float64
		want       float64
	}{
		{"full confidence low risk", 100, domain.RiskLow, 1_000_000, 0.15},
		{"medium tier", 80, domain.RiskMedium, 1_000_000, 0.8 * 0.15 * 0.7},
		{"high tier", 80, domain.RiskHigh, 1_000_000, 0.8 * 0.15 * 0.4},
		{"extreme tier", 80, domain.RiskExtreme, 1_000_000, 0.8 * 0.15 * 0.2},
		{"thin liquidity halves", 80, domain.RiskLow, 499_999, 0.8 * 0.15 / 2},
		{"liquidity boundary not halved", 80, domain.RiskLow, 500_000, 0.8 * 0.15},
		{"zero confidence", 0, domain.RiskLow, 1_000_000, 0},
		{"negative confidence floors at zero", -10, domain.RiskLow, 1_000_000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PositionSize(tt.confidence, tt.tier, tt.liquidity, 0.15)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("PositionSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPositionSize_NeverExceedsLimit(t *testing.T) {
	limits := []float64{0, 0.05, 0.15, 0.5, 1}
	liquidity := []float64{0, 100_000, 499_999, 500_000, 1e9}

	for _, limit := range limits {
		for c := -50.0; c <= 250; c += 2.5 {
			for _, tier := range append(allTiers, domain.RiskTier("UNKNOWN")) {
				for _, liq := range liquidity {
					got := PositionSize(c, tier, liq, limit)
					if got > limit || got < 0 {
						t.Fatalf("PositionSize(%v, %s, %v, %v) = %v, outside [0, %v]", c, tier, liq, limit, got, limit)
					}
				}
			}
		}
	}
}

func TestPriceTargets_Buy(t *testing.T) {
	ind := domain.TechnicalIndicators{Support: 0.5, Resistance: 1.01}
	wantStop := map[domain.RiskTier]float64{
		domain.RiskLow: 0.5, domain.RiskMedium: 0.5, domain.RiskHigh: 0.5, domain.RiskExtreme: 0.5,
	}
	for _, tier := range allTiers {
		target, stop := PriceTargets(1.0, domain.ActionBuy, ind, tier)
		if target != 1.05 {
			t.Errorf("%s: target = %v, want 1.05", tier, target)
		}
		if stop != wantStop[tier] {
			t.Errorf("%s: stop = %v, want %v", tier, stop, wantStop[tier])
		}
	}

	// Support above the tier stop: stop falls back to the tier factor.
	high := domain.TechnicalIndicators{Support: 20, Resistance: 5}
	factors := map[domain.RiskTier]float64{
		domain.RiskLow: 0.95, domain.RiskMedium: 0.97, domain.RiskHigh: 0.98, domain.RiskExtreme: 0.99,
	}
	for tier, factor := range factors {
		target, stop := PriceTargets(10, domain.ActionBuy, high, tier)
		if target != 10.5 {
			t.Errorf("%s: target = %v, want 10.5", tier, target)
		}
		if stop != 10*factor {
			t.Errorf("%s: stop = %v, want %v", tier, stop, 10*factor)
		}
	}
}

func TestPriceTargets_Sell(t *testing.T) {
	factors := map[domain.RiskTier]float64{
		domain.RiskLow: 1.05, domain.RiskMedium: 1.03, domain.RiskHigh: 1.02, domain.RiskExtreme: 1.01,
	}
	// Resistance below entry, so the stop is driven by the tier factor.
	ind := domain.TechnicalIndicators{Support: 0.5, Resistance: 0.8}
	for tier, factor := range factors {
		target, stop := PriceTargets(1.0, domain.ActionSell, ind, tier)
		if target != 0.5 {
			t.Errorf("%s: target = %v, want 0.5", tier, target)
		}
		if stop != 1.0*factor {
			t.Errorf("%s: stop = %v, want %v", tier, stop, factor)
		}
	}

	// Resistance above entry dominates the stop.
	target, stop := PriceTargets(1.0, domain.ActionSell, domain.TechnicalIndicators{Support: 0.99, Resistance: 1.5}, domain.RiskLow)
	if target != 0.95 || stop != 1.5 {
		t.Errorf("PriceTargets() = (%v, %v), want (0.95, 1.5)", target, stop)
	}
}

func TestPriceTargets_Hold(t *testing.T) {
	ind := domain.TechnicalIndicators{Support: 0.5, Resistance: 2}
	for _, tier := range allTiers {
		target, stop := PriceTargets(1.23, domain.ActionHold, ind, tier)
		if target != 1.23 || stop != 1.23 {
			t.Errorf("%s: PriceTargets(HOLD) = (%v, %v), want entry", tier, target, stop)
		}
	}
}
