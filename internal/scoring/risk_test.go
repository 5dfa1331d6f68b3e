package scoring

import (
	"testing"

	"solana-trading-assistant/internal/domain"
)

func TestClassifyRisk_Tiers(t *testing.T) {
	tests := []struct {
		name string
		snap domain.MarketSnapshot
		ind  domain.TechnicalIndicators
		want domain.RiskTier
	}{
		{
			name: "deep liquid large cap",
			snap: domain.MarketSnapshot{Liquidity: 2_000_000, PriceImpact10k: 0.5, HasPriceImpact: true, MarketCap: 150_000_000},
			ind:  domain.TechnicalIndicators{Volatility: 5},
			want: domain.RiskLow,
		},
		{
			name: "one point each from two inputs",
			snap: domain.MarketSnapshot{Liquidity: 400_000, PriceImpact10k: 0.5, HasPriceImpact: true, MarketCap: 5_000_000},
			ind:  domain.TechnicalIndicators{Volatility: 5},
			want: domain.RiskMedium,
		},
		{
			name: "thin and volatile",
			snap: domain.MarketSnapshot{Liquidity: 50_000, PriceImpact10k: 0.5, HasPriceImpact: true, MarketCap: 50_000_000},
			ind:  domain.TechnicalIndicators{Volatility: 25},
			want: domain.RiskHigh,
		},
		{
			name: "everything bad",
			snap: domain.MarketSnapshot{Liquidity: 10_000, PriceImpact10k: 9, HasPriceImpact: true, MarketCap: 100_000},
			ind:  domain.TechnicalIndicators{Volatility: 40},
			want: domain.RiskExtreme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRisk(tt.snap, tt.ind); got != tt.want {
				t.Errorf("ClassifyRisk() = %s, want %s (factors=%d)", got, tt.want, RiskFactors(tt.snap, tt.ind))
			}
		})
	}
}

func TestTierForFactors(t *testing.T) {
	want := []domain.RiskTier{
		domain.RiskLow, domain.RiskLow,
		domain.RiskMedium, domain.RiskMedium,
		domain.RiskHigh, domain.RiskHigh,
		domain.RiskExtreme, domain.RiskExtreme, domain.RiskExtreme,
	}
	for factors, tier := range want {
		if got := TierForFactors(factors); got != tier {
			t.Errorf("TierForFactors(%d) = %s, want %s", factors, got, tier)
		}
	}
}

// Each risk input is varied alone in its worsening direction; the tier rank must never drop.
func TestClassifyRisk_Monotonic(t *testing.T) {
	baselines := []struct {
		snap domain.MarketSnapshot
		ind  domain.TechnicalIndicators
	}{
		{domain.MarketSnapshot{Liquidity: 5_000_000, PriceImpact10k: 0.1, HasPriceImpact: true, MarketCap: 1e9}, domain.TechnicalIndicators{Volatility: 1}},
		{domain.MarketSnapshot{Liquidity: 300_000, PriceImpact10k: 3, HasPriceImpact: true, MarketCap: 5_000_000}, domain.TechnicalIndicators{Volatility: 15}},
		{domain.MarketSnapshot{Liquidity: 50_000, PriceImpact10k: 8, HasPriceImpact: true, MarketCap: 500_000}, domain.TechnicalIndicators{Volatility: 30}},
	}

	liquidity := []float64{1e8, 1_000_000, 500_000, 499_999, 200_000, 100_000, 99_999, 1_000, 0}
	volatility := []float64{0, 5, 10, 10.01, 15, 20, 20.01, 50, 500}
	impact := []float64{0, 1, 2, 2.01, 4, 5, 5.01, 20, 100}
	marketCap := []float64{1e10, 1e8, 10_000_000, 9_999_999, 5_000_000, 1_000_000, 999_999, 1_000, 0}

	for bi, b := range baselines {
		check := func(input string, tiers []domain.RiskTier) {
			for i := 1; i < len(tiers); i++ {
				if tiers[i].Rank() < tiers[i-1].Rank() {
					t.Errorf("baseline %d: tier decreased while worsening %s at step %d: %s -> %s",
						bi, input, i, tiers[i-1], tiers[i])
				}
			}
		}

		var tiers []domain.RiskTier
		for _, v := range liquidity {
			s := b.snap
			s.Liquidity = v
			tiers = append(tiers, ClassifyRisk(s, b.ind))
		}
		check("liquidity", tiers)

		tiers = nil
		for _, v := range volatility {
			i := b.ind
			i.Volatility = v
			tiers = append(tiers, ClassifyRisk(b.snap, i))
		}
		check("volatility", tiers)

		tiers = nil
		for _, v := range impact {
			s := b.snap
			s.PriceImpact10k = v
			tiers = append(tiers, ClassifyRisk(s, b.ind))
		}
		check("price impact", tiers)

		tiers = nil
		for _, v := range marketCap {
			s := b.snap
			s.MarketCap = v
			tiers = append(tiers, ClassifyRisk(s, b.ind))
		}
		check("market cap", tiers)
	}
}

func TestRiskFactors_UnknownImpactIsWorstCase(t *testing.T) {
	ind := domain.TechnicalIndicators{Volatility: 1}
	known := domain.MarketSnapshot{Liquidity: 5_000_000, MarketCap: 1e9, PriceImpact10k: 9, HasPriceImpact: true}
	unknown := domain.MarketSnapshot{Liquidity: 5_000_000, MarketCap: 1e9}

	if got, want := RiskFactors(unknown, ind), RiskFactors(known, ind); got != want {
		t.Errorf("RiskFactors(unknown impact) = %d, want %d", got, want)
	}
	if got := RiskFactors(unknown, ind); got != 2 {
		t.Errorf("RiskFactors(unknown impact) = %d, want 2", got)
	}
}
