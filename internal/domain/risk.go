package domain

// RiskLimits is the process-wide risk configuration.
// Fractions are of portfolio balance; MaxPriceImpact is in percent.
type RiskLimits struct {
	MaxPositionSize  float64 `yaml:"max_position_size" json:"max_position_size"`
	MaxTotalExposure float64 `yaml:"max_total_exposure" json:"max_total_exposure"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MinLiquidity     float64 `yaml:"min_liquidity" json:"min_liquidity"`
	MaxPriceImpact   float64 `yaml:"max_price_impact" json:"max_price_impact"`
	MinConfidence    float64 `yaml:"min_confidence" json:"min_confidence"`
}

// DefaultRiskLimits returns the default risk configuration.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:  0.15,
		MaxTotalExposure: 0.8,
		MaxDailyLoss:     0.05,
		MinLiquidity:     50000,
		MaxPriceImpact:   2.0,
		MinConfidence:    70,
	}
}
