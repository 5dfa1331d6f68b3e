package scoring

import (
	"fmt"
	"math"
	"strings"

	"solana-trading-assistant/internal/domain"
)

// Reasoning builds the human-readable explanation attached to a signal.
func Reasoning(action domain.Action, technical, fundamental, sentiment float64, snap domain.MarketSnapshot) string {
	parts := []string{
		fmt.Sprintf("Recommended action: %s", action),
		fmt.Sprintf("Technical score: %.1f/100", technical),
		fmt.Sprintf("Fundamental score: %.1f/100", fundamental),
		fmt.Sprintf("Sentiment score: %.1f/100", sentiment),
	}

	if snap.Liquidity > 1_000_000 {
		parts = append(parts, "High liquidity provides good execution")
	} else if snap.Liquidity < 100_000 {
		parts = append(parts, "Low liquidity increases execution risk")
	}

	if math.Abs(snap.PriceChange24h) > 10 {
		parts = append(parts, fmt.Sprintf("Strong price momentum: %.1f%%", snap.PriceChange24h))
	}

	if snap.Volume24h > snap.Liquidity {
		parts = append(parts, "High trading volume indicates strong interest")
	}

	return strings.Join(parts, " | ")
}
