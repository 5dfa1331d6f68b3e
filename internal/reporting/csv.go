package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"solana-trading-assistant/internal/domain"
)

var csvHeader = []string{
	"trade_id", "created_at", "token_address", "action", "status",
	"amount_usd", "amount_base_units", "price", "confidence", "risk_level",
	"position_size", "realized_pnl", "tx_id", "paper", "signal_id", "reason",
}

// RenderCSV renders journal records as a CSV string.
func RenderCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write(csvHeader)
	for _, t := range trades {
		_ = w.Write([]string{
			t.TradeID,
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.TokenAddress,
			string(t.Action),
			string(t.Status),
			strconv.FormatFloat(t.AmountUSD, 'f', 2, 64),
			t.AmountBaseUnits,
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Confidence, 'f', 2, 64),
			string(t.RiskTier),
			strconv.FormatFloat(t.PositionSize, 'f', 6, 64),
			strconv.FormatFloat(t.RealizedPnL, 'f', 6, 64),
			t.TxID,
			strconv.FormatBool(t.Paper),
			t.SignalID,
			t.Reason,
		})
	}
	w.Flush()

	return sb.String()
}
