package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trading Journal Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if !r.Since.IsZero() {
		sb.WriteString(fmt.Sprintf("Covering records since %s\n\n", r.Since.Format(time.RFC3339)))
	}

	// Journal Summary
	s := r.Summary
	sb.WriteString("## Journal Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Records | %d |\n", s.TotalRecords))
	sb.WriteString(fmt.Sprintf("| Executed | %d |\n", s.Executed))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", s.Failed))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", s.Rejected))
	sb.WriteString(fmt.Sprintf("| Dry Runs | %d |\n", s.DryRuns))
	sb.WriteString(fmt.Sprintf("| Paper Records | %d |\n", s.PaperRecords))
	if s.TotalRecords > 0 {
		sb.WriteString(fmt.Sprintf("| First Record | %s |\n", s.DateRangeStart.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Record | %s |\n", s.DateRangeEnd.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	if p := r.Performance; p != nil && p.TotalTrades > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Trades | %d |\n", p.TotalTrades))
		sb.WriteString(fmt.Sprintf("| Successful | %d |\n", p.SuccessfulTrades))
		sb.WriteString(fmt.Sprintf("| Closed | %d |\n", p.ClosedTrades))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", p.WinRate))
		sb.WriteString(fmt.Sprintf("| Token Win Rate | %.2f%% |\n", p.TokenWinRate))
		sb.WriteString(fmt.Sprintf("| Total P&L | $%.2f |\n", p.TotalPnL))
		sb.WriteString(fmt.Sprintf("| Avg Trade Size | $%.2f |\n", p.AvgTradeSize))
		sb.WriteString(fmt.Sprintf("| Avg Confidence | %.1f |\n", p.AvgConfidence))
		sb.WriteString(fmt.Sprintf("| Median P&L | $%.2f |\n", p.PnLMedian))
		sb.WriteString(fmt.Sprintf("| Best / Worst | $%.2f / $%.2f |\n", p.BestTrade, p.WorstTrade))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | $%.2f |\n", p.MaxDrawdown))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", p.MaxConsecutiveLosses))
	} else {
		sb.WriteString("No trades executed.\n")
	}
	sb.WriteString("\n")

	// Portfolio
	if pf := r.Portfolio; pf != nil {
		sb.WriteString("## Portfolio\n\n")
		sb.WriteString(fmt.Sprintf("Positions: %d | Value: $%.2f | Unrealized: $%.2f | Daily P&L: $%.2f\n\n",
			pf.TotalPositions, pf.TotalValueUSD, pf.TotalUnrealizedPnL, pf.DailyPnL))
		if len(pf.Positions) > 0 {
			sb.WriteString("| Token | Amount | Entry | Current | Unrealized % |\n")
			sb.WriteString("|-------|--------|-------|---------|--------------|\n")
			for _, p := range pf.Positions {
				sb.WriteString(fmt.Sprintf("| %s | %.6f | %.8f | %.8f | %.2f |\n",
					p.Symbol, p.Amount, p.EntryPrice, p.CurrentPrice, p.UnrealizedPnLPercent))
			}
			sb.WriteString("\n")
		}
	}

	// Tokens
	sb.WriteString("## Tokens\n\n")
	if len(r.Tokens) > 0 {
		sb.WriteString("| Token | Buys | Sells | Volume | Realized P&L |\n")
		sb.WriteString("|-------|------|-------|--------|--------------|\n")
		for _, t := range r.Tokens {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | $%.2f | $%.2f |\n",
				t.TokenAddress, t.Buys, t.Sells, t.VolumeUSD, t.RealizedPnL))
		}
	} else {
		sb.WriteString("No executed trades.\n")
	}
	sb.WriteString("\n")

	// Rejections
	if len(r.Rejections) > 0 {
		sb.WriteString("## Rejections\n\n")
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, rr := range r.Rejections {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", rr.Reason, rr.Count))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
