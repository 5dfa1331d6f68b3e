// Package reporting renders the execution journal as Markdown and CSV.
package reporting

import (
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/metrics"
)

// Report is the journal report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Since       time.Time // zero when the whole journal is covered

	// Journal Summary
	Summary JournalSummary

	// Performance over the covered records
	Performance *metrics.Performance

	// Optional portfolio state at generation time
	Portfolio *domain.LedgerSummary

	// Per-token rows (sorted by realized P&L DESC, token ASC)
	Tokens []TokenRow

	// Rejection reasons (sorted by count DESC, reason ASC)
	Rejections []ReasonRow

	// Records in chronological order
	Trades []*domain.TradeRecord
}

// JournalSummary describes the covered records.
type JournalSummary struct {
	TotalRecords   int
	Executed       int
	Failed         int
	Rejected       int
	DryRuns        int
	PaperRecords   int
	DateRangeStart time.Time
	DateRangeEnd   time.Time
}

// TokenRow aggregates records of one token.
type TokenRow struct {
	TokenAddress string
	Buys         int
	Sells        int
	VolumeUSD    float64 // executed notional
	RealizedPnL  float64
}

// ReasonRow counts rejections with one reason.
type ReasonRow struct {
	Reason string
	Count  int
}
