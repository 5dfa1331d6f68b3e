package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/metrics"
	"solana-trading-assistant/internal/storage"
)

// PortfolioSource provides the ledger summary shown in reports.
type PortfolioSource interface {
	Summary() domain.LedgerSummary
}

// Generator produces reports from the trade journal.
type Generator struct {
	tradeRecordStore storage.TradeRecordStore
	portfolio        PortfolioSource
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. portfolio may be nil.
func NewGenerator(tradeStore storage.TradeRecordStore, portfolio PortfolioSource) *Generator {
	return &Generator{
		tradeRecordStore: tradeStore,
		portfolio:        portfolio,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report over records created at or after since.
// A zero since covers the whole journal.
func (g *Generator) Generate(ctx context.Context, since time.Time) (*Report, error) {
	all, err := g.tradeRecordStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	trades := make([]*domain.TradeRecord, 0, len(all))
	for _, t := range all {
		if since.IsZero() || !t.CreatedAt.Before(since) {
			trades = append(trades, t)
		}
	}
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].CreatedAt.Equal(trades[j].CreatedAt) {
			return trades[i].CreatedAt.Before(trades[j].CreatedAt)
		}
		return trades[i].TradeID < trades[j].TradeID
	})

	report := &Report{
		GeneratedAt: g.now(),
		Since:       since,
		Summary:     generateSummary(trades),
		Performance: metrics.ComputeFrom(trades),
		Tokens:      generateTokenRows(trades),
		Rejections:  generateRejections(trades),
		Trades:      trades,
	}
	if g.portfolio != nil {
		s := g.portfolio.Summary()
		report.Portfolio = &s
	}
	return report, nil
}

// generateSummary counts records by status. trades must be chronological.
func generateSummary(trades []*domain.TradeRecord) JournalSummary {
	s := JournalSummary{TotalRecords: len(trades)}
	if len(trades) == 0 {
		return s
	}
	s.DateRangeStart = trades[0].CreatedAt
	s.DateRangeEnd = trades[len(trades)-1].CreatedAt

	for _, t := range trades {
		switch t.Status {
		case domain.TradeStatusExecuted:
			s.Executed++
		case domain.TradeStatusFailed:
			s.Failed++
		case domain.TradeStatusRejected:
			s.Rejected++
		case domain.TradeStatusValidated:
			s.DryRuns++
		}
		if t.Paper {
			s.PaperRecords++
		}
	}
	return s
}

// generateTokenRows aggregates executed records per token.
func generateTokenRows(trades []*domain.TradeRecord) []TokenRow {
	byToken := make(map[string]*TokenRow)
	for _, t := range trades {
		if t.Status != domain.TradeStatusExecuted {
			continue
		}
		row := byToken[t.TokenAddress]
		if row == nil {
			row = &TokenRow{TokenAddress: t.TokenAddress}
			byToken[t.TokenAddress] = row
		}
		row.VolumeUSD += t.AmountUSD
		switch t.Action {
		case domain.ActionBuy:
			row.Buys++
		case domain.ActionSell:
			row.Sells++
			row.RealizedPnL += t.RealizedPnL
		}
	}

	rows := make([]TokenRow, 0, len(byToken))
	for _, r := range byToken {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RealizedPnL != rows[j].RealizedPnL {
			return rows[i].RealizedPnL > rows[j].RealizedPnL
		}
		return rows[i].TokenAddress < rows[j].TokenAddress
	})
	return rows
}

// generateRejections counts rejected records by reason.
func generateRejections(trades []*domain.TradeRecord) []ReasonRow {
	counts := make(map[string]int)
	for _, t := range trades {
		if t.Status == domain.TradeStatusRejected {
			counts[t.Reason]++
		}
	}

	rows := make([]ReasonRow, 0, len(counts))
	for reason, n := range counts {
		rows = append(rows, ReasonRow{Reason: reason, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Reason < rows[j].Reason
	})
	return rows
}
