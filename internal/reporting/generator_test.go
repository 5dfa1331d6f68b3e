package reporting

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage/memory"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func setupJournal(t *testing.T) *memory.TradeRecordStore {
	ctx := context.Background()
	store := memory.NewTradeRecordStore()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", TokenAddress: "mintA", Action: domain.ActionBuy, Status: domain.TradeStatusExecuted, AmountUSD: 150, Confidence: 80, Paper: true, CreatedAt: t0},
		{TradeID: "t2", TokenAddress: "mintB", Action: domain.ActionBuy, Status: domain.TradeStatusRejected, Reason: "daily loss limit exceeded", Confidence: 75, CreatedAt: t0.Add(time.Minute)},
		{TradeID: "t3", TokenAddress: "mintA", Action: domain.ActionSell, Status: domain.TradeStatusExecuted, AmountUSD: 165, RealizedPnL: 15, Confidence: 20, Paper: true, CreatedAt: t0.Add(2 * time.Minute)},
		{TradeID: "t4", TokenAddress: "mintC", Action: domain.ActionBuy, Status: domain.TradeStatusFailed, AmountUSD: 100, Confidence: 90, Reason: "swap failed: no route, retry later", CreatedAt: t0.Add(3 * time.Minute)},
		{TradeID: "t5", TokenAddress: "mintB", Action: domain.ActionBuy, Status: domain.TradeStatusRejected, Reason: "daily loss limit exceeded", Confidence: 71, CreatedAt: t0.Add(4 * time.Minute)},
		{TradeID: "t6", TokenAddress: "mintD", Action: domain.ActionBuy, Status: domain.TradeStatusValidated, AmountUSD: 50, Confidence: 72, CreatedAt: t0.Add(5 * time.Minute)},
	}
	for _, tr := range trades {
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert trade failed: %v", err)
		}
	}
	return store
}

type fixedPortfolio domain.LedgerSummary

func (p fixedPortfolio) Summary() domain.LedgerSummary { return domain.LedgerSummary(p) }

func TestGenerator_Generate(t *testing.T) {
	store := setupJournal(t)
	gen := NewGenerator(store, fixedPortfolio{TotalPositions: 1, TotalValueUSD: 42}).
		WithClock(func() time.Time { return t0.Add(time.Hour) })

	report, err := gen.Generate(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	s := report.Summary
	if s.TotalRecords != 6 || s.Executed != 2 || s.Failed != 1 || s.Rejected != 2 || s.DryRuns != 1 || s.PaperRecords != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
	if !s.DateRangeStart.Equal(t0) || !s.DateRangeEnd.Equal(t0.Add(5*time.Minute)) {
		t.Errorf("unexpected date range %v - %v", s.DateRangeStart, s.DateRangeEnd)
	}

	if report.Performance.TotalTrades != 3 || report.Performance.TotalPnL != 15 {
		t.Errorf("unexpected performance %+v", report.Performance)
	}

	if len(report.Tokens) != 1 || report.Tokens[0].TokenAddress != "mintA" {
		t.Fatalf("expected one executed token row, got %+v", report.Tokens)
	}
	if row := report.Tokens[0]; row.Buys != 1 || row.Sells != 1 || row.VolumeUSD != 315 || row.RealizedPnL != 15 {
		t.Errorf("unexpected token row %+v", row)
	}

	if len(report.Rejections) != 1 || report.Rejections[0].Count != 2 {
		t.Errorf("unexpected rejections %+v", report.Rejections)
	}
	if report.Portfolio == nil || report.Portfolio.TotalValueUSD != 42 {
		t.Errorf("expected portfolio summary, got %+v", report.Portfolio)
	}
	if report.Trades[0].TradeID != "t1" || report.Trades[5].TradeID != "t6" {
		t.Error("trades are not chronological")
	}
}

func TestGenerator_Since(t *testing.T) {
	store := setupJournal(t)
	gen := NewGenerator(store, nil)

	report, err := gen.Generate(context.Background(), t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Summary.TotalRecords != 4 {
		t.Errorf("expected 4 records, got %d", report.Summary.TotalRecords)
	}
	if report.Portfolio != nil {
		t.Error("expected no portfolio section without a source")
	}
}

func TestRenderMarkdown(t *testing.T) {
	store := setupJournal(t)
	report, err := NewGenerator(store, nil).
		WithClock(func() time.Time { return t0 }).
		Generate(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Trading Journal Report",
		"Generated: 2026-10-01T12:00:00Z",
		"| Executed | 2 |",
		"| Total P&L | $15.00 |",
		"| mintA | 1 | 1 | $315.00 | $15.00 |",
		"| daily loss limit exceeded | 2 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	report, err := NewGenerator(memory.NewTradeRecordStore(), nil).Generate(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(report)
	if !strings.Contains(md, "No trades executed.") || !strings.Contains(md, "No executed trades.") {
		t.Errorf("unexpected empty report:\n%s", md)
	}
}

func TestRenderCSV(t *testing.T) {
	store := setupJournal(t)
	report, err := NewGenerator(store, nil).Generate(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := RenderCSV(report.Trades)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("CSV does not parse: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("expected header + 6 rows, got %d", len(rows))
	}
	if rows[0][0] != "trade_id" || len(rows[0]) != len(csvHeader) {
		t.Errorf("unexpected header %v", rows[0])
	}
	// reason with a comma survives quoting
	if got := rows[4][len(csvHeader)-1]; got != "swap failed: no route, retry later" {
		t.Errorf("unexpected reason %q", got)
	}
	if rows[3][11] != "15.000000" {
		t.Errorf("expected realized pnl 15.000000, got %s", rows[3][11])
	}
}
