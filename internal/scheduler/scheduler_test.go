package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/alerts"
	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/portfolio"
	"solana-trading-assistant/internal/storage/memory"
)

type fakePrices struct {
	prices map[string]float64
	err    error
	asked  []string
}

func (f *fakePrices) Prices(_ context.Context, tokens []string) (map[string]float64, error) {
	f.asked = tokens
	return f.prices, f.err
}

type fakeMarket struct {
	snaps map[string]domain.MarketSnapshot
	asked []string
}

func (f *fakeMarket) Snapshots(_ context.Context, tokens []string) (map[string]domain.MarketSnapshot, error) {
	f.asked = tokens
	return f.snaps, nil
}

type fakeSignals struct {
	calls int
	err   error
}

func (f *fakeSignals) Generate(_ context.Context, tokens []string) ([]domain.TradingSignal, error) {
	f.calls++
	return nil, f.err
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) *portfolio.Ledger {
	t.Helper()
	l := portfolio.NewLedger().WithClock(func() time.Time { return fixedNow })
	if _, err := l.ApplyBuy(domain.TradingSignal{TokenAddress: "tokenA", EntryPrice: 2}, 200); err != nil {
		t.Fatalf("ApplyBuy: %v", err)
	}
	return l
}

func TestNew_RequiresLedger(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without ledger")
	}
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(Options{Ledger: portfolio.NewLedger(), Specs: Specs{Monitor: "every now and then"}})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestNew_RegistersNonEmptySpecs(t *testing.T) {
	s, err := New(Options{Ledger: portfolio.NewLedger(), Specs: Specs{DailyReset: "0 0 0 * * *", Monitor: "*/30 * * * * *"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Errorf("expected 2 jobs, got %d", n)
	}

	s, err = New(Options{Ledger: portfolio.NewLedger(), Specs: DefaultSpecs()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n := len(s.cron.Entries()); n != 4 {
		t.Errorf("expected 4 jobs, got %d", n)
	}
}

func TestScheduler_ResetDaily(t *testing.T) {
	l := newLedger(t)
	// Half of 100 units sold 0.5 below entry.
	if _, err := l.ApplySell(domain.TradingSignal{TokenAddress: "tokenA", EntryPrice: 1.5, PositionSize: 0.5}); err != nil {
		t.Fatalf("ApplySell: %v", err)
	}
	if l.DailyPnL() != -25 {
		t.Fatalf("expected daily P&L -25, got %v", l.DailyPnL())
	}

	s, _ := New(Options{Ledger: l, Logger: zerolog.Nop()})
	if err := s.ResetDaily(context.Background()); err != nil {
		t.Fatalf("ResetDaily: %v", err)
	}
	if l.DailyPnL() != 0 {
		t.Errorf("expected daily P&L 0, got %v", l.DailyPnL())
	}
	if got := l.Summary().TotalPnL; got != -25 {
		t.Errorf("expected total P&L kept at -25, got %v", got)
	}
}

func TestScheduler_Monitor(t *testing.T) {
	l := newLedger(t)
	prices := &fakePrices{prices: map[string]float64{"tokenA": 3}}
	market := &fakeMarket{snaps: map[string]domain.MarketSnapshot{
		"tokenA": {Address: "tokenA", Liquidity: 10_000, PriceChange24h: 5},
		"tokenW": {Address: "tokenW", Liquidity: 2_000_000, PriceChange24h: -75},
	}}
	monitor := alerts.NewMonitor(alerts.Options{
		Limits: domain.DefaultRiskLimits(),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixedNow },
	})

	s, _ := New(Options{
		Ledger:    l,
		Prices:    prices,
		Market:    market,
		Alerts:    monitor,
		Watchlist: []string{"tokenW", "tokenA"},
		Balance:   1000,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return fixedNow },
	})

	if err := s.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	pos, _ := l.Position("tokenA")
	if pos.CurrentPrice != 3 {
		t.Errorf("expected mark-to-market price 3, got %v", pos.CurrentPrice)
	}
	if len(prices.asked) != 1 || prices.asked[0] != "tokenA" {
		t.Errorf("expected prices for held tokens only, got %v", prices.asked)
	}
	if len(market.asked) != 2 {
		t.Errorf("expected held and watched tokens deduplicated, got %v", market.asked)
	}

	got := map[domain.AlertType]string{}
	for _, a := range monitor.Recent(0) {
		got[a.Type] = a.TokenAddress
	}
	if got[domain.AlertLiquidity] != "tokenA" {
		t.Errorf("expected liquidity alert for tokenA, got %v", got)
	}
	if got[domain.AlertVolatility] != "tokenW" {
		t.Errorf("expected volatility alert for tokenW, got %v", got)
	}
	if _, ok := got[domain.AlertPortfolioValue]; ok {
		t.Errorf("equity above minimum must not alert, got %v", got)
	}
}

func TestScheduler_MonitorPriceFailure(t *testing.T) {
	s, _ := New(Options{
		Ledger: newLedger(t),
		Prices: &fakePrices{err: errors.New("birdeye down")},
		Logger: zerolog.Nop(),
	})
	if err := s.Monitor(context.Background()); err == nil {
		t.Fatal("expected error when prices fail")
	}
}

func TestScheduler_Snapshot(t *testing.T) {
	store := memory.NewPortfolioSnapshotStore()
	s, _ := New(Options{
		Ledger:    newLedger(t),
		Snapshots: store,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return fixedNow.Add(450 * time.Millisecond) },
	})

	if err := s.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.Timestamp.Equal(fixedNow) {
		t.Errorf("expected timestamp truncated to %v, got %v", fixedNow, latest.Timestamp)
	}
	if latest.TotalPositions != 1 || latest.TotalValueUSD != 200 {
		t.Errorf("unexpected snapshot %+v", latest)
	}

	// same second is a duplicate
	if err := s.Snapshot(context.Background()); err == nil {
		t.Error("expected duplicate snapshot error")
	}
}

func TestScheduler_AnalyzeWatchlist(t *testing.T) {
	signals := &fakeSignals{}
	s, _ := New(Options{Ledger: portfolio.NewLedger(), Signals: signals, Logger: zerolog.Nop()})

	if err := s.AnalyzeWatchlist(context.Background()); err != nil {
		t.Fatalf("AnalyzeWatchlist: %v", err)
	}
	if signals.calls != 0 {
		t.Errorf("empty watchlist must not analyze, got %d calls", signals.calls)
	}

	s.opts.Watchlist = []string{"tokenA"}
	signals.err = errors.New("snapshot batch failed")
	if err := s.AnalyzeWatchlist(context.Background()); err == nil {
		t.Error("expected batch failure to propagate")
	}
	if signals.calls != 1 {
		t.Errorf("expected 1 call, got %d", signals.calls)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s, _ := New(Options{Ledger: portfolio.NewLedger(), Specs: DefaultSpecs(), Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
