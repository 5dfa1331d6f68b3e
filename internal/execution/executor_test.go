package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/jupiter"
	"solana-trading-assistant/internal/portfolio"
	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/storage/memory"
)

type fakeSwapper struct {
	mu       sync.Mutex
	requests []jupiter.SwapRequest
	err      error
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

func (f *fakeSwapper) Swap(ctx context.Context, req jupiter.SwapRequest) (string, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	return "tx-" + req.OutputMint[:4], nil
}

func (f *fakeSwapper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fixedPrice struct {
	price float64
	err   error
}

func (p fixedPrice) Price(ctx context.Context, mint string) (float64, error) {
	return p.price, p.err
}

// steppingClock returns a clock advancing by one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	exec    *Executor
	ledger  *portfolio.Ledger
	swapper *fakeSwapper
	journal *memory.TradeRecordStore
}

func newFixture(prices PriceSource) *fixture {
	ledger := portfolio.NewLedger()
	swapper := &fakeSwapper{}
	journal := memory.NewTradeRecordStore()

	exec := NewExecutor(Options{
		Validator: NewValidator(domain.DefaultRiskLimits(), zerolog.Nop()),
		Ledger:    ledger,
		Swapper:   swapper,
		Prices:    prices,
		Journal:   journal,
		Paper:     true,
		Logger:    zerolog.Nop(),
		Now:       steppingClock(),
	})
	return &fixture{exec: exec, ledger: ledger, swapper: swapper, journal: journal}
}

func TestExecutor_Buy(t *testing.T) {
	f := newFixture(fixedPrice{price: 200})
	ctx := context.Background()

	res, err := f.exec.Execute(ctx, buySignal(80, 0.15), 1000, false)
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusExecuted, res.Status)
	assert.Equal(t, "tx-Toke", res.TxID)
	assert.InDelta(t, 150.0, res.AmountUSD, 1e-9)
	assert.Equal(t, "750000000", res.BaseUnits)

	require.Len(t, f.swapper.requests, 1)
	req := f.swapper.requests[0]
	assert.Equal(t, solana.SOLMint, req.InputMint)
	assert.Equal(t, uint64(750_000_000), req.Amount)
	assert.Equal(t, 100, req.SlippageBps)
	assert.Equal(t, int64(50000), req.PriorityFeeMicroLamports)

	pos, ok := f.ledger.Position(buySignal(0, 0).TokenAddress)
	require.True(t, ok)
	assert.InDelta(t, 150.0, pos.Amount, 1e-9)
	require.NotNil(t, res.Position)

	trades, err := f.journal.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeStatusExecuted, trades[0].Status)
	assert.Equal(t, "tx-Toke", trades[0].TxID)
	assert.True(t, trades[0].Paper)
	assert.Len(t, trades[0].TradeID, 64)
}

func TestExecutor_Buy_FallbackSOLPrice(t *testing.T) {
	f := newFixture(fixedPrice{err: errors.New("price api down")})

	res, err := f.exec.Execute(context.Background(), buySignal(80, 0.15), 1000, false)
	require.NoError(t, err)

	// $150 at the $100 fallback is 1.5 SOL.
	assert.Equal(t, "1500000000", res.BaseUnits)
}

func TestExecutor_Rejected(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	res, err := f.exec.Execute(ctx, buySignal(69.9, 0.15), 1000, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, domain.TradeStatusRejected, res.Status)
	assert.Contains(t, res.Reason, "confidence")

	assert.Equal(t, 0, f.swapper.calls())
	assert.Equal(t, 0, f.ledger.Summary().TotalPositions)

	trades, _ := f.journal.GetAll(ctx)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeStatusRejected, trades[0].Status)
}

func TestExecutor_SwapFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(nil)
	f.swapper.err = errors.New("slippage exceeded")
	ctx := context.Background()

	res, err := f.exec.Execute(ctx, buySignal(80, 0.15), 1000, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailed))
	assert.False(t, errors.Is(err, ErrRejected))
	assert.Equal(t, domain.TradeStatusFailed, res.Status)
	assert.Empty(t, res.TxID)
	assert.Equal(t, 0, f.ledger.Summary().TotalPositions)

	trades, _ := f.journal.GetAll(ctx)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeStatusFailed, trades[0].Status)
	assert.Contains(t, trades[0].Reason, "slippage")
}

func TestExecutor_DryRun(t *testing.T) {
	f := newFixture(nil)

	res, err := f.exec.Execute(context.Background(), buySignal(80, 0.15), 1000, true)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusValidated, res.Status)
	assert.Equal(t, 0, f.swapper.calls())
	assert.Equal(t, 0, f.ledger.Summary().TotalPositions)
}

func TestExecutor_Sell(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	_, err := f.exec.Execute(ctx, buySignal(80, 0.15), 1000, false)
	require.NoError(t, err)

	sell := buySignal(75, 0.5)
	sell.Action = domain.ActionSell
	sell.EntryPrice = 1.2

	res, err := f.exec.Execute(ctx, sell, 1000, false)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusExecuted, res.Status)

	// 150 tokens × 0.5 in 6-decimal base units.
	assert.Equal(t, "75000000", res.BaseUnits)
	req := f.swapper.requests[1]
	assert.Equal(t, solana.SOLMint, req.OutputMint)
	assert.Equal(t, uint64(75_000_000), req.Amount)

	require.NotNil(t, res.Sell)
	assert.InDelta(t, 15.0, res.Sell.RealizedPnL, 1e-9)
	pos, ok := f.ledger.Position(sell.TokenAddress)
	require.True(t, ok)
	assert.InDelta(t, 75.0, pos.Amount, 1e-9)

	trades, _ := f.journal.GetByToken(ctx, sell.TokenAddress)
	require.Len(t, trades, 2)
	assert.InDelta(t, 15.0, trades[1].RealizedPnL, 1e-9)
}

func TestExecutor_SellWithoutPosition(t *testing.T) {
	f := newFixture(nil)

	sell := buySignal(75, 0.5)
	sell.Action = domain.ActionSell

	res, err := f.exec.Execute(context.Background(), sell, 1000, false)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, "no open position", res.Reason)
	assert.Equal(t, 0, f.swapper.calls())
}

func TestExecutor_SerializesExecutions(t *testing.T) {
	ledger := portfolio.NewLedger()
	swapper := &fakeSwapper{delay: 5 * time.Millisecond}
	exec := NewExecutor(Options{
		Validator: NewValidator(domain.DefaultRiskLimits(), zerolog.Nop()),
		Ledger:    ledger,
		Swapper:   swapper,
		Logger:    zerolog.Nop(),
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sig := buySignal(80, 0.001)
		if i%2 == 1 {
			sig.TokenAddress = "TokenBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
		}
		wg.Add(1)
		go func(sig domain.TradingSignal) {
			defer wg.Done()
			exec.Execute(context.Background(), sig, 100000, false)
		}(sig)
	}
	wg.Wait()

	assert.False(t, swapper.overlap.Load(), "swaps must not interleave, even across tokens")
	assert.Equal(t, 8, swapper.calls())

	pos, ok := ledger.Position(buySignal(0, 0).TokenAddress)
	require.True(t, ok)
	assert.InDelta(t, 400.0, pos.Amount, 1e-9)
}

func TestExecutor_ConcurrentBuysRespectExposureCap(t *testing.T) {
	limits := domain.DefaultRiskLimits()
	limits.MaxPositionSize = 1
	ledger := portfolio.NewLedger()
	swapper := &fakeSwapper{delay: 50 * time.Millisecond}
	exec := NewExecutor(Options{
		Validator: NewValidator(limits, zerolog.Nop()),
		Ledger:    ledger,
		Swapper:   swapper,
		Logger:    zerolog.Nop(),
	})

	a := buySignal(80, 0.5)
	b := buySignal(80, 0.5)
	b.TokenAddress = "TokenBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"

	var (
		wg      sync.WaitGroup
		results [2]*Result
		errs    [2]error
	)
	for i, sig := range []domain.TradingSignal{a, b} {
		wg.Add(1)
		go func(i int, sig domain.TradingSignal) {
			defer wg.Done()
			results[i], errs[i] = exec.Execute(context.Background(), sig, 1000, false)
		}(i, sig)
	}
	wg.Wait()

	exposureCap := 1000 * limits.MaxTotalExposure
	assert.LessOrEqual(t, ledger.Exposure(), exposureCap)
	assert.InDelta(t, 500.0, ledger.Exposure(), 1e-9)
	assert.Equal(t, 1, swapper.calls())

	rejected := 0
	for i := range results {
		if errors.Is(errs[i], ErrRejected) {
			rejected++
			assert.Contains(t, results[i].Reason, "total exposure")
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestExecutor_TradeIDsUniqueWithinMillisecond(t *testing.T) {
	journal := memory.NewTradeRecordStore()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := NewExecutor(Options{
		Validator: NewValidator(domain.DefaultRiskLimits(), zerolog.Nop()),
		Ledger:    portfolio.NewLedger(),
		Swapper:   &fakeSwapper{},
		Journal:   journal,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return fixed },
	})
	ctx := context.Background()

	// The same rejected signal twice at the same instant.
	first, _ := exec.Execute(ctx, buySignal(10, 0.15), 1000, false)
	second, _ := exec.Execute(ctx, buySignal(10, 0.15), 1000, false)

	assert.NotEqual(t, first.Record.TradeID, second.Record.TradeID)
	assert.Equal(t, first.Record.CreatedAt, second.Record.CreatedAt)

	trades, err := journal.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}
