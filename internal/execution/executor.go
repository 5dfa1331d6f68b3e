package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/idhash"
	"solana-trading-assistant/internal/jupiter"
	"solana-trading-assistant/internal/observability"
	"solana-trading-assistant/internal/portfolio"
	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/storage"
)

// Execution errors.
var (
	// ErrRejected is returned when the validator refuses a signal. The ledger is untouched.
	ErrRejected = errors.New("trade rejected")

	// ErrExecutionFailed is returned when the swap fails or times out. No transaction
	// was produced and the ledger is untouched.
	ErrExecutionFailed = errors.New("trade execution failed")
)

// FallbackSOLPrice is used when the SOL price is unavailable.
const FallbackSOLPrice = 100.0

// Swapper executes a swap and returns its transaction ID.
type Swapper interface {
	Swap(ctx context.Context, req jupiter.SwapRequest) (string, error)
}

// PriceSource returns the USD price of a mint.
type PriceSource interface {
	Price(ctx context.Context, mint string) (float64, error)
}

// Result is the outcome of one execution attempt.
type Result struct {
	Status    domain.TradeStatus    `json:"status"`
	Signal    domain.TradingSignal  `json:"signal"`
	AmountUSD float64               `json:"amount_usd"`
	BaseUnits string                `json:"amount_base_units,omitempty"`
	TxID      string                `json:"tx_id,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Position  *domain.Position      `json:"position,omitempty"`
	Sell      *portfolio.SellResult `json:"sell,omitempty"`
	Record    domain.TradeRecord    `json:"-"`
}

// Options configures an Executor.
type Options struct {
	Validator *Validator
	Ledger    *portfolio.Ledger
	Swapper   Swapper

	// Optional.
	Prices  PriceSource
	Journal storage.TradeRecordStore

	Paper                    bool
	SwapTimeout              time.Duration // default 60s
	SlippageBps              int           // default 100
	PriorityFeeMicroLamports int64         // default 50000
	TokenDecimals            int32         // default 6

	Logger zerolog.Logger
	Now    func() time.Time
}

// Executor validates a signal, runs the swap and applies the fill to the ledger.
// Executions are serialized: the exposure a validation reads already includes
// every earlier fill.
type Executor struct {
	validator   *Validator
	ledger      *portfolio.Ledger
	swapper     Swapper
	prices      PriceSource
	journal     storage.TradeRecordStore
	paper       bool
	swapTimeout time.Duration
	slippageBps int
	priorityFee int64
	decimals    int32
	log         zerolog.Logger
	now         func() time.Time

	mu  sync.Mutex
	seq atomic.Uint64
}

// NewExecutor creates an Executor.
func NewExecutor(opts Options) *Executor {
	if opts.SwapTimeout == 0 {
		opts.SwapTimeout = 60 * time.Second
	}
	if opts.SlippageBps == 0 {
		opts.SlippageBps = jupiter.DefaultSlippageBps
	}
	if opts.PriorityFeeMicroLamports == 0 {
		opts.PriorityFeeMicroLamports = jupiter.DefaultPriorityFeeMicroLamports
	}
	if opts.TokenDecimals == 0 {
		opts.TokenDecimals = 6
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{
		validator:   opts.Validator,
		ledger:      opts.Ledger,
		swapper:     opts.Swapper,
		prices:      opts.Prices,
		journal:     opts.Journal,
		paper:       opts.Paper,
		swapTimeout: opts.SwapTimeout,
		slippageBps: opts.SlippageBps,
		priorityFee: opts.PriorityFeeMicroLamports,
		decimals:    opts.TokenDecimals,
		log:         opts.Logger.With().Str("component", "executor").Logger(),
		now:         opts.Now,
	}
}

// Execute runs sig against a portfolio of balance USD. With dryRun only validation
// happens and an accepted signal ends as StatusValidated.
//
// The returned Result is never nil. The error wraps ErrRejected or ErrExecutionFailed
// for those outcomes and is nil for executed and validated signals.
func (e *Executor) Execute(ctx context.Context, sig domain.TradingSignal, balance float64, dryRun bool) (*Result, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.execute(ctx, sig, balance, dryRun)

	observability.RecordExecution(string(res.Status), time.Since(start).Seconds())
	e.recordJournal(ctx, res)
	return res, err
}

func (e *Executor) execute(ctx context.Context, sig domain.TradingSignal, balance float64, dryRun bool) (*Result, error) {
	res := &Result{Signal: sig, AmountUSD: balance * sig.PositionSize}

	if ok, reason := e.validator.Validate(sig, balance, e.ledger); !ok {
		return e.reject(res, reason)
	}

	var req jupiter.SwapRequest
	var pos domain.Position
	switch sig.Action {
	case domain.ActionBuy:
		if !(sig.EntryPrice > 0) {
			return e.reject(res, fmt.Sprintf("invalid entry price %v", sig.EntryPrice))
		}
		lamports, err := e.buyLamports(ctx, res.AmountUSD)
		if err != nil {
			return e.reject(res, err.Error())
		}
		req = e.swapRequest(solana.SOLMint, sig.TokenAddress, lamports)
		res.BaseUnits = lamports.String()

	case domain.ActionSell:
		var ok bool
		pos, ok = e.ledger.Position(sig.TokenAddress)
		if !ok {
			return e.reject(res, "no open position")
		}
		units := e.sellUnits(pos.Amount, sig.PositionSize)
		if !units.IsPositive() {
			return e.reject(res, "sell amount rounds to zero")
		}
		req = e.swapRequest(sig.TokenAddress, solana.SOLMint, units)
		res.BaseUnits = units.String()
	}

	if dryRun {
		res.Status = domain.TradeStatusValidated
		return res, nil
	}

	swapCtx, cancel := context.WithTimeout(ctx, e.swapTimeout)
	txID, err := e.swapper.Swap(swapCtx, req)
	cancel()
	if err != nil {
		res.Status = domain.TradeStatusFailed
		res.Reason = err.Error()
		e.log.Error().Err(err).
			Str("token", sig.TokenAddress).
			Str("action", string(sig.Action)).
			Msg("swap failed")
		return res, fmt.Errorf("%w: %s %s: %v", ErrExecutionFailed, sig.Action, sig.TokenAddress, err)
	}
	if txID == "" {
		res.Status = domain.TradeStatusFailed
		res.Reason = "no transaction produced"
		return res, fmt.Errorf("%w: %s", ErrExecutionFailed, res.Reason)
	}

	res.Status = domain.TradeStatusExecuted
	res.TxID = txID

	switch sig.Action {
	case domain.ActionBuy:
		p, err := e.ledger.ApplyBuy(sig, res.AmountUSD)
		if err != nil {
			res.Reason = fmt.Sprintf("ledger update failed: %v", err)
			e.log.Error().Err(err).Str("tx_id", txID).Msg("buy executed but ledger update failed")
			break
		}
		res.Position = &p
	case domain.ActionSell:
		sr, err := e.ledger.ApplySell(sig)
		if err != nil {
			res.Reason = fmt.Sprintf("ledger update failed: %v", err)
			e.log.Error().Err(err).Str("tx_id", txID).Msg("sell executed but ledger update failed")
			break
		}
		res.Sell = &sr
		if !sr.Closed {
			if p, ok := e.ledger.Position(sig.TokenAddress); ok {
				res.Position = &p
			}
		}
	}

	e.log.Info().
		Str("token", sig.TokenAddress).
		Str("action", string(sig.Action)).
		Float64("amount_usd", res.AmountUSD).
		Str("base_units", res.BaseUnits).
		Str("tx_id", txID).
		Msg("trade executed")

	return res, nil
}

func (e *Executor) reject(res *Result, reason string) (*Result, error) {
	res.Status = domain.TradeStatusRejected
	res.Reason = reason
	return res, fmt.Errorf("%w: %s", ErrRejected, reason)
}

func (e *Executor) swapRequest(in, out string, amount decimal.Decimal) jupiter.SwapRequest {
	return jupiter.SwapRequest{
		InputMint:                in,
		OutputMint:               out,
		Amount:                   amount.BigInt().Uint64(),
		SlippageBps:              e.slippageBps,
		PriorityFeeMicroLamports: e.priorityFee,
	}
}

// buyLamports converts a USD notional to lamports at the current SOL price, rounded down.
func (e *Executor) buyLamports(ctx context.Context, amountUSD float64) (decimal.Decimal, error) {
	solPrice := e.solPrice(ctx)
	lamports := decimal.NewFromFloat(amountUSD).
		Div(decimal.NewFromFloat(solPrice)).
		Shift(9).
		Floor()
	if !lamports.IsPositive() {
		return decimal.Zero, fmt.Errorf("buy amount $%.2f rounds to zero lamports", amountUSD)
	}
	return lamports, nil
}

func (e *Executor) solPrice(ctx context.Context) float64 {
	if e.prices == nil {
		return FallbackSOLPrice
	}
	p, err := e.prices.Price(ctx, solana.SOLMint)
	if err != nil || !(p > 0) {
		e.log.Warn().Err(err).Float64("fallback", FallbackSOLPrice).Msg("SOL price unavailable")
		return FallbackSOLPrice
	}
	return p
}

// sellUnits returns amount × fraction in token base units, rounded down.
func (e *Executor) sellUnits(amount, fraction float64) decimal.Decimal {
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(fraction)).
		Shift(e.decimals).
		Floor()
}

func (e *Executor) recordJournal(ctx context.Context, res *Result) {
	createdAt := e.now().UTC()
	tradeID := idhash.ComputeTradeID(res.Signal.ID, res.Signal.TokenAddress, string(res.Signal.Action),
		string(res.Status), res.TxID, createdAt.UnixMilli(), e.seq.Add(1))
	rec := domain.TradeRecord{
		TradeID:         tradeID,
		SignalID:        res.Signal.ID,
		TokenAddress:    res.Signal.TokenAddress,
		Action:          res.Signal.Action,
		Status:          res.Status,
		AmountUSD:       res.AmountUSD,
		AmountBaseUnits: res.BaseUnits,
		Price:           res.Signal.EntryPrice,
		Confidence:      res.Signal.Confidence,
		RiskTier:        res.Signal.RiskTier,
		PositionSize:    res.Signal.PositionSize,
		TxID:            res.TxID,
		Reason:          res.Reason,
		Paper:           e.paper,
		CreatedAt:       createdAt,
	}
	if res.Sell != nil {
		rec.RealizedPnL = res.Sell.RealizedPnL
	}
	res.Record = rec

	if e.journal == nil {
		return
	}

	start := time.Now()
	err := e.journal.Insert(ctx, &rec)
	observability.RecordDBQuery("journal", "insert", time.Since(start).Seconds(), err)
	if err != nil {
		e.log.Error().Err(err).Str("trade_id", rec.TradeID).Msg("journal insert failed")
	}
}
