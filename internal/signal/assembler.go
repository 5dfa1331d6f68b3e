// Package signal assembles ranked trading signals for a batch of tokens.
// Flow: batched snapshots → per-token indicators → scoring → ranking
package signal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/observability"
	"solana-trading-assistant/internal/scoring"
	"solana-trading-assistant/internal/storage"
)

// ErrDataUnavailable marks a token without a snapshot or indicators.
var ErrDataUnavailable = domain.ErrDataUnavailable

const (
	DefaultWorkers      = 5
	DefaultTokenTimeout = 30 * time.Second
)

// SnapshotSource returns snapshots for a batch of tokens in one call. Tokens
// without data are absent from the map.
type SnapshotSource interface {
	Snapshots(ctx context.Context, tokens []string) (map[string]domain.MarketSnapshot, error)
}

// IndicatorSource returns technical indicators for one token.
type IndicatorSource interface {
	Indicators(ctx context.Context, token string) (domain.TechnicalIndicators, error)
}

// Publisher receives every generated batch.
type Publisher interface {
	PublishSignals(signals []domain.TradingSignal)
}

// Analyzer scores one token.
type Analyzer interface {
	Analyze(token string, snap domain.MarketSnapshot, ind domain.TechnicalIndicators) (domain.TradingSignal, error)
}

var _ Analyzer = (*scoring.Engine)(nil)

// Options for creating an Assembler.
type Options struct {
	// Required
	Snapshots  SnapshotSource
	Indicators IndicatorSource
	Engine     Analyzer

	// Optional
	History   storage.SignalStore
	Publisher Publisher

	Workers      int
	TokenTimeout time.Duration
	Logger       zerolog.Logger
}

// Assembler turns a token list into ranked signals.
type Assembler struct {
	snapshots    SnapshotSource
	indicators   IndicatorSource
	engine       Analyzer
	history      storage.SignalStore
	publisher    Publisher
	workers      int
	tokenTimeout time.Duration
	log          zerolog.Logger
}

// New creates a new Assembler.
func New(opts Options) *Assembler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.TokenTimeout <= 0 {
		opts.TokenTimeout = DefaultTokenTimeout
	}
	return &Assembler{
		snapshots:    opts.Snapshots,
		indicators:   opts.Indicators,
		engine:       opts.Engine,
		history:      opts.History,
		publisher:    opts.Publisher,
		workers:      opts.Workers,
		tokenTimeout: opts.TokenTimeout,
		log:          opts.Logger.With().Str("component", "assembler").Logger(),
	}
}

// Generate analyzes tokens and returns signals ordered by descending confidence.
// Only a failed snapshot batch is returned as an error; every per-token
// failure drops that token.
func (a *Assembler) Generate(ctx context.Context, tokens []string) ([]domain.TradingSignal, error) {
	start := time.Now()
	defer func() { observability.RecordAnalysis(time.Since(start).Seconds()) }()

	if len(tokens) == 0 {
		return []domain.TradingSignal{}, nil
	}

	snaps, err := a.snapshots.Snapshots(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}

	var (
		mu      sync.Mutex
		signals = make([]domain.TradingSignal, 0, len(tokens))
		g       errgroup.Group
	)
	g.SetLimit(a.workers)

	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		snap, ok := snaps[token]
		if !ok {
			a.skip(token, "no_snapshot", ErrDataUnavailable)
			continue
		}

		g.Go(func() error {
			sig, err := a.analyzeToken(ctx, token, snap)
			if err != nil {
				a.skip(token, skipReason(err), err)
				return nil
			}
			mu.Lock()
			signals = append(signals, sig)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	Rank(signals)

	for _, sig := range signals {
		observability.RecordSignal(string(sig.Action), sig.Confidence)
	}
	a.record(ctx, signals)

	a.log.Info().
		Int("tokens", len(seen)).
		Int("signals", len(signals)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")

	return signals, nil
}

// analyzeToken runs one token under its own timeout. A panic in scoring is
// recovered into an error.
func (a *Assembler) analyzeToken(ctx context.Context, token string, snap domain.MarketSnapshot) (sig domain.TradingSignal, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.tokenTimeout)
	defer cancel()

	type result struct {
		sig domain.TradingSignal
		err error
	}
	done := make(chan result, 1)

	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res = result{err: fmt.Errorf("panic while scoring %s: %v", token, r)}
			}
			done <- res
		}()

		ind, err := a.indicators.Indicators(ctx, token)
		if err != nil {
			res.err = err
			return
		}
		if ctx.Err() != nil {
			res.err = ctx.Err()
			return
		}
		res.sig, res.err = a.engine.Analyze(token, snap, ind)
	}()

	select {
	case res := <-done:
		return res.sig, res.err
	case <-ctx.Done():
		return domain.TradingSignal{}, ctx.Err()
	}
}

func (a *Assembler) skip(token, reason string, err error) {
	observability.RecordTokenSkipped(reason)
	a.log.Warn().Err(err).Str("token", token).Str("reason", reason).Msg("token skipped")
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrDataUnavailable):
		return "no_data"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// record stores and publishes a batch. Storage failures are logged only.
func (a *Assembler) record(ctx context.Context, signals []domain.TradingSignal) {
	if len(signals) == 0 {
		return
	}
	if a.history != nil {
		start := time.Now()
		err := a.history.InsertBulk(ctx, signals)
		observability.RecordDBQuery("signals", "insert_bulk", time.Since(start).Seconds(), err)
		if err != nil {
			a.log.Error().Err(err).Int("signals", len(signals)).Msg("store signal history")
		}
	}
	if a.publisher != nil {
		out := make([]domain.TradingSignal, len(signals))
		copy(out, signals)
		a.publisher.PublishSignals(out)
	}
}

// Rank sorts signals by descending confidence, then by token address.
func Rank(signals []domain.TradingSignal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Confidence != signals[j].Confidence {
			return signals[i].Confidence > signals[j].Confidence
		}
		return signals[i].TokenAddress < signals[j].TokenAddress
	})
}
