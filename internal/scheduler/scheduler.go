// Package scheduler runs the assistant's periodic jobs on cron specs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/alerts"
	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/observability"
	"solana-trading-assistant/internal/storage"
)

// Job names.
const (
	JobDailyReset = "daily_reset"
	JobAnalysis   = "watchlist_analysis"
	JobMonitor    = "portfolio_monitor"
	JobSnapshot   = "portfolio_snapshot"
)

// Specs are six-field cron expressions (with seconds). Empty disables a job.
type Specs struct {
	DailyReset string `yaml:"daily_reset"`
	Analysis   string `yaml:"analysis"`
	Monitor    string `yaml:"monitor"`
	Snapshot   string `yaml:"snapshot"`
}

// DefaultSpecs resets at midnight, analyzes every 5 minutes, monitors every
// 30 seconds and snapshots every 15 minutes.
func DefaultSpecs() Specs {
	return Specs{
		DailyReset: "0 0 0 * * *",
		Analysis:   "0 */5 * * * *",
		Monitor:    "*/30 * * * * *",
		Snapshot:   "0 */15 * * * *",
	}
}

// Ledger is the portfolio state the jobs maintain.
type Ledger interface {
	ResetDaily()
	Tokens() []string
	MarkToMarket(prices map[string]float64) int
	Summary() domain.LedgerSummary
}

// PriceSource returns current USD prices.
type PriceSource interface {
	Prices(ctx context.Context, tokens []string) (map[string]float64, error)
}

// SnapshotSource returns market snapshots for alert checks.
type SnapshotSource interface {
	Snapshots(ctx context.Context, tokens []string) (map[string]domain.MarketSnapshot, error)
}

// SignalGenerator analyzes the watchlist.
type SignalGenerator interface {
	Generate(ctx context.Context, tokens []string) ([]domain.TradingSignal, error)
}

// AlertChecker applies risk alert rules.
type AlertChecker interface {
	Check(in alerts.Input) []domain.RiskAlert
}

var _ AlertChecker = (*alerts.Monitor)(nil)

// Options configures a Scheduler.
type Options struct {
	Specs Specs

	// Required
	Ledger Ledger

	// Optional; a nil collaborator skips the part of a job that needs it.
	Prices    PriceSource
	Market    SnapshotSource
	Signals   SignalGenerator
	Alerts    AlertChecker
	Snapshots storage.PortfolioSnapshotStore

	Watchlist  []string
	Balance    float64
	JobTimeout time.Duration // default 2m

	Logger zerolog.Logger
	Now    func() time.Time
}

// Scheduler owns the cron runner.
type Scheduler struct {
	opts Options
	cron *cron.Cron
	log  zerolog.Logger
	now  func() time.Time

	mu   sync.Mutex
	base context.Context
}

// New creates a Scheduler and registers every job with a non-empty spec.
func New(opts Options) (*Scheduler, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("scheduler: ledger is required")
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := opts.Logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	s := &Scheduler{
		opts: opts,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:  log,
		now:  opts.Now,
		base: context.Background(),
	}

	jobs := []struct {
		name, spec string
		fn         func(context.Context) error
	}{
		{JobDailyReset, opts.Specs.DailyReset, s.ResetDaily},
		{JobAnalysis, opts.Specs.Analysis, s.AnalyzeWatchlist},
		{JobMonitor, opts.Specs.Monitor, s.Monitor},
		{JobSnapshot, opts.Specs.Snapshot, s.Snapshot},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.fn)); err != nil {
			return nil, fmt.Errorf("register %s job: %w", j.name, err)
		}
	}
	return s, nil
}

// Run starts the cron runner and blocks until ctx is done. Running jobs are
// cancelled and awaited before it returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) wrap(name string, fn func(context.Context) error) func() {
	return func() {
		s.mu.Lock()
		base := s.base
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(base, s.opts.JobTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		observability.RecordJobRun(name, err)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("job done")
	}
}

// ResetDaily zeroes the ledger's daily P&L.
func (s *Scheduler) ResetDaily(context.Context) error {
	s.opts.Ledger.ResetDaily()
	s.log.Info().Msg("daily P&L reset")
	return nil
}

// AnalyzeWatchlist generates signals for the watchlist. The assembler
// publishes them to the signal history and stream.
func (s *Scheduler) AnalyzeWatchlist(ctx context.Context) error {
	if s.opts.Signals == nil || len(s.opts.Watchlist) == 0 {
		return nil
	}
	signals, err := s.opts.Signals.Generate(ctx, s.opts.Watchlist)
	if err != nil {
		return fmt.Errorf("analyze watchlist: %w", err)
	}
	s.log.Info().Int("tokens", len(s.opts.Watchlist)).Int("signals", len(signals)).Msg("watchlist analyzed")
	return nil
}

// Monitor marks open positions to market, refreshes the portfolio gauges and
// runs the risk alert rules over held and watched tokens.
func (s *Scheduler) Monitor(ctx context.Context) error {
	held := s.opts.Ledger.Tokens()

	if s.opts.Prices != nil && len(held) > 0 {
		prices, err := s.opts.Prices.Prices(ctx, held)
		if err != nil {
			return fmt.Errorf("mark to market: %w", err)
		}
		s.opts.Ledger.MarkToMarket(prices)
	}

	sum := s.opts.Ledger.Summary()
	observability.UpdatePortfolio(sum.TotalValueUSD, sum.TotalPositions, sum.DailyPnL)

	if s.opts.Alerts == nil {
		return nil
	}

	in := alerts.Input{
		PortfolioValue: s.opts.Balance + sum.TotalPnL + sum.TotalUnrealizedPnL,
		Balance:        s.opts.Balance,
		DailyPnL:       sum.DailyPnL,
	}
	if tokens := union(held, s.opts.Watchlist); s.opts.Market != nil && len(tokens) > 0 {
		snaps, err := s.opts.Market.Snapshots(ctx, tokens)
		if err != nil {
			s.log.Warn().Err(err).Msg("alert snapshots unavailable")
		}
		for _, t := range tokens {
			if snap, ok := snaps[t]; ok {
				in.Snapshots = append(in.Snapshots, snap)
			}
		}
	}

	if raised := s.opts.Alerts.Check(in); len(raised) > 0 {
		s.log.Info().Int("alerts", len(raised)).Msg("risk alerts raised")
	}
	return nil
}

// Snapshot persists the current ledger totals.
func (s *Scheduler) Snapshot(ctx context.Context) error {
	if s.opts.Snapshots == nil {
		return nil
	}
	sum := s.opts.Ledger.Summary()
	snap := &domain.PortfolioSnapshot{
		Timestamp:          s.now().UTC().Truncate(time.Second),
		TotalPositions:     uint32(sum.TotalPositions),
		TotalValueUSD:      sum.TotalValueUSD,
		TotalUnrealizedPnL: sum.TotalUnrealizedPnL,
		DailyPnL:           sum.DailyPnL,
		TotalPnL:           sum.TotalPnL,
		MaxDrawdown:        sum.MaxDrawdown,
	}

	start := time.Now()
	err := s.opts.Snapshots.Insert(ctx, snap)
	observability.RecordDBQuery("portfolio_snapshots", "insert", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
