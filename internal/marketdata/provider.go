// Package marketdata composes per-token market snapshots and technical
// indicators from Birdeye, Mobula and Jupiter.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-trading-assistant/internal/cache"
	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/indicators"
)

const (
	DefaultSnapshotTTL    = 30 * time.Second
	DefaultIndicatorTTL   = 5 * time.Minute
	DefaultCandleInterval = "15m"
	DefaultCandleCount    = 100
	DefaultWorkers        = 5
)

// ErrUnsupported is returned for an unknown candle provider or timeframe.
var ErrUnsupported = errors.New("unsupported candle request")

// ImpactSource quotes the price impact of a $10k buy.
type ImpactSource interface {
	PriceImpact10k(ctx context.Context, mint string) (float64, error)
}

// Options configures a Provider.
type Options struct {
	Birdeye *BirdeyeClient
	Mobula  *MobulaClient // optional
	Impact  ImpactSource  // optional
	Cache   cache.Cache   // optional

	SnapshotTTL    time.Duration
	IndicatorTTL   time.Duration
	CandleInterval string
	CandleCount    int
	Workers        int

	Logger zerolog.Logger
	Now    func() time.Time
}

// Provider serves snapshots and indicators to the signal assembler.
type Provider struct {
	birdeye *BirdeyeClient
	mobula  *MobulaClient
	impact  ImpactSource
	cache   cache.Cache

	snapshotTTL    time.Duration
	indicatorTTL   time.Duration
	candleInterval string
	candleCount    int
	workers        int

	log zerolog.Logger
	now func() time.Time
}

// NewProvider creates a Provider. A Birdeye client is required.
func NewProvider(opts Options) (*Provider, error) {
	if opts.Birdeye == nil {
		return nil, errors.New("marketdata: birdeye client is required")
	}
	if opts.SnapshotTTL == 0 {
		opts.SnapshotTTL = DefaultSnapshotTTL
	}
	if opts.IndicatorTTL == 0 {
		opts.IndicatorTTL = DefaultIndicatorTTL
	}
	if opts.CandleInterval == "" {
		opts.CandleInterval = DefaultCandleInterval
	}
	if opts.CandleCount <= 0 {
		opts.CandleCount = DefaultCandleCount
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		birdeye:        opts.Birdeye,
		mobula:         opts.Mobula,
		impact:         opts.Impact,
		cache:          opts.Cache,
		snapshotTTL:    opts.SnapshotTTL,
		indicatorTTL:   opts.IndicatorTTL,
		candleInterval: opts.CandleInterval,
		candleCount:    opts.CandleCount,
		workers:        opts.Workers,
		log:            opts.Logger.With().Str("component", "marketdata").Logger(),
		now:            opts.Now,
	}, nil
}

func snapshotKey(token string) string  { return "snapshot:" + token }
func indicatorKey(token string) string { return "indicators:" + token }

// Snapshots returns a snapshot for every token that some source knows. The
// batched Birdeye price call is the only error returned; tokens without data
// are simply absent from the map.
func (p *Provider) Snapshots(ctx context.Context, tokens []string) (map[string]domain.MarketSnapshot, error) {
	out := make(map[string]domain.MarketSnapshot, len(tokens))
	var misses []string
	for _, token := range dedupe(tokens) {
		var snap domain.MarketSnapshot
		if cache.GetJSON(ctx, p.cache, "snapshot", snapshotKey(token), &snap) {
			out[token] = snap
			continue
		}
		misses = append(misses, token)
	}
	if len(misses) == 0 {
		return out, nil
	}

	quotes, err := p.birdeye.MultiPrice(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.workers)
	for _, token := range misses {
		g.Go(func() error {
			snap, ok := p.compose(ctx, token, quotes[token])
			if !ok {
				p.log.Debug().Str("token", token).Msg("no market data")
				return nil
			}
			cache.SetJSON(ctx, p.cache, snapshotKey(token), snap, p.snapshotTTL)
			mu.Lock()
			out[token] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// Snapshot returns the snapshot of one token.
func (p *Provider) Snapshot(ctx context.Context, token string) (domain.MarketSnapshot, error) {
	snaps, err := p.Snapshots(ctx, []string{token})
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	snap, ok := snaps[token]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot %s: %w", token, domain.ErrDataUnavailable)
	}
	return snap, nil
}

// compose merges Birdeye overview, Mobula extremes and Jupiter impact. The
// extremes and the impact are flagged as present only when their source answered.
func (p *Provider) compose(ctx context.Context, token string, quote PriceQuote) (domain.MarketSnapshot, bool) {
	snap := domain.MarketSnapshot{
		Address:        token,
		Price:          quote.Value,
		PriceChange24h: quote.PriceChange24h,
		BuySellRatio:   1,
		UpdatedAt:      p.now().UTC(),
	}
	answered := quote.Value > 0

	if ov, err := p.birdeye.TokenOverview(ctx, token); err != nil {
		p.log.Warn().Err(err).Str("token", token).Msg("token overview unavailable")
	} else {
		answered = true
		snap.Symbol = ov.Symbol
		if ov.Price > 0 {
			snap.Price = ov.Price
		}
		if ov.PriceChange24hPercent != 0 {
			snap.PriceChange24h = ov.PriceChange24hPercent
		}
		snap.Volume24h = ov.V24hUSD
		snap.VolumeChange24h = ov.V24hChangePercent
		snap.Liquidity = ov.Liquidity
		snap.MarketCap = ov.MarketCapUSD()
		snap.Holders = ov.Holder
		snap.BuySellRatio = ov.BuySellRatio()
	}

	if p.mobula != nil {
		if md, err := p.mobula.MarketData(ctx, token); err != nil {
			p.log.Debug().Err(err).Str("token", token).Msg("mobula market data unavailable")
		} else {
			answered = true
			if snap.Price == 0 {
				snap.Price = md.Price
			}
			if snap.Symbol == "" {
				snap.Symbol = md.Symbol
			}
			if snap.Liquidity == 0 {
				snap.Liquidity = md.Liquidity
			}
			if snap.MarketCap == 0 {
				snap.MarketCap = md.MarketCap
			}
			if snap.Volume24h == 0 {
				snap.Volume24h = md.Volume
			}
			if md.ATH > 0 && md.Price > 0 {
				snap.ATHChange = md.ATHChange()
				snap.ATLChange = md.ATLChange()
				snap.HasATH = true
			}
		}
	}

	if !answered || snap.Price <= 0 {
		return domain.MarketSnapshot{}, false
	}

	if p.impact != nil {
		if impact, err := p.impact.PriceImpact10k(ctx, token); err != nil {
			p.log.Warn().Err(err).Str("token", token).Msg("price impact unavailable")
		} else {
			snap.PriceImpact10k = impact
			snap.HasPriceImpact = true
		}
	}
	return snap, true
}

// Indicators computes technical indicators from recent candles.
func (p *Provider) Indicators(ctx context.Context, token string) (domain.TechnicalIndicators, error) {
	var ind domain.TechnicalIndicators
	if cache.GetJSON(ctx, p.cache, "indicators", indicatorKey(token), &ind) {
		return ind, nil
	}

	candles, err := p.analysisCandles(ctx, token)
	if err != nil {
		return ind, fmt.Errorf("indicators %s: %w: %v", token, domain.ErrDataUnavailable, err)
	}
	ind, err = indicators.Compute(candles)
	if err != nil {
		return ind, fmt.Errorf("indicators %s: %w: %v", token, domain.ErrDataUnavailable, err)
	}

	cache.SetJSON(ctx, p.cache, indicatorKey(token), ind, p.indicatorTTL)
	return ind, nil
}

func (p *Provider) analysisCandles(ctx context.Context, token string) ([]domain.Candle, error) {
	candles, err := p.Candles(ctx, token, "birdeye", p.candleInterval)
	if err == nil && len(candles) >= indicators.MinCandles {
		return candles, nil
	}
	if err != nil {
		p.log.Debug().Err(err).Str("token", token).Msg("birdeye ohlcv unavailable")
	}
	if p.mobula == nil {
		if err == nil {
			err = indicators.ErrInsufficientData
		}
		return nil, err
	}
	return p.Candles(ctx, token, "mobula", p.candleInterval)
}

// Candles returns the most recent candles of token from the named provider
// ("birdeye" or "mobula").
func (p *Provider) Candles(ctx context.Context, token, provider, timeframe string) ([]domain.Candle, error) {
	if timeframe == "" {
		timeframe = p.candleInterval
	}
	step, ok := timeframeDuration(timeframe)
	if !ok {
		return nil, fmt.Errorf("%w: timeframe %q", ErrUnsupported, timeframe)
	}

	switch strings.ToLower(provider) {
	case "", "birdeye":
		to := p.now()
		from := to.Add(-time.Duration(p.candleCount) * step)
		return p.birdeye.OHLCV(ctx, token, birdeyeInterval(timeframe), from, to)
	case "mobula":
		if p.mobula == nil {
			return nil, errors.New("mobula client not configured")
		}
		return p.mobula.OHLCV(ctx, token, strings.ToLower(timeframe), p.candleCount)
	default:
		return nil, fmt.Errorf("%w: provider %q", ErrUnsupported, provider)
	}
}

// Prices returns current USD prices for tokens in one request.
func (p *Provider) Prices(ctx context.Context, tokens []string) (map[string]float64, error) {
	quotes, err := p.birdeye.MultiPrice(ctx, dedupe(tokens))
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(quotes))
	for token, q := range quotes {
		out[token] = q.Value
	}
	return out, nil
}

// NewListings returns recently listed tokens from the Mobula pulse feed.
func (p *Provider) NewListings(ctx context.Context, q ListingQuery) ([]domain.NewToken, error) {
	if p.mobula == nil {
		return nil, errors.New("mobula client not configured")
	}
	return p.mobula.NewListings(ctx, q)
}

// WalletTokens returns the holdings of a wallet.
func (p *Provider) WalletTokens(ctx context.Context, wallet string) (*WalletPortfolio, error) {
	return p.birdeye.WalletTokens(ctx, wallet)
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

func timeframeDuration(tf string) (time.Duration, bool) {
	d, ok := timeframes[strings.ToLower(tf)]
	return d, ok
}

// birdeyeInterval upper-cases hour, day and week units ("1h" -> "1H").
func birdeyeInterval(tf string) string {
	tf = strings.ToLower(tf)
	if strings.HasSuffix(tf, "m") {
		return tf
	}
	return strings.ToUpper(tf)
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
