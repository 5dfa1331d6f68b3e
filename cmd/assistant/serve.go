package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"solana-trading-assistant/internal/alerts"
	"solana-trading-assistant/internal/api"
	"solana-trading-assistant/internal/config"
	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/execution"
	"solana-trading-assistant/internal/jupiter"
	"solana-trading-assistant/internal/llm"
	"solana-trading-assistant/internal/metrics"
	"solana-trading-assistant/internal/portfolio"
	"solana-trading-assistant/internal/scheduler"
	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/stream"
)

const lamportsPerSOL = 1e9

func newServeCmd(flags *rootFlags) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, WebSocket streams and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrate, logger)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before starting")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool, logger zerolog.Logger) error {
	started := time.Now()

	st, cleanup, err := createStores(ctx, cfg.Storage, migrate)
	if err != nil {
		return err
	}
	defer cleanup()

	ledger := portfolio.NewLedger()
	monitor := alerts.NewMonitor(alerts.Options{
		Limits:     cfg.Risk,
		BufferSize: cfg.Alerts.BufferSize,
		Cooldown:   cfg.Alerts.Cooldown,
		Logger:     logger,
	})

	// The hub is created first so the assembler can publish into it. Its
	// market data callback is bound once the provider exists.
	var an *analysis
	hub := stream.NewHub(stream.Options{
		MarketData: func(ctx context.Context) (map[string]domain.MarketSnapshot, error) {
			tokens := tracked(cfg.Trading.Watchlist, ledger.Tokens())
			if len(tokens) == 0 {
				return map[string]domain.MarketSnapshot{}, nil
			}
			return an.provider.Snapshots(ctx, tokens)
		},
		Portfolio: ledger.Summary,
		Alerts:    monitor,
		Status: func() interface{} {
			s := ledger.Summary()
			return map[string]interface{}{
				"status":          "running",
				"paper":           cfg.Trading.Paper,
				"network":         cfg.Solana.Network,
				"uptime_seconds":  int64(time.Since(started).Seconds()),
				"positions":       s.TotalPositions,
				"portfolio_value": s.TotalValueUSD,
				"alerts_total":    monitor.Count(),
			}
		},
		MarketDataInterval: cfg.Streams.MarketData,
		SignalsInterval:    cfg.Streams.Signals,
		PortfolioInterval:  cfg.Streams.Portfolio,
		AlertsInterval:     cfg.Streams.Alerts,
		SendBuffer:         cfg.Streams.SendBuffer,
		Logger:             logger,
	})

	an, err = newAnalysis(ctx, cfg, st.signals, hub, logger)
	if err != nil {
		return err
	}
	defer an.close()

	var rpcOpts []solana.ClientOption
	if cfg.Solana.Commitment != "" {
		rpcOpts = append(rpcOpts, solana.WithCommitment(cfg.Solana.Commitment))
	}
	rpc := solana.NewHTTPClient(cfg.RPCURL(), rpcOpts...)

	swapper, wallet, closeSolana, err := newSwapper(ctx, cfg, an.jupiter, rpc, logger)
	if err != nil {
		return err
	}
	defer closeSolana()

	executor := execution.NewExecutor(execution.Options{
		Validator:                execution.NewValidator(cfg.Risk, logger),
		Ledger:                   ledger,
		Swapper:                  swapper,
		Prices:                   an.jupiter,
		Journal:                  st.trades,
		Paper:                    cfg.Trading.Paper,
		SwapTimeout:              cfg.Trading.SwapTimeout,
		SlippageBps:              cfg.Trading.SlippageBps,
		PriorityFeeMicroLamports: cfg.Trading.PriorityFeeMicroLamports,
		TokenDecimals:            cfg.Trading.TokenDecimals,
		Logger:                   logger,
	})

	sched, err := scheduler.New(scheduler.Options{
		Specs:     cfg.Scheduler,
		Ledger:    ledger,
		Prices:    an.provider,
		Market:    an.provider,
		Signals:   an.assembler,
		Alerts:    monitor,
		Snapshots: st.snapshots,
		Watchlist: cfg.Trading.Watchlist,
		Balance:   cfg.Trading.Balance,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	advisor := llm.NewClient(llm.Config{
		URL:     cfg.Ollama.URL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
		Logger:  logger,
	})

	server := api.NewServer(api.Options{
		Addr:           cfg.Server.Addr,
		Signals:        an.assembler,
		Portfolio:      ledger,
		Executor:       executor,
		Market:         an.provider,
		Advisor:        advisor,
		History:        st.signals,
		Trades:         st.trades,
		Performance:    metrics.NewAggregator(st.trades),
		Alerts:         monitor,
		Stream:         hub,
		WalletBalance:  wallet,
		Wallets:        an.provider,
		TokenAccounts:  rpc,
		APIKeys:        cfg.Server.APIKeys,
		Paper:          cfg.Trading.Paper,
		Balance:        cfg.Trading.Balance,
		RequestTimeout: cfg.Server.RequestTimeout,
		LLMTimeout:     cfg.Server.LLMTimeout,
		Logger:         logger,
	})

	logger.Info().
		Str("network", cfg.Solana.Network).
		Bool("paper", cfg.Trading.Paper).
		Bool("memory_storage", cfg.Storage.UseMemory).
		Int("watchlist", len(cfg.Trading.Watchlist)).
		Msg("trading assistant starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// newSwapper returns the paper swapper, or the live swapper bound to the
// configured keypair. The wallet balance callback is nil without a keypair.
func newSwapper(ctx context.Context, cfg *config.Config, jup *jupiter.Client, rpc *solana.HTTPClient, logger zerolog.Logger) (execution.Swapper, func(context.Context) (float64, error), func(), error) {
	noop := func() {}
	if cfg.Solana.PrivateKey == "" {
		return jupiter.NewPaperSwapper(), nil, noop, nil
	}

	kp, err := solana.ParseKeypair(cfg.Solana.PrivateKey)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("private key: %w", err)
	}

	wallet := func(ctx context.Context) (float64, error) {
		lamports, err := rpc.GetBalance(ctx, kp.Address())
		if err != nil {
			return 0, err
		}
		return float64(lamports) / lamportsPerSOL, nil
	}
	logger.Info().Str("wallet", kp.Address()).Msg("keypair loaded")

	if cfg.Trading.Paper {
		return jupiter.NewPaperSwapper(), wallet, noop, nil
	}

	// Without a WebSocket the live swapper polls signature statuses.
	var ws solana.WSClient
	closeWS := noop
	wsCfg := solana.DefaultWSConfig()
	if cfg.Solana.Commitment != "" {
		wsCfg.Commitment = cfg.Solana.Commitment
	}
	wsCfg.Logger = logger
	wsClient, err := solana.NewWSClient(ctx, cfg.WSURL(), &wsCfg)
	if err != nil {
		logger.Warn().Err(err).Str("endpoint", cfg.WSURL()).Msg("websocket unavailable, confirming by polling")
	} else {
		ws = wsClient
		closeWS = func() { wsClient.Close() }
	}

	live, err := jupiter.NewLiveSwapper(jupiter.LiveSwapperOptions{
		Jupiter:        jup,
		RPC:            rpc,
		WS:             ws,
		Keypair:        kp,
		ConfirmTimeout: cfg.Trading.ConfirmTimeout,
		Logger:         logger,
	})
	if err != nil {
		closeWS()
		return nil, nil, noop, err
	}
	return live, wallet, closeWS, nil
}

// tracked merges the watchlist with held tokens, preserving order.
func tracked(watchlist, held []string) []string {
	seen := make(map[string]bool, len(watchlist)+len(held))
	out := make([]string, 0, len(watchlist)+len(held))
	for _, list := range [][]string{watchlist, held} {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
