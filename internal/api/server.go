// Package api serves the assistant's HTTP API and mounts the WebSocket feed.
package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/execution"
	"solana-trading-assistant/internal/llm"
	"solana-trading-assistant/internal/marketdata"
	"solana-trading-assistant/internal/metrics"
	"solana-trading-assistant/internal/observability"
	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/storage"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultLLMTimeout     = 150 * time.Second
	DefaultBalance        = 1000.0
)

// SignalGenerator analyzes tokens into ranked signals.
type SignalGenerator interface {
	Generate(ctx context.Context, tokens []string) ([]domain.TradingSignal, error)
}

// TradeExecutor runs one signal.
type TradeExecutor interface {
	Execute(ctx context.Context, sig domain.TradingSignal, balance float64, dryRun bool) (*execution.Result, error)
}

// MarketData serves candles and new listings.
type MarketData interface {
	Candles(ctx context.Context, token, provider, timeframe string) ([]domain.Candle, error)
	NewListings(ctx context.Context, q marketdata.ListingQuery) ([]domain.NewToken, error)
}

// Advisor is the language-model client.
type Advisor interface {
	Chat(ctx context.Context, msg string, cc llm.ChatContext) (string, error)
	Recommend(ctx context.Context, tokens []domain.NewToken, max int) (*llm.Recommendations, error)
	AnalyzeOHLCV(ctx context.Context, token, name string, candles []domain.Candle) (*llm.OHLCVAnalysis, error)
}

// Portfolio exposes the ledger state.
type Portfolio interface {
	Summary() domain.LedgerSummary
}

// AlertFeed exposes recent risk alerts.
type AlertFeed interface {
	Recent(limit int) []domain.RiskAlert
	Count() int
}

// Wallets returns the token holdings of a wallet.
type Wallets interface {
	WalletTokens(ctx context.Context, wallet string) (*marketdata.WalletPortfolio, error)
}

// TokenAccounts reads SPL token account balances on chain.
type TokenAccounts interface {
	GetTokenAccountBalance(ctx context.Context, account string) (*solana.TokenAmount, error)
}

// PerformanceSource computes trade statistics over the journal.
type PerformanceSource interface {
	Compute(ctx context.Context, limit int) (*metrics.Performance, error)
	ComputeForToken(ctx context.Context, token string) (*metrics.Performance, error)
}

// Stream is the WebSocket hub mounted at /ws.
type Stream interface {
	http.Handler
	ClientCount() int
}

var (
	_ PerformanceSource = (*metrics.Aggregator)(nil)
	_ TradeExecutor     = (*execution.Executor)(nil)
	_ Advisor           = (*llm.Client)(nil)
	_ Wallets           = (*marketdata.Provider)(nil)
	_ TokenAccounts     = (*solana.HTTPClient)(nil)
)

// Options configures the Server. Optional collaborators that are nil make
// their routes answer 503.
type Options struct {
	Addr string

	// Required
	Signals   SignalGenerator
	Portfolio Portfolio

	// Optional
	Executor      TradeExecutor
	Market        MarketData
	Advisor       Advisor
	History       storage.SignalStore
	Trades        storage.TradeRecordStore
	Performance   PerformanceSource
	Alerts        AlertFeed
	Stream        Stream
	WalletBalance func(ctx context.Context) (float64, error)
	Wallets       Wallets
	TokenAccounts TokenAccounts

	APIKeys        []string
	Paper          bool
	Balance        float64
	RequestTimeout time.Duration
	LLMTimeout     time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

// Server is the HTTP API.
type Server struct {
	opts    Options
	router  *mux.Router
	server  *http.Server
	keys    map[string]struct{}
	started time.Time
	log     zerolog.Logger
	now     func() time.Time
}

// NewServer creates a Server with all routes registered.
func NewServer(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = DefaultLLMTimeout
	}
	if opts.Balance <= 0 {
		opts.Balance = DefaultBalance
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		keys:    make(map[string]struct{}, len(opts.APIKeys)),
		started: opts.Now(),
		log:     opts.Logger.With().Str("component", "api").Logger(),
		now:     opts.Now,
	}
	for _, k := range opts.APIKeys {
		if k != "" {
			s.keys[k] = struct{}{}
		}
	}
	s.routes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/status", s.timeout(s.handleStatus)).Methods(http.MethodGet)
	api.HandleFunc("/signals/analyze", s.timeout(s.handleAnalyze)).Methods(http.MethodPost)
	api.HandleFunc("/signals", s.timeout(s.handleSignals)).Methods(http.MethodGet)
	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.timeout(s.handleTrades)).Methods(http.MethodGet)
	api.HandleFunc("/performance", s.timeout(s.handlePerformance)).Methods(http.MethodGet)
	api.HandleFunc("/execute", s.timeout(s.handleExecute)).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.llmTimeout(s.handleChat)).Methods(http.MethodPost)
	api.HandleFunc("/tokens/new", s.timeout(s.handleNewTokens)).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{address}/ohlcv", s.llmTimeout(s.handleOHLCV)).Methods(http.MethodGet)
	api.HandleFunc("/trading/recommendations", s.llmTimeout(s.handleRecommendations)).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/wallet/{address}/tokens", s.timeout(s.handleWalletTokens)).Methods(http.MethodGet)
	if s.opts.Stream != nil {
		api.Handle("/ws", s.opts.Stream).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down http server")
		return s.server.Shutdown(shutdownCtx)
	}
}

type ctxKey int

const requestIDKey ctxKey = iota

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		s.log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// authMiddleware requires X-API-Key when keys are configured. The api_key
// query parameter is accepted for /ws since browsers cannot set headers there.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.keys) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" && r.URL.Path == "/ws" {
			key = r.URL.Query().Get("api_key")
		}
		if _, ok := s.keys[key]; !ok {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) timeout(h http.HandlerFunc) http.HandlerFunc {
	return withTimeout(s.opts.RequestTimeout, h)
}

func (s *Server) llmTimeout(h http.HandlerFunc) http.HandlerFunc {
	return withTimeout(s.opts.LLMTimeout, h)
}

func withTimeout(d time.Duration, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		h(w, r.WithContext(ctx))
	}
}

// responseWrapper captures the status code. It forwards Hijack so the
// WebSocket upgrade still works behind the logging middleware.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
