package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trading-assistant/internal/alerts"
	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/execution"
	"solana-trading-assistant/internal/llm"
	"solana-trading-assistant/internal/marketdata"
	"solana-trading-assistant/internal/metrics"
	"solana-trading-assistant/internal/portfolio"
	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/storage/memory"
)

const (
	tokenUSDC = solana.USDCMint
	tokenBonk = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

type fakeSignals struct {
	signals []domain.TradingSignal
	err     error
	calls   [][]string
}

func (f *fakeSignals) Generate(_ context.Context, tokens []string) ([]domain.TradingSignal, error) {
	f.calls = append(f.calls, tokens)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.TradingSignal
	for _, s := range f.signals {
		for _, t := range tokens {
			if s.TokenAddress == t {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

type fakeExecutor struct {
	status domain.TradeStatus
	err    error
	dryRun bool
	bal    float64
}

func (f *fakeExecutor) Execute(_ context.Context, sig domain.TradingSignal, balance float64, dryRun bool) (*execution.Result, error) {
	f.dryRun, f.bal = dryRun, balance
	status := f.status
	if dryRun && f.err == nil {
		status = domain.TradeStatusValidated
	}
	res := &execution.Result{Status: status, Signal: sig, AmountUSD: balance * sig.PositionSize}
	if f.err != nil {
		res.Reason = "confidence too low"
	}
	if status == domain.TradeStatusExecuted {
		res.TxID = "paper-abc"
	}
	return res, f.err
}

type fakeMarket struct {
	candles  []domain.Candle
	listings []domain.NewToken
	err      error
}

func (f *fakeMarket) Candles(_ context.Context, token, provider, timeframe string) ([]domain.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeMarket) NewListings(_ context.Context, q marketdata.ListingQuery) ([]domain.NewToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

type fakeAdvisor struct {
	lastChat llm.ChatContext
	maxRecs  int
}

func (f *fakeAdvisor) Chat(_ context.Context, msg string, cc llm.ChatContext) (string, error) {
	f.lastChat = cc
	return "echo: " + msg, nil
}

func (f *fakeAdvisor) Recommend(_ context.Context, tokens []domain.NewToken, max int) (*llm.Recommendations, error) {
	f.maxRecs = max
	return &llm.Recommendations{
		Recommendations: []llm.Recommendation{{TokenAddress: tokens[0].Address, Recommendation: "WATCH"}},
		Summary:         "quiet market",
	}, nil
}

func (f *fakeAdvisor) AnalyzeOHLCV(_ context.Context, token, name string, candles []domain.Candle) (*llm.OHLCVAnalysis, error) {
	a := &llm.OHLCVAnalysis{TokenAddress: token, TokenName: name}
	a.TradingSignal.Action = "HOLD"
	return a, nil
}

type fakeWallets struct {
	lastAccount string
}

func (f *fakeWallets) WalletTokens(_ context.Context, wallet string) (*marketdata.WalletPortfolio, error) {
	return &marketdata.WalletPortfolio{
		Wallet:   wallet,
		TotalUSD: 42,
		Items:    []marketdata.WalletToken{{Address: tokenUSDC, Symbol: "USDC", Decimals: 6, UIAmount: 42, PriceUSD: 1, ValueUSD: 42}},
	}, nil
}

func (f *fakeWallets) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	f.lastAccount = account
	return &solana.TokenAmount{Amount: "1500000", Decimals: 6, UIAmount: 1.5}, nil
}

type testEnv struct {
	server   *Server
	signals  *fakeSignals
	executor *fakeExecutor
	market   *fakeMarket
	advisor  *fakeAdvisor
	ledger   *portfolio.Ledger
	trades   *memory.TradeRecordStore
	history  *memory.SignalStore
	monitor  *alerts.Monitor
	wallets  *fakeWallets
}

func newTestEnv(t *testing.T, keys ...string) *testEnv {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{
		signals: &fakeSignals{signals: []domain.TradingSignal{
			{ID: "s1", TokenAddress: tokenUSDC, Action: domain.ActionBuy, Confidence: 82, PositionSize: 0.1, EntryPrice: 1},
		}},
		executor: &fakeExecutor{status: domain.TradeStatusExecuted},
		market: &fakeMarket{
			candles:  []domain.Candle{{Time: now, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}},
			listings: []domain.NewToken{{Address: tokenBonk, Name: "Bonk", Symbol: "BONK"}},
		},
		advisor: &fakeAdvisor{},
		ledger:  portfolio.NewLedger(),
		trades:  memory.NewTradeRecordStore(),
		history: memory.NewSignalStore(),
		monitor: alerts.NewMonitor(alerts.Options{Logger: zerolog.Nop(), Now: func() time.Time { return now }}),
		wallets: &fakeWallets{},
	}
	env.server = NewServer(Options{
		Signals:       env.signals,
		Portfolio:     env.ledger,
		Executor:      env.executor,
		Market:        env.market,
		Advisor:       env.advisor,
		History:       env.history,
		Trades:        env.trades,
		Performance:   metrics.NewAggregator(env.trades),
		Alerts:        env.monitor,
		Wallets:       env.wallets,
		TokenAccounts: env.wallets,
		APIKeys:       keys,
		Paper:         true,
		Balance:       500,
		Logger:        zerolog.Nop(),
		Now:           func() time.Time { return now },
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, "secret")

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_APIKey(t *testing.T) {
	env := newTestEnv(t, "secret")

	rec := env.do(t, http.MethodGet, "/portfolio", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var e errorResponse
	decode(t, rec, &e)
	assert.NotEmpty(t, e.Error)

	rec = env.do(t, http.MethodGet, "/portfolio", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/portfolio", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// query parameter only counts for /ws
	rec = env.do(t, http.MethodGet, "/portfolio?api_key=secret", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_Analyze(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/signals/analyze", analyzeRequest{Tokens: []string{tokenUSDC, tokenBonk}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp analyzeResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, tokenUSDC, resp.Signals[0].TokenAddress)
	assert.Len(t, env.signals.calls, 1)

	rec = env.do(t, http.MethodPost, "/signals/analyze", analyzeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/signals/analyze", analyzeRequest{Tokens: []string{"not-an-address"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/signals/analyze", map[string]string{"unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.signals.err = errors.New("birdeye down")
	rec = env.do(t, http.MethodPost, "/signals/analyze", analyzeRequest{Tokens: []string{tokenUSDC}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_Execute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/execute", executeRequest{Token: tokenUSDC, Balance: 1000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp executeResponse
	decode(t, rec, &resp)
	assert.Equal(t, "executed", resp.Status)
	assert.Equal(t, "paper-abc", resp.TxID)
	assert.InDelta(t, 100, resp.AmountUSD, 1e-9)
	assert.True(t, resp.Paper)

	rec = env.do(t, http.MethodPost, "/execute", executeRequest{Token: tokenUSDC, DryRun: true})
	decode(t, rec, &resp)
	assert.Equal(t, "validated", resp.Status)
	assert.True(t, env.executor.dryRun)
	assert.Equal(t, 500.0, env.executor.bal, "zero balance falls back to the configured one")

	env.executor.status = domain.TradeStatusRejected
	env.executor.err = fmt.Errorf("%w: confidence too low", execution.ErrRejected)
	rec = env.do(t, http.MethodPost, "/execute", executeRequest{Token: tokenUSDC, Balance: 1000})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "confidence too low", resp.Reason)

	env.executor.status = domain.TradeStatusFailed
	env.executor.err = fmt.Errorf("%w: timeout", execution.ErrExecutionFailed)
	rec = env.do(t, http.MethodPost, "/execute", executeRequest{Token: tokenUSDC, Balance: 1000})
	decode(t, rec, &resp)
	assert.Equal(t, "failed", resp.Status)

	rec = env.do(t, http.MethodPost, "/execute", executeRequest{Token: tokenBonk, Balance: 1000})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/execute", executeRequest{Token: tokenUSDC, Balance: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_TradesAndPerformance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, env.trades.Insert(ctx, &domain.TradeRecord{
		TradeID: "t1", TokenAddress: tokenUSDC, Action: domain.ActionBuy,
		Status: domain.TradeStatusExecuted, AmountUSD: 100, Confidence: 80, CreatedAt: base,
	}))
	require.NoError(t, env.trades.Insert(ctx, &domain.TradeRecord{
		TradeID: "t2", TokenAddress: tokenUSDC, Action: domain.ActionSell,
		Status: domain.TradeStatusExecuted, AmountUSD: 50, Confidence: 60, RealizedPnL: 12,
		CreatedAt: base.Add(time.Hour),
	}))

	rec := env.do(t, http.MethodGet, "/trades?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades struct {
		Count  int                   `json:"count"`
		Trades []*domain.TradeRecord `json:"trades"`
	}
	decode(t, rec, &trades)
	require.Equal(t, 1, trades.Count)
	assert.Equal(t, "t2", trades.Trades[0].TradeID)

	rec = env.do(t, http.MethodGet, "/trades?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var perf metrics.Performance
	decode(t, rec, &perf)
	assert.Equal(t, 2, perf.TotalTrades)
	assert.Equal(t, 2, perf.SuccessfulTrades)
	assert.InDelta(t, 12, perf.TotalPnL, 1e-9)

	rec = env.do(t, http.MethodGet, "/performance?token="+tokenBonk, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perf = metrics.Performance{}
	decode(t, rec, &perf)
	assert.Equal(t, 0, perf.TotalTrades)

	rec = env.do(t, http.MethodGet, "/performance?token=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SignalsHistory(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.history.InsertBulk(context.Background(), []domain.TradingSignal{
		{ID: "a", TokenAddress: tokenUSDC, CreatedAt: time.Unix(100, 0)},
		{ID: "b", TokenAddress: tokenBonk, CreatedAt: time.Unix(200, 0)},
	}))

	rec := env.do(t, http.MethodGet, "/signals?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp analyzeResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Signals, 1)
	assert.Equal(t, "b", resp.Signals[0].ID)
}

func TestServer_Status(t *testing.T) {
	env := newTestEnv(t)
	env.monitor.Raise(domain.RiskAlert{Type: domain.AlertLiquidity, Severity: domain.SeverityMedium, TokenAddress: tokenBonk})
	env.server.opts.WalletBalance = func(context.Context) (float64, error) { return 2.5, nil }

	rec := env.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	decode(t, rec, &resp)
	assert.Equal(t, "running", resp.Status)
	assert.True(t, resp.Paper)
	assert.Equal(t, 1, resp.AlertsTotal)
	assert.Len(t, resp.RecentAlerts, 1)
	require.NotNil(t, resp.WalletBalanceSOL)
	assert.Equal(t, 2.5, *resp.WalletBalanceSOL)
	assert.NotNil(t, resp.Performance)
}

func TestServer_Chat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/chat", chatRequest{Message: "how am I doing?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	decode(t, rec, &resp)
	assert.Equal(t, "echo: how am I doing?", resp.Response)
	assert.NotNil(t, env.advisor.lastChat.Portfolio)

	rec = env.do(t, http.MethodPost, "/chat", chatRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_NewTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/tokens/new?limit=10&pool_types=pumpfun", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count  int               `json:"count"`
		Limit  int               `json:"limit"`
		Tokens []domain.NewToken `json:"tokens"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 10, resp.Limit)

	rec = env.do(t, http.MethodGet, "/tokens/new?limit=101", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.market.err = errors.New("pulse down")
	rec = env.do(t, http.MethodGet, "/tokens/new", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_OHLCV(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/tokens/"+tokenBonk+"/ohlcv?provider=mobula&timeframe=1h&analyze=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ohlcvResponse
	decode(t, rec, &resp)
	assert.Equal(t, "mobula", resp.Provider)
	assert.Equal(t, 1, resp.Count)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "HOLD", resp.Analysis.TradingSignal.Action)

	rec = env.do(t, http.MethodGet, "/tokens/"+tokenBonk+"/ohlcv?provider=coingecko", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.market.err = fmt.Errorf("%w: timeframe %q", marketdata.ErrUnsupported, "7m")
	rec = env.do(t, http.MethodGet, "/tokens/"+tokenBonk+"/ohlcv?timeframe=7m", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.market.err = fmt.Errorf("ohlcv: %w", domain.ErrDataUnavailable)
	rec = env.do(t, http.MethodGet, "/tokens/"+tokenBonk+"/ohlcv", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Recommendations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/trading/recommendations?max_recommendations=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp recommendationsResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.TokensAnalyzed)
	assert.Len(t, resp.Recommendations, 1)
	assert.Equal(t, 3, env.advisor.maxRecs)

	env.market.listings = nil
	rec = env.do(t, http.MethodGet, "/trading/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Empty(t, resp.Recommendations)
	assert.NotEmpty(t, resp.Error)

	rec = env.do(t, http.MethodGet, "/trading/recommendations?max_recommendations=11", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Alerts(t *testing.T) {
	env := newTestEnv(t)
	env.monitor.Raise(domain.RiskAlert{Type: domain.AlertLiquidity, Severity: domain.SeverityMedium, TokenAddress: tokenBonk})
	env.monitor.Raise(domain.RiskAlert{Type: domain.AlertVolatility, Severity: domain.SeverityHigh, TokenAddress: tokenBonk})

	rec := env.do(t, http.MethodGet, "/alerts?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count  int                `json:"count"`
		Alerts []domain.RiskAlert `json:"alerts"`
	}
	decode(t, rec, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, domain.AlertVolatility, resp.Alerts[0].Type)
}

func TestServer_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e errorResponse
	decode(t, rec, &e)
	assert.Equal(t, "not found", e.Error)
}

func TestServer_WalletTokens(t *testing.T) {
	env := newTestEnv(t)
	kp, err := solana.NewKeypairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	wallet := kp.Address()

	rec := env.do(t, http.MethodGet, "/wallet/"+wallet+"/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings marketdata.WalletPortfolio
	decode(t, rec, &holdings)
	assert.Equal(t, wallet, holdings.Wallet)
	require.Len(t, holdings.Items, 1)
	assert.Equal(t, "USDC", holdings.Items[0].Symbol)

	rec = env.do(t, http.MethodGet, "/wallet/"+wallet+"/tokens?mint="+tokenUSDC, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var acct tokenAccountResponse
	decode(t, rec, &acct)
	ata, err := solana.AssociatedTokenAddress(wallet, tokenUSDC)
	require.NoError(t, err)
	assert.Equal(t, ata, acct.TokenAccount)
	assert.Equal(t, ata, env.wallets.lastAccount)
	assert.Equal(t, "1500000", acct.Amount)
	assert.InDelta(t, 1.5, acct.UIAmount, 1e-9)

	// Associated token accounts are off curve and cannot be wallets.
	rec = env.do(t, http.MethodGet, "/wallet/"+ata+"/tokens", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/wallet/"+wallet+"/tokens?mint=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
