package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/execution"
	"solana-trading-assistant/internal/llm"
	"solana-trading-assistant/internal/marketdata"
	"solana-trading-assistant/internal/metrics"
	"solana-trading-assistant/internal/solana"
)

const (
	maxAnalyzeTokens  = 100
	defaultListLimit  = 50
	maxListLimit      = 500
	statusAlertsShown = 5
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Status           string               `json:"status"`
	Timestamp        time.Time            `json:"timestamp"`
	UptimeSeconds    float64              `json:"uptime_seconds"`
	Paper            bool                 `json:"paper_trading"`
	ConnectedClients int                  `json:"connected_clients"`
	Positions        int                  `json:"positions"`
	PortfolioValue   float64              `json:"portfolio_value_usd"`
	DailyPnL         float64              `json:"daily_pnl"`
	AlertsTotal      int                  `json:"alerts_total"`
	RecentAlerts     []domain.RiskAlert   `json:"recent_alerts"`
	Performance      *metrics.Performance `json:"performance,omitempty"`
	WalletBalanceSOL *float64             `json:"wallet_balance_sol,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	sum := s.opts.Portfolio.Summary()
	resp := statusResponse{
		Status:         "running",
		Timestamp:      now.UTC(),
		UptimeSeconds:  now.Sub(s.started).Seconds(),
		Paper:          s.opts.Paper,
		Positions:      sum.TotalPositions,
		PortfolioValue: sum.TotalValueUSD,
		DailyPnL:       sum.DailyPnL,
		RecentAlerts:   []domain.RiskAlert{},
	}
	if s.opts.Stream != nil {
		resp.ConnectedClients = s.opts.Stream.ClientCount()
	}
	if s.opts.Alerts != nil {
		resp.AlertsTotal = s.opts.Alerts.Count()
		resp.RecentAlerts = s.opts.Alerts.Recent(statusAlertsShown)
	}
	if s.opts.Performance != nil {
		if perf, err := s.opts.Performance.Compute(r.Context(), 0); err != nil {
			s.log.Warn().Err(err).Msg("status performance")
		} else {
			resp.Performance = perf
		}
	}
	resp.WalletBalanceSOL = s.walletBalance(r)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) walletBalance(r *http.Request) *float64 {
	if s.opts.WalletBalance == nil {
		return nil
	}
	bal, err := s.opts.WalletBalance(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("wallet balance")
		return nil
	}
	return &bal
}

type analyzeRequest struct {
	Tokens []string `json:"tokens"`
}

type analyzeResponse struct {
	Count   int                    `json:"count"`
	Signals []domain.TradingSignal `json:"signals"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Tokens) == 0 {
		writeError(w, http.StatusBadRequest, "tokens must not be empty")
		return
	}
	if len(req.Tokens) > maxAnalyzeTokens {
		writeError(w, http.StatusBadRequest, "too many tokens")
		return
	}
	for _, t := range req.Tokens {
		if err := solana.ValidateAddress(t); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	signals, err := s.opts.Signals.Generate(r.Context(), req.Tokens)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Count: len(signals), Signals: signals})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusServiceUnavailable, "signal history not configured")
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	signals, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []domain.TradingSignal{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Count: len(signals), Signals: signals})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Portfolio.Summary())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.opts.Trades == nil {
		writeError(w, http.StatusServiceUnavailable, "trade journal not configured")
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades, err := s.opts.Trades.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []*domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(trades), "trades": trades})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if s.opts.Performance == nil {
		writeError(w, http.StatusServiceUnavailable, "trade journal not configured")
		return
	}
	var (
		perf *metrics.Performance
		err  error
	)
	if token := r.URL.Query().Get("token"); token != "" {
		if verr := solana.ValidateAddress(token); verr != nil {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		perf, err = s.opts.Performance.ComputeForToken(r.Context(), token)
	} else {
		perf, err = s.opts.Performance.Compute(r.Context(), 0)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, perf)
}

type executeRequest struct {
	Token   string  `json:"token"`
	Balance float64 `json:"balance"`
	DryRun  bool    `json:"dry_run"`
}

type executeResponse struct {
	Status    string               `json:"status"`
	Signal    domain.TradingSignal `json:"signal"`
	AmountUSD float64              `json:"amount_usd"`
	BaseUnits string               `json:"amount_base_units,omitempty"`
	TxID      string               `json:"tx_id,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Position  *domain.Position     `json:"position,omitempty"`
	Paper     bool                 `json:"paper"`
}

// handleExecute analyzes one token and runs the executor on its signal.
// Every executor outcome is a 200 with a distinct status.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.opts.Executor == nil {
		writeError(w, http.StatusServiceUnavailable, "executor not configured")
		return
	}
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := solana.ValidateAddress(req.Token); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Balance < 0 {
		writeError(w, http.StatusBadRequest, "balance must not be negative")
		return
	}
	if req.Balance == 0 {
		req.Balance = s.opts.Balance
	}

	signals, err := s.opts.Signals.Generate(r.Context(), []string{req.Token})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if len(signals) == 0 {
		writeError(w, http.StatusNotFound, "no signal for token "+req.Token)
		return
	}

	res, err := s.opts.Executor.Execute(r.Context(), signals[0], req.Balance, req.DryRun)
	if err != nil && !errors.Is(err, execution.ErrRejected) && !errors.Is(err, execution.ErrExecutionFailed) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Status:    strings.ToLower(string(res.Status)),
		Signal:    res.Signal,
		AmountUSD: res.AmountUSD,
		BaseUnits: res.BaseUnits,
		TxID:      res.TxID,
		Reason:    res.Reason,
		Position:  res.Position,
		Paper:     s.opts.Paper,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response  string          `json:"response"`
	Context   llm.ChatContext `json:"context"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.Advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "language model not configured")
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	cc := s.chatContext(r)
	reply, err := s.opts.Advisor.Chat(r.Context(), req.Message, cc)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply, Context: cc, Timestamp: s.now().UTC()})
}

func (s *Server) chatContext(r *http.Request) llm.ChatContext {
	sum := s.opts.Portfolio.Summary()
	cc := llm.ChatContext{Portfolio: &sum, WalletBalanceSOL: s.walletBalance(r)}

	if s.opts.Trades != nil {
		if trades, err := s.opts.Trades.Recent(r.Context(), 1); err == nil && len(trades) > 0 {
			cc.LastTrade = trades[0]
		}
	}
	if s.opts.History != nil {
		if signals, err := s.opts.History.Recent(r.Context(), 5); err == nil {
			cc.RecentSignals = signals
		}
	}
	return cc
}

func listingQuery(r *http.Request, defLimit int) (marketdata.ListingQuery, error) {
	limit, err := intParam(r, "limit", defLimit, 1, marketdata.MaxListings)
	if err != nil {
		return marketdata.ListingQuery{}, err
	}
	offset, err := intParam(r, "offset", 0, 0, 1_000_000)
	if err != nil {
		return marketdata.ListingQuery{}, err
	}
	q := marketdata.ListingQuery{Limit: limit, Offset: offset}
	if pt := r.URL.Query().Get("pool_types"); pt != "" {
		for _, p := range strings.Split(pt, ",") {
			if p = strings.TrimSpace(p); p != "" {
				q.PoolTypes = append(q.PoolTypes, p)
			}
		}
	}
	return q, nil
}

func (s *Server) handleNewTokens(w http.ResponseWriter, r *http.Request) {
	if s.opts.Market == nil {
		writeError(w, http.StatusServiceUnavailable, "market data not configured")
		return
	}
	q, err := listingQuery(r, marketdata.MaxListings)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokens, err := s.opts.Market.NewListings(r.Context(), q)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if tokens == nil {
		tokens = []domain.NewToken{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"limit":  q.Limit,
		"offset": q.Offset,
		"count":  len(tokens),
		"tokens": tokens,
	})
}

type ohlcvResponse struct {
	TokenAddress string             `json:"token_address"`
	Timeframe    string             `json:"timeframe"`
	Provider     string             `json:"provider"`
	Count        int                `json:"count"`
	Candles      []domain.Candle    `json:"candles"`
	Analysis     *llm.OHLCVAnalysis `json:"llm_analysis,omitempty"`
}

func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	if s.opts.Market == nil {
		writeError(w, http.StatusServiceUnavailable, "market data not configured")
		return
	}
	address := mux.Vars(r)["address"]
	if err := solana.ValidateAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	provider := strings.ToLower(q.Get("provider"))
	if provider == "" {
		provider = "birdeye"
	}
	if provider != "birdeye" && provider != "mobula" {
		writeError(w, http.StatusBadRequest, "provider must be 'birdeye' or 'mobula'")
		return
	}
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = "1d"
	}

	candles, err := s.opts.Market.Candles(r.Context(), address, provider, timeframe)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	resp := ohlcvResponse{
		TokenAddress: address,
		Timeframe:    timeframe,
		Provider:     provider,
		Count:        len(candles),
		Candles:      candles,
	}

	if boolParam(r, "analyze") {
		if s.opts.Advisor == nil {
			writeError(w, http.StatusServiceUnavailable, "language model not configured")
			return
		}
		analysis, err := s.opts.Advisor.AnalyzeOHLCV(r.Context(), address, address, candles)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		resp.Analysis = analysis
	}
	writeJSON(w, http.StatusOK, resp)
}

type recommendationsResponse struct {
	TokensAnalyzed  int                  `json:"tokens_analyzed"`
	Recommendations []llm.Recommendation `json:"recommendations"`
	Summary         string               `json:"summary"`
	RiskWarning     string               `json:"risk_warning,omitempty"`
	Error           string               `json:"error,omitempty"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.opts.Market == nil || s.opts.Advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "market data or language model not configured")
		return
	}
	q, err := listingQuery(r, defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxRecs, err := intParam(r, "max_recommendations", 5, 1, 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens, err := s.opts.Market.NewListings(r.Context(), q)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if len(tokens) == 0 {
		writeJSON(w, http.StatusOK, recommendationsResponse{
			Recommendations: []llm.Recommendation{},
			Summary:         "No newly listed tokens available for analysis.",
			Error:           "no tokens found",
		})
		return
	}

	recs, err := s.opts.Advisor.Recommend(r.Context(), tokens, maxRecs)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	list := recs.Recommendations
	if list == nil {
		list = []llm.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		TokensAnalyzed:  len(tokens),
		Recommendations: list,
		Summary:         recs.Summary,
		RiskWarning:     recs.RiskWarning,
		Error:           recs.Error,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.opts.Alerts == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": 0, "alerts": []domain.RiskAlert{}})
		return
	}
	limit, err := intParam(r, "limit", 20, 1, maxListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alerts := s.opts.Alerts.Recent(limit)
	if alerts == nil {
		alerts = []domain.RiskAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(alerts), "alerts": alerts})
}

type tokenAccountResponse struct {
	Wallet       string  `json:"wallet"`
	Mint         string  `json:"mint"`
	TokenAccount string  `json:"token_account"`
	Amount       string  `json:"amount"`
	Decimals     uint8   `json:"decimals"`
	UIAmount     float64 `json:"ui_amount"`
}

// handleWalletTokens returns Birdeye holdings, or with ?mint= the on-chain
// balance of the wallet's associated token account for that mint.
func (s *Server) handleWalletTokens(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["address"]
	if err := solana.ValidateWalletAddress(wallet); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mint := r.URL.Query().Get("mint")
	if mint == "" {
		if s.opts.Wallets == nil {
			writeError(w, http.StatusServiceUnavailable, "wallet data not configured")
			return
		}
		p, err := s.opts.Wallets.WalletTokens(r.Context(), wallet)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	if s.opts.TokenAccounts == nil {
		writeError(w, http.StatusServiceUnavailable, "solana rpc not configured")
		return
	}
	ata, err := solana.AssociatedTokenAddress(wallet, mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := s.opts.TokenAccounts.GetTokenAccountBalance(r.Context(), ata)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenAccountResponse{
		Wallet:       wallet,
		Mint:         mint,
		TokenAccount: ata,
		Amount:       bal.Amount,
		Decimals:     bal.Decimals,
		UIAmount:     bal.UIAmount,
	})
}
