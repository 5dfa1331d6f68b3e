// Package llm talks to a local Ollama chat model for free-text answers,
// new-listing recommendations and OHLCV analysis.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/upstream"
)

const (
	DefaultURL   = "http://localhost:11434/api/chat"
	DefaultModel = "qwen3-coder:30b"

	// maxPromptTokens bounds the listing count sent in one prompt.
	maxPromptTokens = 50
	// maxPromptCandles bounds the candle count sent in one prompt.
	maxPromptCandles = 100
)

// Config configures a Client.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client is an Ollama chat client.
type Client struct {
	http  *upstream.Client
	url   string
	model string
	log   zerolog.Logger
}

// NewClient creates a Client. Model replies can be slow, so the default
// timeout is two minutes and failed calls are retried once.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		http: upstream.New(upstream.Config{
			Provider:   "ollama",
			Timeout:    cfg.Timeout,
			RPS:        2,
			MaxRetries: 1,
			Logger:     cfg.Logger,
		}),
		url:   cfg.URL,
		model: cfg.Model,
		log:   cfg.Logger.With().Str("component", "llm").Logger(),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
}

func (c *Client) complete(ctx context.Context, system, user string, jsonFormat bool) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if jsonFormat {
		req.Format = "json"
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, c.url, req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}

// ChatContext is the live state shared with the model in a chat.
type ChatContext struct {
	Portfolio        *domain.LedgerSummary  `json:"portfolio,omitempty"`
	LastTrade        *domain.TradeRecord    `json:"last_trade,omitempty"`
	WalletBalanceSOL *float64               `json:"wallet_balance_sol,omitempty"`
	RecentSignals    []domain.TradingSignal `json:"recent_signals,omitempty"`
}

const chatSystemPrompt = "You are a helpful assistant for a Solana trading bot. Be friendly and informative."

// Chat answers a free-text message with the given context.
func (c *Client) Chat(ctx context.Context, msg string, cc ChatContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "The user says: %q\n\n", msg)
	b.WriteString("Here is some real-time context you might find useful:\n")
	b.WriteString(indentJSON(cc))
	b.WriteString("\n\nPlease provide a helpful and concise response.")

	return c.complete(ctx, chatSystemPrompt, b.String(), false)
}

// Recommendation is the model's view of one new listing.
type Recommendation struct {
	TokenAddress    string                 `json:"token_address"`
	TokenName       string                 `json:"token_name"`
	TokenSymbol     string                 `json:"token_symbol"`
	Recommendation  string                 `json:"recommendation"` // STRONG_BUY, BUY, WATCH, AVOID
	ConfidenceScore Number                 `json:"confidence_score"`
	Reasoning       string                 `json:"reasoning"`
	KeyMetrics      map[string]interface{} `json:"key_metrics,omitempty"`
}

// Recommendations is the model's answer for a set of new listings.
type Recommendations struct {
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
	RiskWarning     string           `json:"risk_warning,omitempty"`
	RawResponse     string           `json:"raw_response,omitempty"`
	Error           string           `json:"error,omitempty"`
}

const recommendSystemPrompt = `You are an expert Solana DeFi analyst who identifies high-potential newly listed tokens.
Return a JSON object:
{
  "recommendations": [
    {
      "token_address": "string",
      "token_name": "string",
      "token_symbol": "string",
      "recommendation": "STRONG_BUY" | "BUY" | "WATCH" | "AVOID",
      "confidence_score": 0-100,
      "reasoning": "liquidity, volume, holders, price action and risk factors",
      "key_metrics": {"liquidity_usd": number, "price_usd": number, "volume_24h": number, "holders": number}
    }
  ],
  "summary": "overall market view",
  "risk_warning": "risks of trading new listings"
}
Prefer tokens with liquidity above $50k, organic volume, a growing holder base and no extreme pumps.
Rank recommendations by risk-adjusted potential.`

// Recommend asks for up to max recommendations among new listings. A reply
// that is not valid JSON yields an empty list with the raw text as summary.
func (c *Client) Recommend(ctx context.Context, tokens []domain.NewToken, max int) (*Recommendations, error) {
	if max <= 0 {
		max = 5
	}
	shown := tokens
	if len(shown) > maxPromptTokens {
		shown = shown[:maxPromptTokens]
	}

	user := fmt.Sprintf("I have fetched %d newly listed tokens on Solana:\n\n%s\n\n"+
		"Provide your top %d trading recommendations. Be cautious about pump-and-dump patterns.",
		len(tokens), indentJSON(shown), max)

	raw, err := c.complete(ctx, recommendSystemPrompt, user, true)
	if err != nil {
		return nil, err
	}

	var out Recommendations
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.log.Warn().Err(err).Msg("recommendation reply is not valid JSON")
		return &Recommendations{
			Recommendations: []Recommendation{},
			Summary:         raw,
			RawResponse:     raw,
			Error:           "model reply was not valid JSON",
		}, nil
	}
	if out.Recommendations == nil {
		out.Recommendations = []Recommendation{}
	}
	if len(out.Recommendations) > max {
		out.Recommendations = out.Recommendations[:max]
	}
	return &out, nil
}

// OHLCVAnalysis is the model's reading of a candle series.
type OHLCVAnalysis struct {
	TokenAddress string `json:"token_address"`
	TokenName    string `json:"token_name"`
	Analysis     struct {
		Trend            string   `json:"trend,omitempty"` // BULLISH, BEARISH, NEUTRAL, CONSOLIDATING
		Strength         Number   `json:"strength,omitempty"`
		PriceAction      string   `json:"price_action,omitempty"`
		VolumeAnalysis   string   `json:"volume_analysis,omitempty"`
		SupportLevels    []Number `json:"support_levels,omitempty"`
		ResistanceLevels []Number `json:"resistance_levels,omitempty"`
		KeyObservations  []string `json:"key_observations,omitempty"`
	} `json:"analysis"`
	TradingSignal struct {
		Action     string `json:"action"` // STRONG_BUY, BUY, HOLD, SELL, STRONG_SELL
		Confidence Number `json:"confidence"`
		EntryPrice Number `json:"entry_price"`
		StopLoss   Number `json:"stop_loss"`
		TakeProfit Number `json:"take_profit"`
		Reasoning  string `json:"reasoning"`
	} `json:"trading_signal"`
	RiskAssessment struct {
		RiskLevel   string   `json:"risk_level,omitempty"`
		Volatility  Number   `json:"volatility,omitempty"`
		RiskFactors []string `json:"risk_factors,omitempty"`
	} `json:"risk_assessment"`
	Error string `json:"error,omitempty"`
}

const ohlcvSystemPrompt = `You are an expert technical analyst of cryptocurrency candlestick (OHLCV) data.
Return a JSON object:
{
  "token_address": "string",
  "token_name": "string",
  "analysis": {
    "trend": "BULLISH" | "BEARISH" | "NEUTRAL" | "CONSOLIDATING",
    "strength": 0-100,
    "price_action": "string",
    "volume_analysis": "string",
    "support_levels": [number],
    "resistance_levels": [number],
    "key_observations": ["string"]
  },
  "trading_signal": {
    "action": "STRONG_BUY" | "BUY" | "HOLD" | "SELL" | "STRONG_SELL",
    "confidence": 0-100,
    "entry_price": number or null,
    "stop_loss": number or null,
    "take_profit": number or null,
    "reasoning": "string"
  },
  "risk_assessment": {
    "risk_level": "LOW" | "MEDIUM" | "HIGH" | "VERY_HIGH",
    "volatility": number,
    "risk_factors": ["string"]
  }
}
Be conservative. If the data is insufficient or unclear, recommend HOLD.`

// AnalyzeOHLCV asks the model to read candles. A reply that is not valid JSON
// yields a HOLD analysis carrying the raw text as reasoning.
func (c *Client) AnalyzeOHLCV(ctx context.Context, token, name string, candles []domain.Candle) (*OHLCVAnalysis, error) {
	shown := candles
	if len(shown) > maxPromptCandles {
		shown = shown[len(shown)-maxPromptCandles:]
	}

	user := fmt.Sprintf("OHLCV data for token %s (%s):\n\n%s\n\n"+
		"Give the trend, a trading signal with entry and exit points, a risk assessment, "+
		"and key support and resistance levels.", name, token, indentJSON(shown))

	raw, err := c.complete(ctx, ohlcvSystemPrompt, user, true)
	if err != nil {
		return nil, err
	}

	var out OHLCVAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.log.Warn().Err(err).Str("token", token).Msg("ohlcv analysis reply is not valid JSON")
		out = OHLCVAnalysis{Error: "model reply was not valid JSON"}
		out.TradingSignal.Action = "HOLD"
		out.TradingSignal.Reasoning = raw
	}
	if out.TokenAddress == "" {
		out.TokenAddress = token
	}
	if out.TokenName == "" {
		out.TokenName = name
	}
	if out.TradingSignal.Action == "" {
		out.TradingSignal.Action = "HOLD"
	}
	return &out, nil
}

// Number is a float the model may send as a number, a numeric string or null.
// Anything else decodes to zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	s = strings.TrimPrefix(strings.ReplaceAll(s, ",", ""), "$")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

func indentJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
