// Package config loads the assistant configuration from YAML, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/jupiter"
	"solana-trading-assistant/internal/llm"
	"solana-trading-assistant/internal/marketdata"
	"solana-trading-assistant/internal/scheduler"
	"solana-trading-assistant/internal/solana"
	"solana-trading-assistant/internal/stream"
)

// Solana networks.
const (
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"

	DefaultDevnetRPCURL  = "https://api.devnet.solana.com"
	DefaultMainnetRPCURL = "https://api.mainnet-beta.solana.com"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Solana     SolanaConfig      `yaml:"solana"`
	Birdeye    APIConfig         `yaml:"birdeye"`
	Mobula     MobulaConfig      `yaml:"mobula"`
	Jupiter    APIConfig         `yaml:"jupiter"`
	Ollama     OllamaConfig      `yaml:"ollama"`
	Storage    StorageConfig     `yaml:"storage"`
	Redis      RedisConfig       `yaml:"redis"`
	Risk       domain.RiskLimits `yaml:"risk"`
	Trading    TradingConfig     `yaml:"trading"`
	MarketData MarketDataConfig  `yaml:"market_data"`
	Streams    StreamsConfig     `yaml:"streams"`
	Alerts     AlertsConfig      `yaml:"alerts"`
	Scheduler  scheduler.Specs   `yaml:"scheduler"`
	Log        LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	APIKeys        []string      `yaml:"api_keys"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
}

type SolanaConfig struct {
	Network       string `yaml:"network"`
	MainnetRPCURL string `yaml:"mainnet_rpc_url"`
	DevnetRPCURL  string `yaml:"devnet_rpc_url"`
	WSURL         string `yaml:"ws_url"`
	// PrivateKey is a base58 secret key or a JSON byte array. Prefer PRIVATE_KEY.
	PrivateKey string `yaml:"private_key"`
	Commitment string `yaml:"commitment"`
}

type APIConfig struct {
	BaseURL string  `yaml:"base_url"`
	APIKey  string  `yaml:"api_key"`
	RPS     float64 `yaml:"rps"`
}

type MobulaConfig struct {
	APIConfig `yaml:",inline"`
	PulseURL  string `yaml:"pulse_url"`
}

type OllamaConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type TradingConfig struct {
	Paper                    bool          `yaml:"paper"`
	Balance                  float64       `yaml:"balance"`
	Watchlist                []string      `yaml:"watchlist"`
	Workers                  int           `yaml:"workers"`
	TokenTimeout             time.Duration `yaml:"token_timeout"`
	SwapTimeout              time.Duration `yaml:"swap_timeout"`
	ConfirmTimeout           time.Duration `yaml:"confirm_timeout"`
	SlippageBps              int           `yaml:"slippage_bps"`
	PriorityFeeMicroLamports int64         `yaml:"priority_fee_micro_lamports"`
	TokenDecimals            int32         `yaml:"token_decimals"`
}

type MarketDataConfig struct {
	SnapshotTTL    time.Duration `yaml:"snapshot_ttl"`
	IndicatorTTL   time.Duration `yaml:"indicator_ttl"`
	CandleInterval string        `yaml:"candle_interval"`
	CandleCount    int           `yaml:"candle_count"`
	Workers        int           `yaml:"workers"`
}

type StreamsConfig struct {
	MarketData time.Duration `yaml:"market_data"`
	Signals    time.Duration `yaml:"trading_signals"`
	Portfolio  time.Duration `yaml:"portfolio_updates"`
	Alerts     time.Duration `yaml:"risk_alerts"`
	SendBuffer int           `yaml:"send_buffer"`
}

type AlertsConfig struct {
	BufferSize int           `yaml:"buffer_size"`
	Cooldown   time.Duration `yaml:"cooldown"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			RequestTimeout: 30 * time.Second,
			LLMTimeout:     150 * time.Second,
		},
		Solana: SolanaConfig{
			Network:       NetworkDevnet,
			MainnetRPCURL: DefaultMainnetRPCURL,
			DevnetRPCURL:  DefaultDevnetRPCURL,
			Commitment:    "confirmed",
		},
		Birdeye: APIConfig{BaseURL: marketdata.DefaultBirdeyeURL, RPS: 10},
		Mobula: MobulaConfig{
			APIConfig: APIConfig{BaseURL: marketdata.DefaultMobulaURL, RPS: 5},
			PulseURL:  marketdata.DefaultPulseURL,
		},
		Jupiter: APIConfig{BaseURL: jupiter.DefaultBaseURL, RPS: 10},
		Ollama: OllamaConfig{
			URL:     llm.DefaultURL,
			Model:   llm.DefaultModel,
			Timeout: 120 * time.Second,
		},
		Redis: RedisConfig{Prefix: "assistant:"},
		Risk:  domain.DefaultRiskLimits(),
		Trading: TradingConfig{
			Paper:                    true,
			Balance:                  1000,
			Workers:                  5,
			TokenTimeout:             30 * time.Second,
			SwapTimeout:              60 * time.Second,
			ConfirmTimeout:           60 * time.Second,
			SlippageBps:              jupiter.DefaultSlippageBps,
			PriorityFeeMicroLamports: jupiter.DefaultPriorityFeeMicroLamports,
			TokenDecimals:            6,
		},
		MarketData: MarketDataConfig{
			SnapshotTTL:    marketdata.DefaultSnapshotTTL,
			IndicatorTTL:   marketdata.DefaultIndicatorTTL,
			CandleInterval: marketdata.DefaultCandleInterval,
			CandleCount:    marketdata.DefaultCandleCount,
			Workers:        marketdata.DefaultWorkers,
		},
		Streams: StreamsConfig{
			MarketData: stream.DefaultMarketDataInterval,
			Signals:    stream.DefaultSignalsInterval,
			Portfolio:  stream.DefaultPortfolioInterval,
			Alerts:     stream.DefaultAlertsInterval,
			SendBuffer: stream.DefaultSendBuffer,
		},
		Alerts:    AlertsConfig{BufferSize: 100, Cooldown: 5 * time.Minute},
		Scheduler: scheduler.DefaultSpecs(),
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env (without overriding variables already set), the optional
// YAML file at path, and environment overrides, then validates the result.
// Overrides run after the environment and before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"BIRDEYE_API_KEY": &c.Birdeye.APIKey,
		"MOBULA_API_KEY":  &c.Mobula.APIKey,
		"JUPITER_API_KEY": &c.Jupiter.APIKey,
		"OLLAMA_API_URL":  &c.Ollama.URL,
		"OLLAMA_MODEL":    &c.Ollama.Model,
		"SOLANA_NETWORK":  &c.Solana.Network,
		"PRIVATE_KEY":     &c.Solana.PrivateKey,
		"MAINNET_RPC_URL": &c.Solana.MainnetRPCURL,
		"DEVNET_RPC_URL":  &c.Solana.DevnetRPCURL,
		"SOLANA_WS_URL":   &c.Solana.WSURL,
		"POSTGRES_DSN":    &c.Storage.PostgresDSN,
		"CLICKHOUSE_DSN":  &c.Storage.ClickHouseDSN,
		"REDIS_ADDR":      &c.Redis.Addr,
		"HTTP_ADDR":       &c.Server.Addr,
		"LOG_LEVEL":       &c.Log.Level,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("API_KEYS"); v != "" {
		c.Server.APIKeys = splitList(v)
	}
	if v := os.Getenv("PAPER_TRADING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PAPER_TRADING: %w", err)
		}
		c.Trading.Paper = b
	}
	return nil
}

// Validate checks ranges and the settings each mode requires.
func (c *Config) Validate() error {
	switch c.Solana.Network {
	case NetworkDevnet, NetworkMainnet, "mainnet-beta":
	default:
		return fmt.Errorf("solana.network must be devnet or mainnet, got %q", c.Solana.Network)
	}
	if c.RPCURL() == "" {
		return fmt.Errorf("rpc url for %s is required", c.Solana.Network)
	}
	if !c.Trading.Paper && c.Solana.PrivateKey == "" {
		return errors.New("live trading requires PRIVATE_KEY")
	}
	if c.Trading.Balance <= 0 {
		return errors.New("trading.balance must be positive")
	}
	for _, t := range c.Trading.Watchlist {
		if err := solana.ValidateAddress(t); err != nil {
			return fmt.Errorf("trading.watchlist: %w", err)
		}
	}

	r := c.Risk
	for name, v := range map[string]float64{
		"max_position_size":  r.MaxPositionSize,
		"max_total_exposure": r.MaxTotalExposure,
		"max_daily_loss":     r.MaxDailyLoss,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("risk.%s must be in (0, 1], got %v", name, v)
		}
	}
	if r.MinConfidence < 0 || r.MinConfidence > 100 {
		return fmt.Errorf("risk.min_confidence must be in [0, 100], got %v", r.MinConfidence)
	}

	if !c.Storage.UseMemory && (c.Storage.PostgresDSN == "" || c.Storage.ClickHouseDSN == "") {
		return errors.New("storage.postgres_dsn and storage.clickhouse_dsn are required (or storage.use_memory)")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := c.Log.Format; f != "json" && f != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", f)
	}
	return nil
}

// RPCURL returns the HTTP RPC endpoint of the selected network.
func (c *Config) RPCURL() string {
	if c.Solana.Network == NetworkDevnet {
		return c.Solana.DevnetRPCURL
	}
	return c.Solana.MainnetRPCURL
}

// WSURL returns the WebSocket RPC endpoint, derived from the HTTP one when unset.
func (c *Config) WSURL() string {
	if c.Solana.WSURL != "" {
		return c.Solana.WSURL
	}
	u := c.RPCURL()
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
