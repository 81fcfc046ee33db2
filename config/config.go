package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Trading universe
	Symbols   string // comma-separated venue symbols
	Timeframe string // MT-style code: M1, M5, M15, H1, ...

	// Strategy parameters
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int
	ORBWindow  int

	// Risk and lifecycle
	AccountRisk      float64 // equity fraction risked per trade
	LotSize          float64 // fixed fallback volume
	MaxTradesPerPair int
	BreakEvenRR      float64 // reward multiple that arms break-even; <=0 disables
	Magic            int64

	// Loop
	PollInterval   time.Duration
	BarsPerRefresh int

	// Bridge credentials
	BridgeURL        string
	BridgeWSURL      string
	BridgeLogin      string
	BridgeAPIKey     string
	BridgeTOTPSecret string
	PaperMode        bool

	// NewsAPIKey is consumed by external calendar tooling around the
	// bot, never by the decision path.
	NewsAPIKey string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	CandleDBPath  string
	MetricsAddr   string
	LogLevel      string

	// Notifications (optional; empty disables the channel)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
// Bridge credentials are only required outside paper mode.
func Load() *Config {
	cfg := &Config{
		Symbols:   getEnv("SYMBOLS", "EURUSDm,USDJPYm,USOILm"),
		Timeframe: getEnv("TIMEFRAME", "M5"),

		RSIPeriod:  getEnvInt("RSI_PERIOD", 14),
		MACDFast:   getEnvInt("MACD_FAST", 12),
		MACDSlow:   getEnvInt("MACD_SLOW", 26),
		MACDSignal: getEnvInt("MACD_SIGNAL", 9),
		ATRPeriod:  getEnvInt("ATR_PERIOD", 14),
		ORBWindow:  getEnvInt("ORB_WINDOW", 5),

		AccountRisk:      getEnvFloat("ACCOUNT_RISK", 0.04),
		LotSize:          getEnvFloat("LOT_SIZE", 0.02),
		MaxTradesPerPair: getEnvInt("MAX_TRADES_PER_PAIR", 4),
		BreakEvenRR:      getEnvFloat("BREAK_EVEN_RR", 1.0),
		Magic:            int64(getEnvInt("MAGIC", 123456)),

		PollInterval:   getEnvDuration("POLL_INTERVAL", 60*time.Second),
		BarsPerRefresh: getEnvInt("BARS_PER_REFRESH", 500),

		BridgeURL:   getEnv("BRIDGE_URL", "http://localhost:8228"),
		BridgeWSURL: getEnv("BRIDGE_WS_URL", "ws://localhost:8228/api/v1/stream"),
		PaperMode:   getEnvBool("PAPER_MODE", false),
		NewsAPIKey:  getEnv("NEWS_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/journal.db"),
		CandleDBPath:  getEnv("CANDLE_DB_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}

	if !cfg.PaperMode {
		cfg.BridgeLogin = mustEnv("BRIDGE_LOGIN")
		cfg.BridgeAPIKey = mustEnv("BRIDGE_API_KEY")
		cfg.BridgeTOTPSecret = mustEnv("BRIDGE_TOTP_SECRET")
	}
	return cfg
}

// ParseSymbols splits the Symbols string into a clean slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
