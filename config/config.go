package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"futures-botv1/internal/model"
	"futures-botv1/internal/session"
)

// Config holds all bot configuration loaded from environment variables.
type Config struct {
	// Broker connection
	Host     string
	Port     int
	ClientID int

	// Broker credentials (unused in paper mode)
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string

	// Contract
	Symbol        string
	Exchange      string
	ContractMonth string

	// Strategy
	BarSize         time.Duration
	HistoryDuration time.Duration
	ShortWindow     int
	LongWindow      int
	OrderSize       int64

	// Risk management
	MaxPosition  int64
	AwaitTimeout time.Duration // max wait for an order's terminal status

	// Trading session window ("HH:MM", empty = unbounded)
	StartTime string
	EndTime   string

	// Infrastructure
	PaperMode   bool
	MetricsAddr string
	RedisAddr   string
	RedisPass   string
	JournalPath string
	WebhookURL  string
	TGBotToken  string
	TGChatID    string
	Verbose     bool
}

// Load reads configuration from environment variables with sensible defaults.
// Call Validate before using the result.
func Load() *Config {
	return &Config{
		Host:     getEnv("BROKER_HOST", "127.0.0.1"),
		Port:     getEnvInt("BROKER_PORT", 7497),
		ClientID: getEnvInt("CLIENT_ID", 1),

		APIKey:     getEnv("BROKER_API_KEY", ""),
		ClientCode: getEnv("BROKER_CLIENT_CODE", ""),
		Password:   getEnv("BROKER_PASSWORD", ""),
		TOTPSecret: getEnv("BROKER_TOTP_SECRET", ""),

		Symbol:        getEnv("SYMBOL", "ES"),
		Exchange:      getEnv("EXCHANGE", "GLOBEX"),
		ContractMonth: getEnv("CONTRACT_MONTH", "202603"),

		BarSize:         getEnvDuration("BAR_SIZE", 5*time.Minute),
		HistoryDuration: getEnvDuration("HISTORY_DURATION", 48*time.Hour),
		ShortWindow:     getEnvInt("SHORT_WINDOW", 5),
		LongWindow:      getEnvInt("LONG_WINDOW", 20),
		OrderSize:       int64(getEnvInt("ORDER_SIZE", 1)),

		MaxPosition:  int64(getEnvInt("MAX_POSITION", 1)),
		AwaitTimeout: getEnvDuration("ORDER_AWAIT_TIMEOUT", 30*time.Second),

		StartTime: getEnv("START_TIME", ""),
		EndTime:   getEnv("END_TIME", ""),

		PaperMode:   strings.EqualFold(getEnv("PAPER_MODE", "true"), "true"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),
		JournalPath: getEnv("JOURNAL_PATH", "data/trades.db"),
		WebhookURL:  getEnv("WEBHOOK_URL", ""),
		TGBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TGChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		Verbose:     strings.EqualFold(getEnv("VERBOSE", "true"), "true"),
	}
}

// Validate checks the configuration for constraint violations.
// Any error here is fatal before a connection is attempted.
func (c *Config) Validate() error {
	if c.ShortWindow <= 0 {
		return fmt.Errorf("SHORT_WINDOW must be positive, got %d", c.ShortWindow)
	}
	if c.LongWindow <= c.ShortWindow {
		return fmt.Errorf("LONG_WINDOW (%d) must be greater than SHORT_WINDOW (%d)",
			c.LongWindow, c.ShortWindow)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("ORDER_SIZE must be positive, got %d", c.OrderSize)
	}
	if c.MaxPosition < c.OrderSize {
		return fmt.Errorf("MAX_POSITION (%d) must be at least ORDER_SIZE (%d)",
			c.MaxPosition, c.OrderSize)
	}
	if c.BarSize <= 0 {
		return fmt.Errorf("BAR_SIZE must be positive, got %v", c.BarSize)
	}
	if c.HistoryDuration <= 0 {
		return fmt.Errorf("HISTORY_DURATION must be positive, got %v", c.HistoryDuration)
	}
	if _, err := c.SessionWindow(); err != nil {
		return err
	}
	if !c.PaperMode {
		for name, v := range map[string]string{
			"BROKER_API_KEY":     c.APIKey,
			"BROKER_CLIENT_CODE": c.ClientCode,
			"BROKER_PASSWORD":    c.Password,
			"BROKER_TOTP_SECRET": c.TOTPSecret,
		} {
			if v == "" {
				return fmt.Errorf("%s is required when PAPER_MODE=false", name)
			}
		}
	}
	return nil
}

// Contract returns the configured contract spec.
func (c *Config) Contract() model.ContractSpec {
	return model.ContractSpec{
		Symbol:        c.Symbol,
		Exchange:      c.Exchange,
		ContractMonth: c.ContractMonth,
	}
}

// SessionWindow parses the configured trading window.
func (c *Config) SessionWindow() (session.Window, error) {
	return session.ParseWindow(c.StartTime, c.EndTime)
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
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
