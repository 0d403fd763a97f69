// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Relay transports understood by the console.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds the configuration shared by the responder and the console.
type Config struct {
	DBPath string

	// Shared secret for the administrative relay.
	SecretKey string

	Responder ResponderConfig
	Console   ConsoleConfig
	Relay     RelayConfig
	Sweep     SweepConfig
	Broadcast BroadcastConfig
	RateLimit RateLimitConfig
	Timeout   TimeoutConfig
}

// ResponderConfig configures the customer-facing process.
type ResponderConfig struct {
	TelegramToken  string
	Addr           string
	AllowedOrigins []string
	FAQPath        string
	AnthropicKey   string
	AnthropicModel string
	OperatorURL    string
}

// ConsoleConfig configures the operator console process.
type ConsoleConfig struct {
	AdminToken       string
	Addr             string
	OperatorsFile    string
	SeedOperators    []int64
	ChatHistoryLimit int
}

// RelayConfig configures how the console reaches the responder.
type RelayConfig struct {
	Transport string
	URL       string
	GRPCAddr  string
}

// SweepConfig configures the periodic console jobs.
type SweepConfig struct {
	NotifyInterval      time.Duration
	ActiveWindow        time.Duration
	ReapInterval        time.Duration
	InactivityThreshold time.Duration
}

// BroadcastConfig configures the broadcast dispatcher.
type BroadcastConfig struct {
	Delay   time.Duration
	Workers int
}

// RateLimitConfig configures the per-user update limiter.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	MaxUsers int
}

// TimeoutConfig bounds outbound calls.
type TimeoutConfig struct {
	Send        time.Duration
	HealthCheck time.Duration
	Generate    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	notifyInterval := getEnvDuration("NOTIFY_INTERVAL", 30*time.Second)

	cfg := &Config{
		DBPath:    getEnv("DB_PATH", "./data/bot.db"),
		SecretKey: getEnv("SECRET_KEY", ""),
		Responder: ResponderConfig{
			TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
			Addr:           getEnv("RESPONDER_ADDR", ":8000"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
			FAQPath:        getEnv("FAQ_PATH", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", ""),
			OperatorURL:    getEnv("OPERATOR_CONTACT_URL", ""),
		},
		Console: ConsoleConfig{
			AdminToken:       getEnv("ADMIN_BOT_TOKEN", ""),
			Addr:             getEnv("CONSOLE_ADDR", ":8090"),
			OperatorsFile:    getEnv("OPERATORS_FILE", "./data/operators.yaml"),
			SeedOperators:    getEnvInt64List("AUTHORIZED_OPERATORS"),
			ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 5),
		},
		Relay: RelayConfig{
			Transport: strings.ToLower(getEnv("RELAY_TRANSPORT", TransportHTTP)),
			URL:       strings.TrimRight(getEnv("RESPONDER_URL", "http://localhost:8000"), "/"),
			GRPCAddr:  getEnv("RELAY_GRPC_ADDR", ":8001"),
		},
		Sweep: SweepConfig{
			NotifyInterval:      notifyInterval,
			ActiveWindow:        getEnvDuration("ACTIVE_WINDOW", 2*notifyInterval),
			ReapInterval:        getEnvDuration("REAP_INTERVAL", time.Hour),
			InactivityThreshold: getEnvDuration("INACTIVITY_THRESHOLD", 12*time.Hour),
		},
		Broadcast: BroadcastConfig{
			Delay:   getEnvDuration("BROADCAST_DELAY", 100*time.Millisecond),
			Workers: getEnvInt("BROADCAST_WORKERS", 1),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 5),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxUsers: getEnvInt("RATE_LIMIT_MAX_USERS", 10000),
		},
		Timeout: TimeoutConfig{
			Send:        getEnvDuration("SEND_TIMEOUT", 10*time.Second),
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Generate:    getEnvDuration("GENERATE_TIMEOUT", 20*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks settings common to both processes.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY cannot be empty")
	}
	if c.Relay.Transport != TransportHTTP && c.Relay.Transport != TransportGRPC {
		return fmt.Errorf("RELAY_TRANSPORT must be %q or %q", TransportHTTP, TransportGRPC)
	}
	if c.Sweep.NotifyInterval <= 0 || c.Sweep.ReapInterval <= 0 {
		return fmt.Errorf("NOTIFY_INTERVAL and REAP_INTERVAL must be > 0")
	}
	if c.Sweep.ActiveWindow < c.Sweep.NotifyInterval {
		return fmt.Errorf("ACTIVE_WINDOW must be >= NOTIFY_INTERVAL")
	}
	if c.Sweep.InactivityThreshold <= 0 {
		return fmt.Errorf("INACTIVITY_THRESHOLD must be > 0")
	}
	if c.Broadcast.Workers <= 0 {
		return fmt.Errorf("BROADCAST_WORKERS must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Timeout.Send <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be > 0")
	}
	if c.Timeout.Generate <= 0 {
		return fmt.Errorf("GENERATE_TIMEOUT must be > 0")
	}
	return nil
}

// ValidateResponder checks settings the responder needs.
func (c *Config) ValidateResponder() error {
	if c.Responder.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN cannot be empty")
	}
	if c.Responder.Addr == "" {
		return fmt.Errorf("RESPONDER_ADDR cannot be empty")
	}
	return nil
}

// ValidateConsole checks settings the console needs.
func (c *Config) ValidateConsole() error {
	if c.Console.AdminToken == "" {
		return fmt.Errorf("ADMIN_BOT_TOKEN cannot be empty")
	}
	if c.Responder.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN cannot be empty")
	}
	if c.Console.OperatorsFile == "" {
		return fmt.Errorf("OPERATORS_FILE cannot be empty")
	}
	if c.Relay.Transport == TransportHTTP && c.Relay.URL == "" {
		return fmt.Errorf("RESPONDER_URL cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt64List(key string) []int64 {
	var out []int64
	for _, part := range getEnvList(key, nil) {
		if n, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}
