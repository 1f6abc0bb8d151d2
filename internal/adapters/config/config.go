package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"autopilot/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Agent         AgentConfig
	Chain         ChainConfig
	Stream        StreamConfig
	Telegram      TelegramConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"autopilot"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Port     int    `envconfig:"APP_PORT" default:"8080"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a Redis host is configured.
// Without Redis the callback dedup store falls back to process-local memory.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig configures the optional ledger event stream.
// Leave brokers empty to disable publication entirely.
type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS"`
	ActionTopic string   `envconfig:"KAFKA_ACTION_TOPIC" default:"autopilot.agent_actions"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// AgentConfig configures the remote execution service handoff.
// When URL is empty the dispatcher runs in degraded mode and records
// pending placeholder actions instead of triggering live execution.
type AgentConfig struct {
	URL               string        `envconfig:"AGENT_SERVICE_URL"`
	TriggerTimeout    time.Duration `envconfig:"AGENT_TRIGGER_TIMEOUT" default:"5s"`
	CallbackBaseURL   string        `envconfig:"AGENT_CALLBACK_BASE_URL"`
	MaxTurnsInvest    int           `envconfig:"AGENT_MAX_TURNS_INVEST" default:"10"`
	MaxTurnsRebalance int           `envconfig:"AGENT_MAX_TURNS_REBALANCE" default:"15"`
	WalletAddress     string        `envconfig:"WALLET_ADDRESS" default:"0x0000000000000000000000000000000000000000"`
	DefaultChain      string        `envconfig:"AGENT_DEFAULT_CHAIN" default:"base"`
	DefaultProtocol   string        `envconfig:"AGENT_DEFAULT_PROTOCOL" default:"Aave v3"`
	DefaultAsset      string        `envconfig:"AGENT_DEFAULT_ASSET" default:"USDC"`
}

type ChainConfig struct {
	RPCURL            string `envconfig:"CHAIN_RPC_URL" default:"https://sepolia.base.org"`
	AssetAddress      string `envconfig:"CHAIN_ASSET_ADDRESS" default:"0x036CbD53842c5426634e7929541eC2318f3dCF7e"`
	YieldTokenAddress string `envconfig:"CHAIN_YIELD_TOKEN_ADDRESS" default:"0xf53B60F4006cab2b3C4688ce41fD5362427A2A66"`
	AssetDecimals     int32  `envconfig:"CHAIN_ASSET_DECIMALS" default:"6"`
}

type StreamConfig struct {
	MaxConnectionLifetime time.Duration `envconfig:"STREAM_MAX_CONNECTION_LIFETIME" default:"15m"`
	SubscriberBuffer      int           `envconfig:"STREAM_SUBSCRIBER_BUFFER" default:"64"`
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers.
// The pending reaper resolves agent runs that never called back. It is
// disabled by default (interval 0): pending placeholder rows are valid
// long-lived state when no agent service is configured.
type WorkerConfig struct {
	PendingReaperInterval time.Duration `envconfig:"WORKER_PENDING_REAPER_INTERVAL" default:"0"`
	PendingReaperMaxAge   time.Duration `envconfig:"WORKER_PENDING_REAPER_MAX_AGE" default:"30m"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
