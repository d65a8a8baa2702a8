package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Sweep     SweepConfig
	Message   MessageConfig
	Gateway   GatewayConfig
	ChatRelay ChatRelayConfig
	SMTP      SMTPConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type WorkerConfig struct {
	SendWorkers    int
	ConfirmWorkers int
	DequeueWait    time.Duration
	LockTTL        time.Duration
	BackoffBase    time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
}

type SweepConfig struct {
	Interval time.Duration
}

type MessageConfig struct {
	ContentMax   int
	ExpiryWindow time.Duration
	ReceiptTTL   time.Duration
}

type GatewayConfig struct {
	URL string
}

type ChatRelayConfig struct {
	URL    string
	APIKey string
}

type SMTPConfig struct {
	Address  string
	Username string
	Password string
	From     string
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			Address:  mustEnv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Worker: WorkerConfig{
			SendWorkers:    getEnvInt("SEND_WORKERS", 2),
			ConfirmWorkers: getEnvInt("CONFIRM_WORKERS", 1),
			DequeueWait:    time.Duration(getEnvInt("DEQUEUE_WAIT_SECONDS", 5)) * time.Second,
			LockTTL:        time.Duration(getEnvInt("LOCK_TTL_SECONDS", 60)) * time.Second,
			BackoffBase:    time.Duration(getEnvInt("RETRY_BACKOFF_SECONDS", 30)) * time.Second,
			DelayMin:       time.Duration(getEnvInt("SEND_DELAY_MIN_MS", 1200)) * time.Millisecond,
			DelayMax:       time.Duration(getEnvInt("SEND_DELAY_MAX_MS", 4500)) * time.Millisecond,
		},
		Sweep: SweepConfig{
			Interval: time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 3600)) * time.Second,
		},
		Message: MessageConfig{
			ContentMax:   getEnvInt("CONTENT_MAX", 1000),
			ExpiryWindow: time.Duration(getEnvInt("EXPIRY_WINDOW_HOURS", 24)) * time.Hour,
			ReceiptTTL:   time.Duration(getEnvInt("RECEIPT_TTL_HOURS", 48)) * time.Hour,
		},
		Gateway: GatewayConfig{
			URL: mustEnv("GATEWAY_URL"),
		},
		ChatRelay: ChatRelayConfig{
			URL:    os.Getenv("CHAT_RELAY_URL"),
			APIKey: os.Getenv("CHAT_RELAY_KEY"),
		},
		SMTP: SMTPConfig{
			Address:  os.Getenv("SMTP_ADDR"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}

	validate(cfg)
	return cfg, nil
}

func validate(cfg *Config) {
	if cfg.Worker.SendWorkers <= 0 {
		panic("SEND_WORKERS must be > 0")
	}
	if cfg.Worker.ConfirmWorkers <= 0 {
		panic("CONFIRM_WORKERS must be > 0")
	}
	if cfg.Worker.DequeueWait <= 0 {
		panic("DEQUEUE_WAIT_SECONDS must be > 0")
	}
	if cfg.Worker.LockTTL <= 0 {
		panic("LOCK_TTL_SECONDS must be > 0")
	}
	if cfg.Worker.DelayMax < cfg.Worker.DelayMin {
		panic("SEND_DELAY_MAX_MS must be >= SEND_DELAY_MIN_MS")
	}
	if cfg.Sweep.Interval <= 0 {
		panic("SWEEP_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Message.ContentMax <= 0 {
		panic("CONTENT_MAX must be > 0")
	}
	if cfg.Message.ExpiryWindow <= 0 {
		panic("EXPIRY_WINDOW_HOURS must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
