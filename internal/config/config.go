package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// TokenSecretPath is where docker swarm mounts the bot token.
var TokenSecretPath = "/run/secrets/telegram_bot_token"

var ErrNoToken = errors.New("config: telegram token missing: neither docker secret nor TELEGRAM_TOKEN is set")

type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN"`

	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	AdminIDs            []int64 `env:"ADMIN_USER_IDS" envSeparator:","`
	OutreachAllUsers    bool    `env:"OUTREACH_ALL_USERS"`
	OutreachActiveDays  int     `env:"OUTREACH_ACTIVE_DAYS" envDefault:"14"`
	OutreachConcurrency int     `env:"OUTREACH_CONCURRENCY" envDefault:"4"`

	DBPath           string        `env:"DB_PATH" envDefault:"support_bot.db"`
	ReplyTimeout     time.Duration `env:"REPLY_TIMEOUT" envDefault:"15s"`
	Timezone         string        `env:"TIMEZONE" envDefault:"Europe/Kyiv"`
	MetricsAddr      string        `env:"METRICS_ADDR"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	RecordBotReplies bool          `env:"RECORD_BOT_REPLIES"`
	SendRate         float64       `env:"SEND_RATE" envDefault:"25"`
}

// Load reads .env when present, then the process environment. The docker
// secret wins over TELEGRAM_TOKEN.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if token := secretToken(); token != "" {
		cfg.TelegramToken = token
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	if cfg.TelegramToken == "" {
		return Config{}, ErrNoToken
	}
	return cfg, nil
}

func secretToken() string {
	data, err := os.ReadFile(TokenSecretPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Location resolves Timezone, falling back to UTC on an unknown name.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ActiveWindow is the "recently active" span used when outreach targets
// everyone.
func (c Config) ActiveWindow() time.Duration {
	return time.Duration(c.OutreachActiveDays) * 24 * time.Hour
}
