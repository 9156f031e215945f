package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Media struct {
	Enabled     bool          `mapstructure:"enabled"`
	AppID       string        `mapstructure:"app_id"`
	Certificate string        `mapstructure:"certificate"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	RedisURL string `mapstructure:"redis_url"`
	DBPath   string `mapstructure:"db_path"`

	MailboxCap   int           `mapstructure:"mailbox_cap"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	RingTimeout  time.Duration `mapstructure:"ring_timeout"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	TokenRateLimit  int           `mapstructure:"token_rate_limit"`
	TokenRateWindow time.Duration `mapstructure:"token_rate_window"`

	Media Media `mapstructure:"media"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("db_path", "data/signaling.db")
	v.SetDefault("mailbox_cap", 256)
	v.SetDefault("reap_interval", "2m")
	v.SetDefault("stale_after", "5m")
	v.SetDefault("ring_timeout", "45s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("token_rate_limit", 10)
	v.SetDefault("token_rate_window", "5s")
	v.SetDefault("media.enabled", false)
	v.SetDefault("media.token_ttl", "1h")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Media tokens: %v\n", cfg.Mode, cfg.Port, cfg.Media.Enabled)
	return &cfg, nil
}
