// Package config loads server settings from environment variables with an
// optional .env file, using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the engine. All values are loaded from
// environment variables; the defaults give a working dev setup against a
// local Postgres.
type Config struct {
	ServerAddr  string `mapstructure:"SERVER_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	AccessTTLMinutes   int   `mapstructure:"ACCESS_TTL_MINUTES"`
	StartingGemsCents  int64 `mapstructure:"STARTING_GEMS_CENTS"`
	BonusMinCents      int64 `mapstructure:"BONUS_MIN_CENTS"`
	BonusMaxCents      int64 `mapstructure:"BONUS_MAX_CENTS"`
	BonusCooldownHours int   `mapstructure:"BONUS_COOLDOWN_HOURS"`

	EarnRate        float64 `mapstructure:"EARN_RATE"`
	PerOpenCapCents int64   `mapstructure:"PER_OPEN_CAP_CENTS"`
	DailyCapCents   int64   `mapstructure:"DAILY_CAP_CENTS"`
	StatTrakChance  float64 `mapstructure:"STATTRAK_CHANCE"`
	SellRate        float64 `mapstructure:"SELL_RATE"`

	PriceCurrency   int `mapstructure:"PRICE_CURRENCY"`
	PriceTTLMinutes int `mapstructure:"PRICE_TTL_MINUTES"`
	PriceAttempts   int `mapstructure:"PRICE_ATTEMPTS"`
	PriceBatchLimit int `mapstructure:"PRICE_BATCH_LIMIT"`
}

// Load reads configuration from the environment, consulting an optional .env
// file in path.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TTL_MINUTES", 60)
	v.SetDefault("STARTING_GEMS_CENTS", 100000)
	v.SetDefault("BONUS_MIN_CENTS", 100)
	v.SetDefault("BONUS_MAX_CENTS", 500)
	v.SetDefault("BONUS_COOLDOWN_HOURS", 6)
	v.SetDefault("EARN_RATE", 0.25)
	v.SetDefault("PER_OPEN_CAP_CENTS", 5000)
	v.SetDefault("DAILY_CAP_CENTS", 25000)
	v.SetDefault("STATTRAK_CHANCE", 0.10)
	v.SetDefault("SELL_RATE", 0.60)
	v.SetDefault("PRICE_CURRENCY", 1)
	v.SetDefault("PRICE_TTL_MINUTES", 180)
	v.SetDefault("PRICE_ATTEMPTS", 2)
	v.SetDefault("PRICE_BATCH_LIMIT", 4)

	for _, key := range []string{
		"SERVER_ADDR", "DATABASE_URL", "JWT_SECRET",
		"ACCESS_TTL_MINUTES", "STARTING_GEMS_CENTS",
		"BONUS_MIN_CENTS", "BONUS_MAX_CENTS", "BONUS_COOLDOWN_HOURS",
		"EARN_RATE", "PER_OPEN_CAP_CENTS", "DAILY_CAP_CENTS",
		"STATTRAK_CHANCE", "SELL_RATE",
		"PRICE_CURRENCY", "PRICE_TTL_MINUTES", "PRICE_ATTEMPTS", "PRICE_BATCH_LIMIT",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	return nil
}

// AccessTTL returns the token lifetime as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

// BonusCooldown returns the bonus cooldown as a duration.
func (c Config) BonusCooldown() time.Duration {
	return time.Duration(c.BonusCooldownHours) * time.Hour
}

// PriceTTL returns the price cache freshness window as a duration.
func (c Config) PriceTTL() time.Duration {
	return time.Duration(c.PriceTTLMinutes) * time.Minute
}
